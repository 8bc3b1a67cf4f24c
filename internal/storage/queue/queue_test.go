package queue

import (
	"fmt"
	"sync"
	"testing"

	"github.com/justa/mapupload/internal/common"
	"github.com/justa/mapupload/internal/entity"
	"github.com/stretchr/testify/require"
)

func mirrorJob(name string) *entity.MirrorJob {
	return &entity.MirrorJob{JobMeta: entity.JobMeta{ID: name}, MapName: name}
}

func TestQueueLIFO(t *testing.T) {
	q := New()
	require.True(t, q.IsEmpty())

	_, err := q.DequeueNext()
	require.ErrorIs(t, err, common.ErrEmptyQueue)

	q.Enqueue(mirrorJob("a"))
	q.Enqueue(&entity.ModPackageJob{ModPackage: entity.ModPackage{DisplayName: "b"}})
	q.Enqueue(mirrorJob("c"))

	require.Equal(t, 3, q.Len())
	require.Equal(t, []string{"c", "b", "a"}, q.Titles())

	for _, expected := range []string{"c", "b", "a"} {
		job, err := q.DequeueNext()
		require.NoError(t, err)
		require.Equal(t, expected, job.Title())
	}

	require.True(t, q.IsEmpty())
	_, err = q.DequeueNext()
	require.ErrorIs(t, err, common.ErrEmptyQueue)
}

func TestQueueAcceptsDuplicates(t *testing.T) {
	q := New()
	job := mirrorJob("dm_arena")
	q.Enqueue(job)
	q.Enqueue(job)

	require.Equal(t, 2, q.Len())
}

func TestQueueConcurrentEnqueue(t *testing.T) {
	q := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q.Enqueue(mirrorJob(fmt.Sprintf("map_%d", i)))
		}(i)
	}
	wg.Wait()

	require.Equal(t, 50, q.Len())

	seen := make(map[string]struct{})
	for !q.IsEmpty() {
		job, err := q.DequeueNext()
		require.NoError(t, err)
		seen[job.Title()] = struct{}{}
	}
	require.Len(t, seen, 50)
}
