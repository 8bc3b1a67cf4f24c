package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/justa/mapupload/internal/entity"
	"github.com/redis/go-redis/v9"
)

const (
	KeyPrefix    = "mapupload"
	KeyJobs      = "jobs" // LIST. Newest first, JSON encoded entity.JobRecord.
	KeySeparator = ":"
)

type redisRepository struct {
	cl   *redis.Client
	size int64
	key  string
	log  *slog.Logger
}

func NewRedisRepository(cl *redis.Client, size int, log *slog.Logger) *redisRepository {
	return &redisRepository{
		cl:   cl,
		size: int64(size),
		key:  getKey(KeyPrefix, KeyJobs),
		log:  log.With(slog.String("item", "HistoryRepository")),
	}
}

// Record prepends rec and trims the list to the configured size.
func (r *redisRepository) Record(ctx context.Context, rec *entity.JobRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cannot marshal job record: %w", err)
	}

	pipe := r.cl.TxPipeline()
	pipe.LPush(ctx, r.key, data)
	pipe.LTrim(ctx, r.key, 0, r.size-1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cannot save job record %s: %w", rec.ID, err)
	}

	return nil
}

// Recent returns up to n records, newest first.
func (r *redisRepository) Recent(ctx context.Context, n int) ([]*entity.JobRecord, error) {
	if n < 1 {
		return nil, nil
	}

	items, err := r.cl.LRange(ctx, r.key, 0, int64(n)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot get job records: %w", err)
	}

	records := make([]*entity.JobRecord, 0, len(items))
	for _, item := range items {
		var rec entity.JobRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			r.log.Error("Cannot unmarshal job record", slog.Any("error", err))

			continue
		}

		records = append(records, &rec)
	}

	return records, nil
}

// memoryRepository keeps the history in process when no Redis is configured.
type memoryRepository struct {
	mu      sync.Mutex
	size    int
	records []*entity.JobRecord
}

func NewMemoryRepository(size int) *memoryRepository {
	return &memoryRepository{size: size}
}

func (m *memoryRepository) Record(_ context.Context, rec *entity.JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append([]*entity.JobRecord{rec}, m.records...)
	if len(m.records) > m.size {
		m.records = m.records[:m.size]
	}

	return nil
}

func (m *memoryRepository) Recent(_ context.Context, n int) ([]*entity.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n = min(n, len(m.records))
	if n < 1 {
		return nil, nil
	}

	return append([]*entity.JobRecord(nil), m.records[:n]...), nil
}

func getKey(keys ...string) string {
	return strings.Join(keys, KeySeparator)
}
