package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/justa/mapupload/internal/common"
	"github.com/justa/mapupload/internal/entity"
)

const (
	serviceName   = "dispatcher"
	notifyTimeout = 10 * time.Second
)

type JobQueue interface {
	DequeueNext() (entity.Job, error)
	IsEmpty() bool
}

type Runner interface {
	Run(ctx context.Context, job entity.Job) error
}

type HistoryRecorder interface {
	Record(ctx context.Context, rec *entity.JobRecord) error
}

// Dispatcher drains the queue one job at a time. Only one pipeline runs at any instant.
type Dispatcher struct {
	running atomic.Bool
	queue   JobQueue
	runner  Runner
	history HistoryRecorder
	wake    chan struct{}
	now     func() time.Time
	log     *slog.Logger
}

func New(queue JobQueue, runner Runner, history HistoryRecorder, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		runner:  runner,
		history: history,
		wake:    make(chan struct{}, 1),
		now:     time.Now,
		log:     log.With(slog.String("service", serviceName)),
	}
}

// Signal wakes the work loop. It never blocks.
func (d *Dispatcher) Signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run is the consumer loop. It drains the queue on every signal until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	d.log.Info("Started")

	for {
		select {
		case <-ctx.Done():
			d.log.Info("Stopped")

			return
		case <-d.wake:
			d.Drain(ctx)
		}
	}
}

func (d *Dispatcher) Running() bool {
	return d.running.Load()
}

// Drain processes queued jobs until the queue is empty. It returns at once if
// another Drain is already in progress; that one will pick up any new jobs.
func (d *Dispatcher) Drain(ctx context.Context) {
	for !d.queue.IsEmpty() && ctx.Err() == nil {
		if !d.running.CompareAndSwap(false, true) {
			return
		}

		d.drain(ctx)
		d.running.Store(false)
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for ctx.Err() == nil {
		job, err := d.queue.DequeueNext()
		if errors.Is(err, common.ErrEmptyQueue) {
			return
		}

		d.process(ctx, job)
	}
}

// RunIdle runs fn while no job is in flight and blocks new jobs until it returns.
// It reports false without calling fn when a job is running.
func (d *Dispatcher) RunIdle(fn func() error) (bool, error) {
	if !d.running.CompareAndSwap(false, true) {
		return false, nil
	}
	defer func() {
		d.running.Store(false)
		d.Signal()
	}()

	return true, fn()
}

// process runs one job and never lets its failure escape.
func (d *Dispatcher) process(ctx context.Context, job entity.Job) {
	meta := job.Meta()
	log := d.log.With(slog.String("job_id", meta.ID), slog.String("kind", job.Kind().String()), slog.String("title", job.Title()))

	rec := &entity.JobRecord{
		ID:        meta.ID,
		Kind:      job.Kind().String(),
		Title:     job.Title(),
		Requester: meta.Requester,
		StartedAt: d.now(),
	}

	log.Info("Job started")
	err := d.runSafe(ctx, job)
	rec.FinishedAt = d.now()

	if err != nil {
		rec.Status = entity.JobStatusFailed
		rec.Stage = common.StageOf(err)
		rec.Error = err.Error()

		log.Error("Job failed", slog.String("stage", rec.Stage), slog.Any("error", err))
		d.notifyFailure(job, rec, err, log)
	} else {
		rec.Status = entity.JobStatusCompleted
		log.Info("Job completed", slog.Duration("duration", rec.Duration()))
	}

	if d.history != nil {
		if err := d.history.Record(context.WithoutCancel(ctx), rec); err != nil {
			log.Warn("Cannot record job", slog.Any("error", err))
		}
	}
}

func (d *Dispatcher) runSafe(ctx context.Context, job entity.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = common.NewPipelineError("panic", fmt.Errorf("%v", r))
		}
	}()

	return d.runner.Run(ctx, job)
}

func (d *Dispatcher) notifyFailure(job entity.Job, rec *entity.JobRecord, err error, log *slog.Logger) {
	sink := job.Meta().Sink
	if sink == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	stage := rec.Stage
	if stage == "" {
		stage = "unknown stage"
	}

	cause := err
	var pe *common.PipelineError
	if errors.As(err, &pe) {
		cause = pe.Err
	}

	msg := fmt.Sprintf("%s request **%s** failed at %s: %v %s", requestLabel(job.Kind()), rec.Title, stage, cause, rec.Requester)
	if err := sink.Notify(ctx, msg); err != nil {
		log.Warn("Cannot send failure notice", slog.Any("error", err))
	}
}

func requestLabel(kind entity.JobKind) string {
	if kind == entity.JobKindMirror {
		return "Avocado's FastDL"
	}

	return "Gamebanana"
}
