package intake

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/justa/mapupload/internal/common"
	"github.com/justa/mapupload/internal/entity"
	"golang.org/x/time/rate"
)

const (
	serviceName = "intake"

	MethodGameBanana = "gamebanana"
	MethodMirror     = "avocado"

	defaultInterval = 2 * time.Second
	defaultBurst    = 5
)

var mapNameRe = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

type ModResolver interface {
	Resolve(ctx context.Context, reference string) (*entity.ModPackage, error)
}

type MirrorProber interface {
	Probe(ctx context.Context, mapName string) (*entity.MirrorProbe, error)
}

type JobQueue interface {
	Enqueue(job entity.Job)
}

type Signaler interface {
	Signal()
}

// Request is one /addmap invocation.
type Request struct {
	Method    string
	Query     string
	Requester string
	Sink      entity.Notifier
}

type Option func(*intakeService)

// WithRateLimit overrides the submission token bucket.
func WithRateLimit(every time.Duration, burst int) Option {
	return func(s *intakeService) {
		s.limiter = rate.NewLimiter(rate.Every(every), burst)
	}
}

type intakeService struct {
	resolver ModResolver
	prober   MirrorProber
	queue    JobQueue
	signaler Signaler
	limiter  *rate.Limiter
	now      func() time.Time
	log      *slog.Logger
}

func NewIntakeService(resolver ModResolver, prober MirrorProber, queue JobQueue, signaler Signaler, log *slog.Logger, opts ...Option) *intakeService {
	s := &intakeService{
		resolver: resolver,
		prober:   prober,
		queue:    queue,
		signaler: signaler,
		limiter:  rate.NewLimiter(rate.Every(defaultInterval), defaultBurst),
		now:      time.Now,
		log:      log.With(slog.String("service", serviceName)),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Submit validates req, resolves it into a job and enqueues it. The returned text is the private
// reply to the requester. Nothing is enqueued when an error is returned.
func (s *intakeService) Submit(ctx context.Context, req *Request) (string, error) {
	query := strings.TrimSpace(req.Query)
	log := s.log.With(slog.String("method", req.Method), slog.String("query", query))

	if query == "" {
		return "", common.ErrInvalidQuery
	}

	var (
		job   entity.Job
		reply string
		err   error
	)

	switch req.Method {
	case MethodGameBanana:
		job, err = s.modPackageJob(ctx, query)
		if err == nil {
			reply = fmt.Sprintf("Gamebanana request **%s** added to the queue.", job.Title())
		}
	case MethodMirror:
		job, err = s.mirrorJob(ctx, query)
		if err == nil {
			reply = fmt.Sprintf("Avocado's FastDL request **%s** added to the queue.", job.Title())
		}
	default:
		return "", fmt.Errorf("%w: %q", common.ErrUnknownMethod, req.Method)
	}

	if err != nil {
		log.Warn("Request rejected", slog.Any("error", err))

		return "", err
	}

	if !s.limiter.Allow() {
		log.Warn("Request rate limited")

		return "", common.ErrRateLimited
	}

	meta := job.Meta()
	meta.ID = uuid.NewString()
	meta.Requester = req.Requester
	meta.Sink = req.Sink
	meta.EnqueuedAt = s.now()

	s.queue.Enqueue(job)
	s.signaler.Signal()

	log.Info("Job enqueued", slog.String("job_id", meta.ID), slog.String("kind", job.Kind().String()))

	return reply, nil
}

func (s *intakeService) modPackageJob(ctx context.Context, reference string) (entity.Job, error) {
	pkg, err := s.resolver.Resolve(ctx, reference)
	if err != nil {
		return nil, err
	}

	return &entity.ModPackageJob{ModPackage: *pkg}, nil
}

func (s *intakeService) mirrorJob(ctx context.Context, mapName string) (entity.Job, error) {
	if !mapNameRe.MatchString(mapName) || strings.Trim(mapName, ".") == "" {
		return nil, fmt.Errorf("%w: %q is not a map name", common.ErrInvalidQuery, mapName)
	}

	probe, err := s.prober.Probe(ctx, mapName)
	if err != nil {
		return nil, err
	}

	return &entity.MirrorJob{MapName: mapName, HasAuxiliaryFile: probe.HasAuxiliary}, nil
}
