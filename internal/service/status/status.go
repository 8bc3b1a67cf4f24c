package status

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/justa/mapupload/internal/entity"
)

const (
	serviceName = "status"
)

type QueueInspector interface {
	Titles() []string
}

type DispatcherInspector interface {
	Running() bool
}

type HistoryRepository interface {
	Recent(ctx context.Context, n int) ([]*entity.JobRecord, error)
}

type statusService struct {
	queue      QueueInspector
	dispatcher DispatcherInspector
	history    HistoryRepository
	limit      int
	log        *slog.Logger
}

func NewStatusService(queue QueueInspector, dispatcher DispatcherInspector, history HistoryRepository, limit int, log *slog.Logger) *statusService {
	return &statusService{
		queue:      queue,
		dispatcher: dispatcher,
		history:    history,
		limit:      limit,
		log:        log.With(slog.String("service", serviceName)),
	}
}

func (s *statusService) Status(ctx context.Context) (*entity.QueueStatus, error) {
	recent, err := s.history.Recent(ctx, s.limit)
	if err != nil {
		s.log.Error("Cannot get job history", slog.Any("error", err))

		return nil, fmt.Errorf("cannot get job history: %w", err)
	}

	return &entity.QueueStatus{
		Running: s.dispatcher.Running(),
		Pending: s.queue.Titles(),
		Recent:  recent,
	}, nil
}
