package httphandler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/justa/mapupload/internal/entity"
)

type StatusService interface {
	Status(ctx context.Context) (*entity.QueueStatus, error)
}

type StatusRenderer interface {
	Render(w io.Writer, status *entity.QueueStatus) error
}

func NewStatusHandler(srv StatusService, renderer StatusRenderer, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "StatusHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		status, err := srv.Status(r.Context())
		if err != nil {
			http.Error(w, "Cannot get status", http.StatusInternalServerError)

			return
		}

		var buf bytes.Buffer
		if err := renderer.Render(&buf, status); err != nil {
			log.Error("Cannot render status page", slog.Any("error", err))
			http.Error(w, "Cannot render status", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(buf.Bytes())
	}
}

func NewQueueHandler(srv StatusService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "QueueHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		status, err := srv.Status(r.Context())
		if err != nil {
			http.Error(w, "Cannot get status", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Error("Cannot encode status", slog.Any("error", err))
		}
	}
}
