package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/justa/mapupload/internal/adapter/account"
	"github.com/justa/mapupload/internal/adapter/archive"
	"github.com/justa/mapupload/internal/adapter/diskspace"
	"github.com/justa/mapupload/internal/adapter/fastdl"
	"github.com/justa/mapupload/internal/adapter/fetcher"
	"github.com/justa/mapupload/internal/adapter/fsadapter"
	"github.com/justa/mapupload/internal/adapter/gamebanana"
	"github.com/justa/mapupload/internal/adapter/mdadapter"
	"github.com/justa/mapupload/internal/config"
	discordhandler "github.com/justa/mapupload/internal/handler/discord"
	httphandler "github.com/justa/mapupload/internal/handler/http"
	"github.com/justa/mapupload/internal/repository/history"
	"github.com/justa/mapupload/internal/service/dispatcher"
	"github.com/justa/mapupload/internal/service/intake"
	"github.com/justa/mapupload/internal/service/pipeline"
	"github.com/justa/mapupload/internal/service/status"
	"github.com/justa/mapupload/internal/storage/queue"
	"github.com/justa/mapupload/internal/storage/staging"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

const (
	pingTimeout     = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

type HistoryRepository interface {
	dispatcher.HistoryRecorder
	status.HistoryRepository
}

type App struct {
	cfgPath    string
	cfg        *config.Config
	ctx        context.Context
	cancel     context.CancelFunc
	srv        *http.Server
	rdb        *redis.Client
	bot        *discordhandler.Bot
	staging    *staging.Area
	dispatcher *dispatcher.Dispatcher
	log        *slog.Logger
}

func New(cfgPath string) *App {
	return &App{
		cfgPath: cfgPath,
	}
}

func (a *App) Start() {
	a.cfg = config.MustLoad(a.cfgPath)

	lo := &slog.HandlerOptions{}
	switch a.cfg.LogLevel {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		panic("unknown log level")
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, lo))
	a.log = log

	mapsOwner, err := account.Resolve(a.cfg.Maps.User)
	if err != nil {
		panic(err)
	}

	fastDLOwner, err := account.Resolve(a.cfg.FastDL.User)
	if err != nil {
		panic(err)
	}

	a.ctx, a.cancel = context.WithCancel(context.Background())

	fs := afero.NewOsFs()
	a.staging = staging.NewArea(fs, &a.cfg.Staging, log)
	if err := a.staging.Reset(); err != nil {
		panic(err)
	}

	renderer, err := mdadapter.NewStatusRenderer(a.cfg.StatusTemplate, log)
	if err != nil {
		panic(err)
	}

	cl := &http.Client{Timeout: a.cfg.HTTPTimeout}
	resolver := gamebanana.NewResolver(cl, a.cfg.GameBanana.APIURL, log)
	mirror := fastdl.NewClient(cl, a.cfg.Mirror.URL, a.cfg.UserAgent, log)

	runner := pipeline.New(
		pipeline.Trees{
			MapsDir:     a.cfg.Maps.Path,
			MapsOwner:   mapsOwner,
			FastDLDir:   a.cfg.FastDL.Path,
			FastDLOwner: fastDLOwner,
		},
		a.staging,
		fetcher.NewFetcher(fs, cl, a.cfg.UserAgent, log),
		archive.NewExtractor(log),
		fsadapter.NewFSAdapterWithFS(fs, log),
		mirror,
		diskspace.NewChecker(),
		log,
	)

	repo := a.historyRepository()
	q := queue.New()
	a.dispatcher = dispatcher.New(q, runner, repo, log)
	go a.dispatcher.Run(a.ctx)

	statusSrv := status.NewStatusService(q, a.dispatcher, repo, renderer.Limit(), log)
	intakeSrv := intake.NewIntakeService(resolver, mirror, q, a.dispatcher, log)

	if a.cfg.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /status/{$}", httphandler.NewStatusHandler(statusSrv, renderer, log))
		mux.Handle("GET /queue/{$}", httphandler.NewQueueHandler(statusSrv, log))

		a.srv = &http.Server{
			Addr:    a.cfg.Listen,
			Handler: mux,
		}

		go func() {
			log.Info("Start listen", slog.String("addr", a.cfg.Listen))

			if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Could not serve", slog.String("listen_addr", a.cfg.Listen), slog.Any("error", err))
				os.Exit(2)
			}
		}()
	}

	a.bot, err = discordhandler.NewBot(a.cfg.Token, a.cfg.GuildID, log)
	if err != nil {
		panic(err)
	}

	h := discordhandler.NewCommandHandler(a.bot.Session(), intakeSrv, statusSrv, a.cfg.Role, log)
	if err := a.bot.Open(a.ctx, h); err != nil {
		panic(err)
	}
}

// historyRepository falls back to an in-process history when Redis is not configured.
func (a *App) historyRepository() HistoryRepository {
	if a.cfg.RedisURL == "" {
		a.log.Info("Redis is not configured, job history is kept in memory")

		return history.NewMemoryRepository(a.cfg.HistorySize)
	}

	opt, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		panic(err)
	}

	a.rdb = redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if _, err := a.rdb.Ping(ctx).Result(); err != nil {
		panic(err)
	}

	return history.NewRedisRepository(a.rdb, a.cfg.HistorySize, a.log)
}

// ResetStaging wipes the staging directories unless a job is being processed.
func (a *App) ResetStaging() {
	if a.dispatcher == nil {
		return
	}

	ran, err := a.dispatcher.RunIdle(a.staging.Reset)
	switch {
	case err != nil:
		a.log.Error("Cannot reset staging", slog.Any("error", err))
	case !ran:
		a.log.Warn("A job is being processed, staging reset skipped")
	}
}

func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.bot != nil {
		if err := a.bot.Close(); err != nil {
			a.log.Error("Cannot close discord session", slog.Any("error", err))
		}
	}

	if a.srv != nil {
		a.srv.Shutdown(ctx)
	}

	if a.cancel != nil {
		a.cancel()
	}

	if a.rdb != nil {
		a.rdb.Close()
	}
}
