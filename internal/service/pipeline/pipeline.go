package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/justa/mapupload/internal/common"
	"github.com/justa/mapupload/internal/entity"
)

const (
	serviceName = "pipeline"

	StagePreflight = "preflight"
	StageDownload  = "download"
	StageExtract   = "extract"
	StageClassify  = "classify"
	StageDeploy    = "deploy"
	StageCleanup   = "cleanup"
)

type Fetcher interface {
	Fetch(ctx context.Context, url, dst string) (int64, error)
}

type Extractor interface {
	Extract(ctx context.Context, src, dstDir string) error
}

type FileStore interface {
	FindAssets(root string) ([]*entity.AssetFile, error)
	Compress(src, dst string) error
	Decompress(src, dst string) error
	Move(src, dst string) error
	Chown(path string, owner entity.Ownership) error
	MkdirExclusive(dir string) error
	Remove(path string) error
	RemoveAll(path string) error
}

type Staging interface {
	DownloadDir() string
	DownloadPath(name string) string
	ExtractPath(name string) string
}

type Mirror interface {
	AssetURL(fileName string) string
}

type SpaceChecker interface {
	Free(ctx context.Context, path string) (uint64, error)
}

// Trees are the two deployment destinations and the ownership of their files.
type Trees struct {
	MapsDir     string
	MapsOwner   entity.Ownership
	FastDLDir   string
	FastDLOwner entity.Ownership
}

type Pipeline struct {
	trees     Trees
	staging   Staging
	fetcher   Fetcher
	extractor Extractor
	files     FileStore
	mirror    Mirror
	space     SpaceChecker
	log       *slog.Logger
}

func New(trees Trees, staging Staging, fetcher Fetcher, extractor Extractor, files FileStore, mirror Mirror, space SpaceChecker, log *slog.Logger) *Pipeline {
	return &Pipeline{
		trees:     trees,
		staging:   staging,
		fetcher:   fetcher,
		extractor: extractor,
		files:     files,
		mirror:    mirror,
		space:     space,
		log:       log.With(slog.String("service", serviceName)),
	}
}

// Run executes the stage sequence for job. Failures are returned as *common.PipelineError.
func (p *Pipeline) Run(ctx context.Context, job entity.Job) error {
	log := p.log.With(slog.String("job_id", job.Meta().ID), slog.String("kind", job.Kind().String()))

	switch j := job.(type) {
	case *entity.ModPackageJob:
		return p.runModPackage(ctx, j, log)
	case *entity.MirrorJob:
		return p.runMirror(ctx, j, log)
	}

	return common.NewPipelineError(StagePreflight, fmt.Errorf("unsupported job type %T", job))
}

func (p *Pipeline) notify(ctx context.Context, job entity.Job, log *slog.Logger, format string, args ...any) {
	sink := job.Meta().Sink
	if sink == nil {
		return
	}

	if err := sink.Notify(ctx, fmt.Sprintf(format, args...)); err != nil {
		log.Warn("Cannot send progress", slog.Any("error", err))
	}
}
