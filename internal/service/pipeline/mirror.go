package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/justa/mapupload/internal/adapter/fastdl"
	"github.com/justa/mapupload/internal/common"
	"github.com/justa/mapupload/internal/entity"
)

func (p *Pipeline) runMirror(ctx context.Context, job *entity.MirrorJob, log *slog.Logger) error {
	p.notify(ctx, job, log, "Processing Avocado's FastDL request **%s** by %s", job.MapName, job.Requester)

	files := []string{fastdl.MapFile(job.MapName)}
	if job.HasAuxiliaryFile {
		files = append(files, fastdl.NavFile(job.MapName))
	}

	for _, f := range files {
		if err := p.mirrorFile(ctx, job, f, log); err != nil {
			return err
		}
	}

	p.notify(ctx, job, log, "Avocado's FastDL request **%s** completed %s", job.MapName, job.Requester)

	return nil
}

// mirrorFile deploys one compressed mirror file: decompressed into the maps tree,
// the downloaded original into the FastDL tree. Existing files are replaced.
func (p *Pipeline) mirrorFile(ctx context.Context, job *entity.MirrorJob, fileName string, log *slog.Logger) (err error) {
	downloaded := p.staging.DownloadPath(fileName)
	mapPath := filepath.Join(p.trees.MapsDir, strings.TrimSuffix(fileName, fastdl.CompressedExt))
	fastdlPath := filepath.Join(p.trees.FastDLDir, fileName)

	defer func() {
		if err == nil {
			return
		}

		if rerr := p.files.Remove(downloaded); rerr != nil {
			log.Warn("Cannot remove download", slog.Any("error", rerr))
		}
	}()

	p.notify(ctx, job, log, "Downloading %s...", fileName)
	n, err := p.fetcher.Fetch(ctx, p.mirror.AssetURL(fileName), downloaded)
	if err != nil {
		return common.NewPipelineError(StageDownload, err)
	}
	log.Info("Downloaded", slog.String("file", fileName), slog.Int64("bytes", n))

	p.notify(ctx, job, log, "%s downloaded, extracting...", fileName)
	if err := p.files.Remove(mapPath); err != nil {
		return common.NewPipelineError(StageExtract, err)
	}

	if err := p.files.Decompress(downloaded, mapPath); err != nil {
		return common.NewPipelineError(StageExtract, err)
	}

	if err := p.files.Chown(mapPath, p.trees.MapsOwner); err != nil {
		return common.NewPipelineError(StageDeploy, err)
	}
	p.notify(ctx, job, log, "Extraction complete")

	if err := p.files.Remove(fastdlPath); err != nil {
		return common.NewPipelineError(StageDeploy, err)
	}

	if err := p.files.Move(downloaded, fastdlPath); err != nil {
		return common.NewPipelineError(StageDeploy, err)
	}

	if err := p.files.Chown(fastdlPath, p.trees.FastDLOwner); err != nil {
		return common.NewPipelineError(StageDeploy, err)
	}

	log.Info("Deployed", slog.String("map", mapPath), slog.String("fastdl", fastdlPath))

	return nil
}
