package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/justa/mapupload/internal/adapter/fastdl"
	"github.com/justa/mapupload/internal/common"
	"github.com/justa/mapupload/internal/entity"
	"github.com/justa/mapupload/internal/util"
)

func (p *Pipeline) runModPackage(ctx context.Context, job *entity.ModPackageJob, log *slog.Logger) (err error) {
	fileName := filepath.Base(job.FileName)
	archivePath := p.staging.DownloadPath(fileName)
	extractDir := p.staging.ExtractPath(util.TrimExt(fileName))
	extractDirCreated := false

	defer func() {
		if err == nil {
			return
		}

		// Leave staging usable for the next job.
		if rerr := p.files.Remove(archivePath); rerr != nil {
			log.Warn("Cannot remove archive", slog.Any("error", rerr))
		}
		if extractDirCreated {
			if rerr := p.files.RemoveAll(extractDir); rerr != nil {
				log.Warn("Cannot remove extraction dir", slog.Any("error", rerr))
			}
		}
	}()

	p.notify(ctx, job, log, "Processing Gamebanana request **%s** by %s", job.DisplayName, job.Requester)

	if err := p.checkSpace(ctx, job, log); err != nil {
		return common.NewPipelineError(StagePreflight, err)
	}

	p.notify(ctx, job, log, "Downloading %s...", fileName)
	n, err := p.fetcher.Fetch(ctx, job.DownloadURL, archivePath)
	if err != nil {
		return common.NewPipelineError(StageDownload, err)
	}
	log.Info("Downloaded archive", slog.String("path", archivePath), slog.Int64("bytes", n))

	p.notify(ctx, job, log, "%s downloaded, extracting...", fileName)
	if err := p.files.MkdirExclusive(extractDir); err != nil {
		return common.NewPipelineError(StageExtract, err)
	}
	extractDirCreated = true

	if err := p.extractor.Extract(ctx, archivePath, extractDir); err != nil {
		return common.NewPipelineError(StageExtract, err)
	}

	assets, err := p.files.FindAssets(extractDir)
	if err != nil {
		return common.NewPipelineError(StageClassify, err)
	}

	names := make([]string, 0, len(assets))
	for _, asset := range assets {
		names = append(names, asset.Name)
	}
	log.Info("Classified files", slog.Int("count", len(assets)), slog.Any("files", names))
	p.notify(ctx, job, log, "Extraction complete, %d relevant file(s) found: %s", len(assets), strings.Join(names, ", "))

	p.notify(ctx, job, log, "Compressing map(s) for FastDL...")
	for _, asset := range assets {
		if err := p.deployAsset(asset); err != nil {
			return common.NewPipelineError(StageDeploy, err)
		}
		log.Info("Deployed", slog.String("file", asset.Name), slog.String("class", asset.Class.String()))
	}

	if err := p.files.Remove(archivePath); err != nil {
		return common.NewPipelineError(StageCleanup, err)
	}
	if err := p.files.RemoveAll(extractDir); err != nil {
		return common.NewPipelineError(StageCleanup, err)
	}

	p.notify(ctx, job, log, "Gamebanana request **%s** completed %s", job.DisplayName, job.Requester)

	return nil
}

// deployAsset writes the compressed copy to the FastDL tree and moves the original to the maps tree.
func (p *Pipeline) deployAsset(asset *entity.AssetFile) error {
	compressed := filepath.Join(p.trees.FastDLDir, asset.Name+fastdl.CompressedExt)
	deployed := filepath.Join(p.trees.MapsDir, asset.Name)

	if err := p.files.Compress(asset.Path, compressed); err != nil {
		return err
	}

	if err := p.files.Move(asset.Path, deployed); err != nil {
		return err
	}

	if err := p.files.Chown(deployed, p.trees.MapsOwner); err != nil {
		return err
	}

	return p.files.Chown(compressed, p.trees.FastDLOwner)
}

func (p *Pipeline) checkSpace(ctx context.Context, job *entity.ModPackageJob, log *slog.Logger) error {
	if p.space == nil || job.FileSizeBytes <= 0 {
		return nil
	}

	free, err := p.space.Free(ctx, p.staging.DownloadDir())
	if err != nil {
		log.Warn("Cannot check free space, continuing", slog.Any("error", err))

		return nil
	}

	if uint64(job.FileSizeBytes) > free {
		return fmt.Errorf("%w: need %d bytes, %d available", common.ErrInsufficientSpace, job.FileSizeBytes, free)
	}

	return nil
}
