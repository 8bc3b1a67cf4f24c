package staging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/justa/mapupload/internal/config"
	"github.com/spf13/afero"
)

const dirPerm os.FileMode = 0o755

// Area manages the shared download and extraction scratch directories.
type Area struct {
	fs          afero.Fs
	downloadDir string
	extractDir  string
	log         *slog.Logger
}

func NewArea(fs afero.Fs, cfg *config.StagingConfig, log *slog.Logger) *Area {
	return &Area{
		fs:          fs,
		downloadDir: cfg.DownloadDir,
		extractDir:  cfg.ExtractDir,
		log:         log.With(slog.String("item", "StagingArea")),
	}
}

// Reset removes both staging directories with their contents and recreates them empty.
func (a *Area) Reset() error {
	if err := a.Cleanup(); err != nil {
		return err
	}

	for _, dir := range []string{a.downloadDir, a.extractDir} {
		if err := a.fs.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("cannot create staging dir %s: %w", dir, err)
		}
	}

	a.log.Info("Staging reset", slog.String("download_dir", a.downloadDir), slog.String("extract_dir", a.extractDir))

	return nil
}

// Cleanup removes both staging directories.
func (a *Area) Cleanup() error {
	for _, dir := range []string{a.downloadDir, a.extractDir} {
		if err := a.fs.RemoveAll(dir); err != nil {
			return fmt.Errorf("cannot remove staging dir %s: %w", dir, err)
		}
	}

	return nil
}

func (a *Area) DownloadDir() string {
	return a.downloadDir
}

func (a *Area) DownloadPath(name string) string {
	return filepath.Join(a.downloadDir, filepath.Base(name))
}

func (a *Area) ExtractPath(name string) string {
	return filepath.Join(a.extractDir, filepath.Base(name))
}
