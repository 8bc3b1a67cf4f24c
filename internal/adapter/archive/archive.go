package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

var ErrNotArchive = errors.New("not an archive")

// extractor unpacks archives on the host filesystem. The format is detected
// from the archive content, the file name is ignored.
type extractor struct {
	log *slog.Logger
}

func NewExtractor(log *slog.Logger) *extractor {
	return &extractor{
		log: log.With(slog.String("item", "Extractor")),
	}
}

func (e *extractor) Extract(ctx context.Context, src, dstDir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	log := e.log.With(slog.String("src", src), slog.String("dst", dstDir))

	if err := e.extract(ctx, src, dstDir); err != nil {
		log.Error("Cannot extract", slog.Any("error", err))

		return fmt.Errorf("cannot extract %s: %w", src, err)
	}

	log.Info("Extracted")

	return nil
}

func (e *extractor) extract(ctx context.Context, src, dstDir string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	format, _, err := archives.Identify(ctx, "", f)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotArchive, err)
	}

	ex, ok := format.(archives.Extractor)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotArchive, format.Extension())
	}

	// Zip and 7z readers need random access, so hand over the file itself.
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("cannot rewind archive: %w", err)
	}

	return ex.Extract(ctx, f, func(ctx context.Context, info archives.FileInfo) error {
		return writeEntry(dstDir, info)
	})
}

func writeEntry(dstDir string, info archives.FileInfo) error {
	target, ok := entryPath(dstDir, info.NameInArchive)
	if !ok {
		return nil
	}

	switch {
	case info.IsDir():
		return os.MkdirAll(target, dirPerm)
	case !info.Mode().IsRegular():
		// Links and devices carry no map data.
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
		return err
	}

	perm := info.Mode().Perm()
	if perm == 0 {
		perm = filePerm
	}

	in, err := info.Open()
	if err != nil {
		return fmt.Errorf("cannot open %s in archive: %w", info.NameInArchive, err)
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()

		return fmt.Errorf("cannot write %s: %w", target, err)
	}

	return out.Close()
}

// entryPath maps an entry name below dstDir. Parent references cannot climb out of it.
func entryPath(dstDir, name string) (string, bool) {
	clean := path.Clean("/" + strings.ReplaceAll(name, `\`, "/"))
	if clean == "/" {
		return "", false
	}

	return filepath.Join(dstDir, filepath.FromSlash(clean[1:])), true
}
