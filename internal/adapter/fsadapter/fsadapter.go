package fsadapter

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/dsnet/compress/bzip2"
	"github.com/justa/mapupload/internal/common"
	"github.com/justa/mapupload/internal/entity"
	"github.com/spf13/afero"
)

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

var assetClasses = map[string]entity.AssetClass{
	".bsp": entity.AssetClassMapGeometry,
	".nav": entity.AssetClassNavigationData,
}

type fsAdapter struct {
	fs  afero.Fs
	log *slog.Logger
}

func NewFSAdapter(log *slog.Logger) *fsAdapter {
	return NewFSAdapterWithFS(afero.NewOsFs(), log)
}

func NewFSAdapterWithFS(fs afero.Fs, log *slog.Logger) *fsAdapter {
	return &fsAdapter{
		fs:  fs,
		log: log.With(slog.String("item", "FSAdapter")),
	}
}

// FindAssets walks root and returns every map-geometry and navigation-data file, sorted by path.
func (a *fsAdapter) FindAssets(root string) ([]*entity.AssetFile, error) {
	var assets []*entity.AssetFile

	err := afero.Walk(a.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		class, ok := assetClasses[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return nil
		}

		assets = append(assets, &entity.AssetFile{
			Path:  path,
			Name:  filepath.Base(path),
			Class: class,
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot scan %s: %w", root, err)
	}

	sort.Slice(assets, func(i, j int) bool {
		return assets[i].Path < assets[j].Path
	})

	return assets, nil
}

// Compress writes a bzip2 copy of src to dst in one pass.
func (a *fsAdapter) Compress(src, dst string) error {
	in, err := a.fs.Open(src)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", src, err)
	}
	defer in.Close()

	out, err := a.fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", dst, err)
	}

	bw, err := bzip2.NewWriter(out, &bzip2.WriterConfig{Level: bzip2.BestCompression})
	if err != nil {
		out.Close()

		return fmt.Errorf("cannot create bzip2 writer: %w", err)
	}

	_, err = io.Copy(bw, in)
	if cerr := bw.Close(); err == nil {
		err = cerr
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		a.fs.Remove(dst)

		return fmt.Errorf("cannot compress %s: %w", src, err)
	}

	return nil
}

// Decompress expands the single-entry bzip2 file src into dst.
func (a *fsAdapter) Decompress(src, dst string) error {
	in, err := a.fs.Open(src)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", src, err)
	}
	defer in.Close()

	br, err := bzip2.NewReader(in, nil)
	if err != nil {
		return fmt.Errorf("cannot create bzip2 reader: %w", err)
	}
	defer br.Close()

	out, err := a.fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", dst, err)
	}

	_, err = io.Copy(out, br)
	if cerr := out.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		a.fs.Remove(dst)

		return fmt.Errorf("cannot decompress %s: %w", src, err)
	}

	return nil
}

// Move renames src to dst, copying across filesystems when a rename is not possible.
func (a *fsAdapter) Move(src, dst string) error {
	err := a.fs.Rename(src, dst)
	if err == nil {
		return nil
	}

	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("cannot move %s to %s: %w", src, dst, err)
	}

	a.log.Debug("Cross-device move, copying", slog.String("src", src), slog.String("dst", dst))

	if err := a.copyFile(src, dst); err != nil {
		return fmt.Errorf("cannot move %s to %s: %w", src, dst, err)
	}

	return a.fs.Remove(src)
}

func (a *fsAdapter) copyFile(src, dst string) error {
	in, err := a.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := a.fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		a.fs.Remove(dst)
	}

	return err
}

func (a *fsAdapter) Chown(path string, owner entity.Ownership) error {
	if err := a.fs.Chown(path, owner.UID, owner.GID); err != nil {
		return fmt.Errorf("cannot chown %s to %d:%d: %w", path, owner.UID, owner.GID, err)
	}

	return nil
}

// MkdirExclusive creates dir and fails with common.ErrDirectoryExists if it is already there.
func (a *fsAdapter) MkdirExclusive(dir string) error {
	if a.Exists(dir) {
		return fmt.Errorf("%w: %s", common.ErrDirectoryExists, dir)
	}

	if err := a.fs.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}

	return nil
}

func (a *fsAdapter) Exists(path string) bool {
	_, err := a.fs.Stat(path)

	return err == nil
}

// Remove deletes path, ignoring a path that does not exist.
func (a *fsAdapter) Remove(path string) error {
	if err := a.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot remove %s: %w", path, err)
	}

	return nil
}

func (a *fsAdapter) RemoveAll(path string) error {
	if err := a.fs.RemoveAll(path); err != nil {
		return fmt.Errorf("cannot remove %s: %w", path, err)
	}

	return nil
}
