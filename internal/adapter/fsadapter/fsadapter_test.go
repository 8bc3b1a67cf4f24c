package fsadapter

import (
	"bytes"
	"crypto/rand"
	"io"
	"log/slog"
	"os"
	"syscall"
	"testing"

	"github.com/justa/mapupload/internal/common"
	"github.com/justa/mapupload/internal/entity"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T) (*fsAdapter, afero.Fs) {
	t.Helper()

	fs := afero.NewMemMapFs()
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	return NewFSAdapterWithFS(fs, log), fs
}

func TestFindAssets(t *testing.T) {
	testCases := []struct {
		name     string
		files    []string
		expected map[string]entity.AssetClass
	}{
		{
			name:     "Empty tree",
			expected: map[string]entity.AssetClass{},
		},
		{
			name:  "Nested archive layout",
			files: []string{"foo/maps/foo.bsp", "foo/maps/foo.nav", "foo/readme.txt", "foo/materials/foo.vmt"},
			expected: map[string]entity.AssetClass{
				"foo.bsp": entity.AssetClassMapGeometry,
				"foo.nav": entity.AssetClassNavigationData,
			},
		},
		{
			name:  "Upper case extension",
			files: []string{"BAR.BSP", "bar.bsp.bak"},
			expected: map[string]entity.AssetClass{
				"BAR.BSP": entity.AssetClassMapGeometry,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, fs := newTestAdapter(t)
			require.NoError(t, fs.MkdirAll("extracted/x", 0o755))

			for _, f := range tc.files {
				require.NoError(t, afero.WriteFile(fs, "extracted/x/"+f, []byte(f), 0o644))
			}

			assets, err := a.FindAssets("extracted/x")
			require.NoError(t, err)

			found := make(map[string]entity.AssetClass)
			for _, asset := range assets {
				found[asset.Name] = asset.Class
			}
			require.Equal(t, tc.expected, found)
		})
	}
}

func TestCompressRoundTrip(t *testing.T) {
	random := make([]byte, 64*1024)
	_, err := rand.Read(random)
	require.NoError(t, err)

	testCases := []struct {
		name    string
		content []byte
	}{
		{name: "Empty", content: []byte{}},
		{name: "Repetitive", content: bytes.Repeat([]byte("VBSP"), 100000)},
		{name: "Random", content: random},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, fs := newTestAdapter(t)
			require.NoError(t, afero.WriteFile(fs, "foo.bsp", tc.content, 0o644))

			require.NoError(t, a.Compress("foo.bsp", "foo.bsp.bz2"))
			require.NoError(t, a.Decompress("foo.bsp.bz2", "restored.bsp"))

			restored, err := afero.ReadFile(fs, "restored.bsp")
			require.NoError(t, err)
			require.True(t, bytes.Equal(tc.content, restored))
		})
	}
}

func TestDecompressGarbage(t *testing.T) {
	a, fs := newTestAdapter(t)
	require.NoError(t, afero.WriteFile(fs, "bad.bsp.bz2", []byte("not bzip2 at all"), 0o644))

	require.Error(t, a.Decompress("bad.bsp.bz2", "bad.bsp"))
	require.False(t, a.Exists("bad.bsp"))
}

func TestMove(t *testing.T) {
	a, fs := newTestAdapter(t)
	require.NoError(t, fs.MkdirAll("maps", 0o755))
	require.NoError(t, afero.WriteFile(fs, "foo.bsp", []byte("bsp"), 0o644))

	require.NoError(t, a.Move("foo.bsp", "maps/foo.bsp"))
	require.False(t, a.Exists("foo.bsp"))

	data, err := afero.ReadFile(fs, "maps/foo.bsp")
	require.NoError(t, err)
	require.Equal(t, []byte("bsp"), data)

	require.Error(t, a.Move("missing.bsp", "maps/missing.bsp"))
}

func TestMkdirExclusive(t *testing.T) {
	a, _ := newTestAdapter(t)

	require.NoError(t, a.MkdirExclusive("extracted/foo"))
	require.ErrorIs(t, a.MkdirExclusive("extracted/foo"), common.ErrDirectoryExists)
}

func TestRemoveMissingIsNoop(t *testing.T) {
	a, _ := newTestAdapter(t)

	require.NoError(t, a.Remove("nothing-here"))
	require.NoError(t, a.RemoveAll("nothing-here"))
}

// renameFailFs reports err from every Rename, like a rename between two mounts.
type renameFailFs struct {
	afero.Fs
	err error
}

func (f *renameFailFs) Rename(oldname, newname string) error {
	return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: f.err}
}

func TestMoveAcrossDevices(t *testing.T) {
	testCases := []struct {
		name string
		mode os.FileMode
	}{
		{name: "Private file", mode: 0o600},
		{name: "Executable", mode: 0o755},
		{name: "Default", mode: 0o644},
	}

	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fs := &renameFailFs{Fs: afero.NewMemMapFs(), err: syscall.EXDEV}
			a := NewFSAdapterWithFS(fs, log)

			require.NoError(t, fs.MkdirAll("/srv/maps", 0o755))
			require.NoError(t, afero.WriteFile(fs, "/tmp/foo.bsp", []byte("VBSP"), tc.mode))

			require.NoError(t, a.Move("/tmp/foo.bsp", "/srv/maps/foo.bsp"))
			require.False(t, a.Exists("/tmp/foo.bsp"))

			data, err := afero.ReadFile(fs, "/srv/maps/foo.bsp")
			require.NoError(t, err)
			require.Equal(t, []byte("VBSP"), data)

			info, err := fs.Stat("/srv/maps/foo.bsp")
			require.NoError(t, err)
			require.Equal(t, tc.mode, info.Mode().Perm())
		})
	}
}

func TestMoveRenameErrorKeepsSource(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	fs := &renameFailFs{Fs: afero.NewMemMapFs(), err: syscall.EACCES}
	a := NewFSAdapterWithFS(fs, log)

	require.NoError(t, afero.WriteFile(fs, "/tmp/foo.bsp", []byte("VBSP"), 0o644))

	require.Error(t, a.Move("/tmp/foo.bsp", "/srv/maps/foo.bsp"))
	require.True(t, a.Exists("/tmp/foo.bsp"))
	require.False(t, a.Exists("/srv/maps/foo.bsp"))
}
