package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/spf13/afero"
)

type fetcher struct {
	fs        afero.Fs
	cl        *http.Client
	userAgent string
	log       *slog.Logger
}

func NewFetcher(fs afero.Fs, cl *http.Client, userAgent string, log *slog.Logger) *fetcher {
	return &fetcher{
		fs:        fs,
		cl:        cl,
		userAgent: userAgent,
		log:       log.With(slog.String("item", "Fetcher")),
	}
}

// Fetch streams the body of url into dst and returns the number of bytes written.
// A partially written dst is removed on failure.
func (f *fetcher) Fetch(ctx context.Context, url, dst string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("cannot build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.cl.Do(req)
	if err != nil {
		return 0, fmt.Errorf("cannot get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("cannot get %s: unexpected status %d", url, resp.StatusCode)
	}

	file, err := f.fs.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("cannot create %s: %w", dst, err)
	}

	n, err := io.Copy(file, resp.Body)
	if cerr := file.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		if rerr := f.fs.Remove(dst); rerr != nil {
			f.log.Warn("Cannot remove partial download", slog.String("path", dst), slog.Any("error", rerr))
		}

		return 0, fmt.Errorf("cannot write %s: %w", dst, err)
	}

	f.log.Debug("Downloaded", slog.String("url", url), slog.String("path", dst), slog.Int64("bytes", n))

	return n, nil
}
