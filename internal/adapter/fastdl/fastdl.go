package fastdl

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/justa/mapupload/internal/common"
	"github.com/justa/mapupload/internal/entity"
)

const (
	mapsPath = "/maps/"

	MapExt        = ".bsp"
	NavExt        = ".nav"
	CompressedExt = ".bz2"
)

// The mirror serves maps through a redirect to its storage, while navigation files
// are answered directly. Both conventions are part of the probe contract.
const (
	mapFoundStatus = http.StatusFound
	navFoundStatus = http.StatusOK
)

type client struct {
	cl        *http.Client
	baseURL   string
	userAgent string
	log       *slog.Logger
}

// NewClient returns a probe client. Redirects are never followed so that the mirror's
// redirect status stays observable; the transport settings of cl are kept.
func NewClient(cl *http.Client, baseURL, userAgent string, log *slog.Logger) *client {
	probe := *cl
	probe.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &client{
		cl:        &probe,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		log:       log.With(slog.String("item", "FastDLClient")),
	}
}

// MapFile returns the compressed map file name for mapName.
func MapFile(mapName string) string {
	return mapName + MapExt + CompressedExt
}

// NavFile returns the compressed navigation file name for mapName.
func NavFile(mapName string) string {
	return mapName + NavExt + CompressedExt
}

// AssetURL is the mirror download location of a compressed file.
func (c *client) AssetURL(fileName string) string {
	return c.baseURL + mapsPath + fileName
}

func (c *client) Probe(ctx context.Context, mapName string) (*entity.MirrorProbe, error) {
	log := c.log.With(slog.String("map", mapName))

	status, err := c.head(ctx, c.AssetURL(MapFile(mapName)))
	if err != nil {
		log.Error("Cannot check map", slog.Any("error", err))

		return nil, fmt.Errorf("%w: %v", common.ErrAssetNotFound, err)
	}

	if status != mapFoundStatus {
		log.Info("Map not found", slog.Int("status", status))

		return nil, common.ErrAssetNotFound
	}

	probe := &entity.MirrorProbe{Found: true}

	status, err = c.head(ctx, c.AssetURL(NavFile(mapName)))
	if err != nil {
		log.Warn("Cannot check nav file, assuming none", slog.Any("error", err))

		return probe, nil
	}

	probe.HasAuxiliary = status == navFoundStatus
	log.Info("Map found", slog.Bool("has_nav", probe.HasAuxiliary))

	return probe, nil
}

func (c *client) head(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, fmt.Errorf("cannot build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.cl.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()

	return resp.StatusCode, nil
}
