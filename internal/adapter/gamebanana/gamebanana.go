package gamebanana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/justa/mapupload/internal/common"
	"github.com/justa/mapupload/internal/entity"
	"github.com/justa/mapupload/internal/util"
)

const (
	itemType    = "Mod"
	itemFields  = "name,Files().aFiles()"
	maxBodySize = 1 << 20
)

var (
	modIDRegexp = regexp.MustCompile(`gamebanana\.com/mods/([0-9]+)`)
)

// modFile is one entry of the Files().aFiles() map.
type modFile struct {
	File        string `json:"_sFile"`
	Size        int64  `json:"_nFilesize"`
	DownloadURL string `json:"_sDownloadUrl"`
}

type resolver struct {
	cl     *http.Client
	apiURL string
	log    *slog.Logger
}

func NewResolver(cl *http.Client, apiURL string, log *slog.Logger) *resolver {
	return &resolver{
		cl:     cl,
		apiURL: apiURL,
		log:    log.With(slog.String("item", "GameBananaResolver")),
	}
}

// ParseModID extracts the numeric item id from a gamebanana.com/mods/<id> link.
func ParseModID(reference string) (int64, error) {
	m := modIDRegexp.FindStringSubmatch(reference)
	if m == nil {
		return 0, common.ErrInvalidReference
	}

	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, common.ErrInvalidReference
	}

	return id, nil
}

// Resolve looks up the item behind reference and describes its first file.
func (r *resolver) Resolve(ctx context.Context, reference string) (*entity.ModPackage, error) {
	id, err := ParseModID(reference)
	if err != nil {
		return nil, err
	}

	log := r.log.With(slog.Int64("mod_id", id))

	q := url.Values{}
	q.Set("itemtype", itemType)
	q.Set("itemid", strconv.FormatInt(id, 10))
	q.Set("fields", itemFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("cannot build request: %w", err)
	}

	resp, err := r.cl.Do(req)
	if err != nil {
		log.Error("Cannot fetch item data", slog.Any("error", err))

		return nil, fmt.Errorf("%w: %v", common.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Error("Unexpected status", slog.Int("status", resp.StatusCode))

		return nil, fmt.Errorf("%w: status %d", common.ErrUpstreamUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUpstreamUnavailable, err)
	}

	pkg, err := parsePayload(body)
	if err != nil {
		log.Error("Cannot parse item data", slog.Any("error", err))

		return nil, err
	}

	log.Info("Resolved mod", slog.String("name", pkg.DisplayName), slog.String("file", pkg.FileName), slog.Int64("size", pkg.FileSizeBytes))

	return pkg, nil
}

// parsePayload decodes `["<name>", {"<file id>": {...}, ...}]`.
func parsePayload(data []byte) (*entity.ModPackage, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedUpstreamPayload, err)
	}

	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: expected 2 elements, got %d", common.ErrMalformedUpstreamPayload, len(parts))
	}

	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil || name == "" {
		return nil, fmt.Errorf("%w: missing item name", common.ErrMalformedUpstreamPayload)
	}

	files, err := decodeFiles(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedUpstreamPayload, err)
	}

	if len(files) < 1 {
		return nil, fmt.Errorf("%w: item has no files", common.ErrMalformedUpstreamPayload)
	}

	first := files[0]
	if first.File == "" || first.DownloadURL == "" {
		return nil, fmt.Errorf("%w: file entry lacks name or download url", common.ErrMalformedUpstreamPayload)
	}

	if !validFileName(first.File) {
		return nil, fmt.Errorf("%w: bad file name %q", common.ErrMalformedUpstreamPayload, first.File)
	}

	return &entity.ModPackage{
		DisplayName:   name,
		FileName:      first.File,
		FileSizeBytes: first.Size,
		DownloadURL:   first.DownloadURL,
	}, nil
}

// validFileName reports whether name yields both a staging file and an extraction
// directory distinct from the staging roots.
func validFileName(name string) bool {
	switch filepath.Base(name) {
	case ".", "..", string(filepath.Separator):
		return false
	}

	switch util.TrimExt(name) {
	case "", ".", "..":
		return false
	}

	return true
}

// decodeFiles keeps the document order of the files object, which a map would lose.
func decodeFiles(data json.RawMessage) ([]*modFile, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch tok {
	case json.Delim('{'):
	case json.Delim('['):
		// An item without files is encoded as an empty array.
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected files token %v", tok)
	}

	var files []*modFile
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, err
		}

		var f modFile
		if err := dec.Decode(&f); err != nil {
			return nil, err
		}

		files = append(files, &f)
	}

	return files, nil
}
