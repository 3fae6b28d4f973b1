package boundary

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/config"
	apperrors "github.com/Pracylop/uganda-electoral-map-sub003/pkg/errors"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/logger"
)

// Fetcher retrieves the compressed boundary payload from its fixed,
// versioned location. Failures wrap ErrBoundariesUnavailable; the fetcher
// never retries — that is the caller's decision.
type Fetcher struct {
	client *http.Client
	url    string
	logger *slog.Logger
}

// NewFetcher creates a Fetcher for the configured payload URL.
func NewFetcher(cfg config.BoundaryConfig) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: cfg.FetchTimeout},
		url:    cfg.PayloadURL,
		logger: logger.WithComponent("boundary-fetcher"),
	}
}

// Fetch downloads the payload and returns it decompressed. Both gzipped and
// plain payloads are accepted; gzip is detected by magic bytes rather than
// trusting Content-Encoding, which object stores set inconsistently.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", apperrors.ErrBoundariesUnavailable, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrBoundariesUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d from %s", apperrors.ErrBoundariesUnavailable, resp.StatusCode, f.url)
	}

	br := bufio.NewReader(resp.Body)
	var body io.Reader = br
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: opening gzip stream: %v", apperrors.ErrBoundariesUnavailable, err)
		}
		defer gz.Close()
		body = gz
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading payload: %v", apperrors.ErrBoundariesUnavailable, err)
	}
	f.logger.Debug("payload fetched", "url", f.url, "bytes", len(data))
	return data, nil
}
