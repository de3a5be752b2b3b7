package tabular

import (
	"context"
	"fmt"
	"net/http"
	"time"

	appErrors "github.com/noah-isme/course-ops-api/pkg/errors"
)

// HTTPSource fetches a published CSV worksheet over HTTP. Spreadsheet
// providers rate limit these exports, which surfaces as HTTP 429 and is
// reported as ErrRateLimited so callers can back off and retry.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource returns a source that downloads the CSV at url.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Read downloads and parses the worksheet.
func (s *HTTPSource) Read(ctx context.Context) (*Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build source request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch csv source: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, appErrors.ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch csv source: unexpected status %d", resp.StatusCode)
	}

	return parseCSV(resp.Body)
}
