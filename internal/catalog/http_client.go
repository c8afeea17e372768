package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hperssn/benchtop/internal/domain"
	"github.com/hperssn/benchtop/internal/logfields"
	"github.com/hperssn/benchtop/internal/retry"
)

// HTTPClient reads checklists from the data service's GET /checklists.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	policy  retry.Policy
	logger  *slog.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration, policy retry.Policy, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		policy:  policy,
		logger:  logger,
	}
}

// List returns every valid checklist. Records that fail validation are
// logged and skipped.
func (c *HTTPClient) List(ctx context.Context) ([]*domain.Checklist, error) {
	var records []Record
	if err := c.getJSON(ctx, "/checklists", &records); err != nil {
		return nil, err
	}

	out := make([]*domain.Checklist, 0, len(records))
	for _, rec := range records {
		def, err := rec.Definition()
		if err != nil {
			c.logger.Warn("Skipping invalid checklist", logfields.ChecklistID(rec.ID), logfields.Error(err))
			continue
		}
		out = append(out, def)
	}
	return out, nil
}

// Get looks a checklist up by id in the catalog listing.
func (c *HTTPClient) Get(ctx context.Context, id string) (*domain.Checklist, error) {
	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	return find(all, id)
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	url := c.baseURL + path

	return retry.Do(ctx, c.policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("catalog request: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			_, _ = io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("catalog %s returned %d", path, resp.StatusCode)
		case resp.StatusCode == http.StatusNotFound:
			return retry.Permanent(fmt.Errorf("%w: %s", ErrNotFound, path))
		case resp.StatusCode >= 400:
			return retry.Permanent(fmt.Errorf("catalog %s returned %d", path, resp.StatusCode))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retry.Permanent(fmt.Errorf("decode catalog response: %w", err))
		}
		return nil
	}, func(attempt int, err error, next time.Duration) {
		c.logger.Warn("Retrying catalog request",
			logfields.Path(path),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", next),
			logfields.Error(err))
	})
}
