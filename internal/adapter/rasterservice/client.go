package rasterservice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb"

	"github.com/Riverscapes/hydrologic-regimes-tool/internal/domain"
)

// Client implements domain.RasterSampler against a raster service that
// answers point queries.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a raster service client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// ValueAt queries the value of raster at pt.
func (c *Client) ValueAt(ctx context.Context, pt orb.Point, raster domain.RasterHandle) (float64, bool, error) {
	u := fmt.Sprintf("%s/layers/%s/value", c.baseURL, url.PathEscape(string(raster)))
	params := url.Values{
		"x": {strconv.FormatFloat(pt.X(), 'f', -1, 64)},
		"y": {strconv.FormatFloat(pt.Y(), 'f', -1, 64)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+params.Encode(), nil)
	if err != nil {
		return 0, false, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("sample %s: %w", raster, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, false, fmt.Errorf("raster service error: status %d: %s", resp.StatusCode, body)
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return 0, false, fmt.Errorf("decode response: %w", err)
	}

	if r.NoData || r.Value == nil {
		c.logger.Debug("no data", "raster", string(raster), "x", pt.X(), "y", pt.Y())
		return 0, false, nil
	}
	return *r.Value, true, nil
}

// Raster service response types.

type response struct {
	Value  *float64 `json:"value"`
	NoData bool     `json:"nodata"`
}
