// Package catalog reads product and page content from the headless content
// service. Content is query-addressed and read-only; all writes happen in the
// content studio, never from this client.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aromahaus/storefront-client/pkg/config"
	pkgerrors "github.com/aromahaus/storefront-client/pkg/errors"
	"github.com/aromahaus/storefront-client/pkg/logger"
)

const contentBodyReadLimit int64 = 4 << 20

// ContentClient speaks the content service's HTTP query API:
// GET {base}/v{apiVersion}/data/query/{dataset}?query=...&$param=<json>.
type ContentClient struct {
	httpClient *http.Client
	queryURL   string
	logger     *logger.Logger
}

// NewContentClient builds the client from content config. The CDN host is
// preferred when enabled; it serves cached reads which is all this client
// ever issues.
func NewContentClient(cfg config.ContentConfig, logg *logger.Logger) (*ContentClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("content base url or project id is required")
		}
		host := "api"
		if cfg.UseCDN {
			host = "apicdn"
		}
		base = fmt.Sprintf("https://%s.%s.sanity.io", cfg.ProjectID, host)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ContentClient{
		httpClient: &http.Client{Timeout: timeout},
		queryURL:   fmt.Sprintf("%s/v%s/data/query/%s", base, cfg.APIVersion, cfg.Dataset),
		logger:     logg,
	}, nil
}

// Fetch runs one content query and decodes the result into out. Params are
// bound as $-prefixed JSON query parameters.
func (c *ContentClient) Fetch(ctx context.Context, query string, params map[string]any, out any) error {
	values := url.Values{}
	values.Set("query", query)
	for name, value := range params {
		encoded, err := json.Marshal(value)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode content query param "+name)
		}
		values.Set("$"+name, string(encoded))
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.queryURL+"?"+values.Encode(), nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build content query request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error(c.logger.WithOperation(ctx, "content_query"), "content query failed", err)
		return pkgerrors.Wrap(pkgerrors.CodeRemote, err, "execute content query")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, contentBodyReadLimit))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeRemote, err, "read content query response")
	}
	if resp.StatusCode != http.StatusOK {
		lctx := c.logger.WithField(ctx, "status", resp.StatusCode)
		c.logger.Warn(lctx, "content service returned error status")
		return pkgerrors.New(pkgerrors.CodeRemote, fmt.Sprintf("content query returned status %d", resp.StatusCode))
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeRemote, err, "decode content query envelope")
	}
	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeRemote, err, "decode content query result")
	}
	return nil
}
