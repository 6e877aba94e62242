package products

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
	"github.com/angelmondragon/backoffice-backend/pkg/types"
)

const responseBodyReadLimit int64 = 1024

// HTTPLookup resolves scan codes through a remote back-office API.
type HTTPLookup struct {
	httpClient *http.Client
	baseURL    string
}

// LookupOption configures optional HTTPLookup behavior.
type LookupOption func(*HTTPLookup)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) LookupOption {
	return func(h *HTTPLookup) {
		if client != nil {
			h.httpClient = client
		}
	}
}

func NewHTTPLookup(baseURL string, opts ...LookupOption) (*HTTPLookup, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("lookup base url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid lookup base url: %w", err)
	}
	h := &HTTPLookup{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// LookupByCode calls GET /api/v1/products/by-code/{code}. A 404 maps to
// NOT_FOUND; any other failure is a DEPENDENCY_ERROR.
func (h *HTTPLookup) LookupByCode(ctx context.Context, code string) (types.ProductRecord, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return types.ProductRecord{}, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}

	endpoint := fmt.Sprintf("%s/api/v1/products/by-code/%s", h.baseURL, url.PathEscape(trimmed))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return types.ProductRecord{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build lookup request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return types.ProductRecord{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup service unavailable")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return types.ProductRecord{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return types.ProductRecord{}, pkgerrors.Wrap(pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"lookup request failed")
	}

	var envelope struct {
		Data types.ProductRecord `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return types.ProductRecord{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode lookup response")
	}
	if envelope.Data.Code == "" {
		envelope.Data.Code = trimmed
	}
	return envelope.Data, nil
}
