// Package catalog reads the public product catalog. Responses are cached
// according to their Cache-Control headers, in memory or on disk.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
	"github.com/jrsteele09/go-storefront/internal/errors"
)

type Service struct {
	baseURL    string
	httpClient *http.Client
}

// NewCachingHTTPClient caches on disk under cacheDir, or in memory when
// cacheDir is empty.
func NewCachingHTTPClient(cacheDir string) *http.Client {
	if cacheDir == "" {
		return &http.Client{Transport: httpcache.NewTransport(httpcache.NewMemoryCache())}
	}
	return &http.Client{Transport: httpcache.NewTransport(diskcache.New(cacheDir))}
}

// NewService uses an in-memory caching client when httpClient is nil.
func NewService(baseURL string, httpClient *http.Client) *Service {
	if httpClient == nil {
		httpClient = NewCachingHTTPClient("")
	}
	return &Service{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

func (s *Service) ListProducts(ctx context.Context, params ListParams) (*ProductPage, error) {
	q := url.Values{}
	setIf(q, "search", params.Search)
	setIf(q, "category", params.Category)
	setIf(q, "sort", params.Sort)
	setIf(q, "storeId", params.StoreID)
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	if params.PageSize > 0 {
		q.Set("size", strconv.Itoa(params.PageSize))
	}

	endpoint := s.baseURL + "/products"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var page ProductPage
	if err := s.get(ctx, endpoint, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*Product, error) {
	var p Product
	if err := s.get(ctx, fmt.Sprintf("%s/products/%d", s.baseURL, id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.Wrapf(errors.ErrNotFound, "GET %s", endpoint)
	case resp.StatusCode >= 300:
		return fmt.Errorf("GET %s: status %d", endpoint, resp.StatusCode)
	}

	// The body must be read to EOF for httpcache to store the response.
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", endpoint, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
