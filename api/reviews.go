package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-storefront/catalog"
)

const (
	defaultReviewLimit = 10
	maxReviewLimit     = 50
)

type ReviewAuthor struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type Review struct {
	ID          string       `json:"id"`
	Rating      int          `json:"rating"`
	Description string       `json:"description"`
	Timestamp   string       `json:"timestamp"`
	User        ReviewAuthor `json:"user"`
}

type ReviewPage struct {
	Reviews    []Review           `json:"reviews"`
	Pagination catalog.Pagination `json:"pagination"`
}

// ProductReviews lists reviews of a product. page is at least 1 and limit is
// clamped to 1..50, defaulting to 10.
func (c *Client) ProductReviews(ctx context.Context, productID int64, page, limit int) (*ReviewPage, error) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit <= 0:
		limit = defaultReviewLimit
	case limit > maxReviewLimit:
		limit = maxReviewLimit
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("product_id", strconv.FormatInt(productID, 10))

	var resp ReviewPage
	if err := c.Do(ctx, http.MethodGet, "/reviews?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateReview posts a rating. A blank description is left out.
func (c *Client) CreateReview(ctx context.Context, productID int64, rating int, description string) (*Review, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("rating must be between 1 and 5, got %d", rating)
	}
	payload := map[string]any{"product_id": productID, "rating": rating}
	if d := strings.TrimSpace(description); d != "" {
		payload["description"] = d
	}

	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodPost, "/reviews", payload, &raw); err != nil {
		return nil, err
	}
	return unwrapEnvelope[Review](raw, "review")
}

// unwrapEnvelope decodes raw as {key: T}, falling back to a bare T.
func unwrapEnvelope[T any](raw json.RawMessage, key string) (*T, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if inner, ok := envelope[key]; ok {
			raw = inner
		}
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &v, nil
}
