package api

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-storefront/catalog"
	"github.com/jrsteele09/go-storefront/profile"
)

// CartLine is one line of a cart as sent to PUT /cart.
type CartLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// ServerCartItem is one line of the server cart, with the product embedded.
type ServerCartItem struct {
	ProductID int64            `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Product   *catalog.Product `json:"product,omitempty"`
}

type CartResponse struct {
	Items     []ServerCartItem `json:"items"`
	Total     float64          `json:"total,omitempty"`
	ItemCount int              `json:"item_count,omitempty"`
}

type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

func (c *Client) GetCart(ctx context.Context) (*CartResponse, error) {
	var resp CartResponse
	if err := c.Do(ctx, http.MethodGet, "/cart", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PutCart replaces the server cart and returns the cart the server stored,
// which may differ from lines when stock is short.
func (c *Client) PutCart(ctx context.Context, lines []CartLine) (*CartResponse, error) {
	if lines == nil {
		lines = []CartLine{}
	}
	var resp CartResponse
	if err := c.Do(ctx, http.MethodPut, "/cart", map[string]any{"items": lines}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DeleteCart(ctx context.Context) error {
	return c.Do(ctx, http.MethodDelete, "/cart", nil, nil)
}

func (c *Client) ValidateCart(ctx context.Context) (*ValidationResult, error) {
	var resp ValidationResult
	if err := c.Do(ctx, http.MethodGet, "/cart/validate", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CurrentUser(ctx context.Context) (*profile.Profile, error) {
	var p profile.Profile
	if err := c.Do(ctx, http.MethodGet, "/users/me", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
