package api

import (
	"context"
	"net/http"
)

type FavoriteToggle struct {
	Message    string `json:"message"`
	IsFavorite bool   `json:"is_favorite"`
}

// ToggleFavorite flips the favorite mark of a product for the signed in user.
func (c *Client) ToggleFavorite(ctx context.Context, productID int64) (*FavoriteToggle, error) {
	var resp FavoriteToggle
	if err := c.Do(ctx, http.MethodPost, "/favorites/toggle", map[string]int64{"product_id": productID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
