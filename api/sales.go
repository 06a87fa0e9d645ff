package api

import (
	"context"
	"net/http"
)

// SaleLine is one product of an order. A zero Quantity is omitted and the
// server assumes one.
type SaleLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity,omitempty"`
}

type SaleRequest struct {
	Products []SaleLine `json:"products"`
	Note     string     `json:"note,omitempty"`
	Address  string     `json:"address,omitempty"`
}

type SaleProduct struct {
	ProductID   int64   `json:"product_id"`
	Price       float64 `json:"price"`
	Amount      int     `json:"amount"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
}

type Sale struct {
	ID        int64         `json:"id"`
	Date      string        `json:"date"`
	Total     float64       `json:"total"`
	Status    string        `json:"status"`
	Note      string        `json:"note,omitempty"`
	InvoiceID int64         `json:"invoice_id,omitempty"`
	Address   string        `json:"address"`
	Products  []SaleProduct `json:"products"`
}

type SaleResponse struct {
	Message string `json:"message"`
	Sale    *Sale  `json:"sale"`
}

// CreateSale places an order. It is never retried.
func (c *Client) CreateSale(ctx context.Context, req SaleRequest) (*SaleResponse, error) {
	if req.Products == nil {
		req.Products = []SaleLine{}
	}
	var resp SaleResponse
	if err := c.Do(ctx, http.MethodPost, "/sales", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
