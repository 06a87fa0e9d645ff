// Package checkout turns the cart into an order.
package checkout

import (
	"context"

	"github.com/jrsteele09/go-storefront/api"
	"github.com/jrsteele09/go-storefront/cart"
	"github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/rs/zerolog/log"
)

// SaleCreator places orders.
type SaleCreator interface {
	CreateSale(ctx context.Context, req api.SaleRequest) (*api.SaleResponse, error)
}

type Order struct {
	Address string
	Note    string
}

type Service struct {
	cart  *cart.Engine
	sales SaleCreator
}

func New(engine *cart.Engine, sales SaleCreator) (*Service, error) {
	if engine == nil {
		return nil, errors.New("[checkout.New] cart engine is required")
	}
	if sales == nil {
		return nil, errors.New("[checkout.New] sale creator is required")
	}
	return &Service{cart: engine, sales: sales}, nil
}

// Checkout pushes the cart, has the server validate it, places the order and
// clears the cart. Nothing is ordered when the push or validation fails.
func (s *Service) Checkout(ctx context.Context, order Order) (*api.SaleResponse, error) {
	if s.cart.IsEmpty() {
		return nil, errors.Wrapf(errors.ErrValidationFailure, "cart is empty")
	}
	if order.Address == "" {
		return nil, errors.Wrapf(errors.ErrValidationFailure, "delivery address is required")
	}

	if err := s.cart.Sync(ctx); err != nil {
		return nil, err
	}
	if _, err := s.cart.Validate(ctx); err != nil {
		return nil, err
	}

	// The push may have adjusted quantities to the server's stock.
	items := s.cart.Items()
	if len(items) == 0 {
		return nil, errors.Wrapf(errors.ErrValidationFailure, "cart is empty")
	}
	req := api.SaleRequest{Note: order.Note, Address: order.Address}
	for _, item := range items {
		req.Products = append(req.Products, api.SaleLine{ProductID: item.Product.ID, Quantity: item.Quantity})
	}
	resp, err := s.sales.CreateSale(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "create sale")
	}

	s.cart.ClearCart(ctx)
	log.Info().Int("lines", len(req.Products)).Msg("order placed, cart cleared")
	return resp, nil
}
