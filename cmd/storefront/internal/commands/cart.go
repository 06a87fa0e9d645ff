package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/jrsteele09/go-storefront/app"
	"github.com/jrsteele09/go-storefront/cart"
)

type CartCmd struct {
	Show     CartShowCmd     `cmd:"" default:"1" help:"Show the cart"`
	Add      CartAddCmd      `cmd:"" help:"Add a product"`
	Remove   CartRemoveCmd   `cmd:"" help:"Remove a product"`
	Update   CartUpdateCmd   `cmd:"" help:"Set the quantity of a product"`
	Clear    CartClearCmd    `cmd:"" help:"Empty the cart"`
	Validate CartValidateCmd `cmd:"" help:"Check the cart can be checked out"`
	Sync     CartSyncCmd     `cmd:"" help:"Push the cart to the server now"`
}

type CartShowCmd struct{}

func (c *CartShowCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, func(a *app.App) error {
		printCart(a.Cart)
		return nil
	})
}

type CartAddCmd struct {
	ProductID int64 `arg:"" name:"product-id"`
	Quantity  int   `arg:"" optional:"" default:"1"`
}

func (c *CartAddCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, func(a *app.App) error {
		product, err := a.Catalog.GetProduct(ctx, c.ProductID)
		if err != nil {
			return fmt.Errorf("failed to look up product %d: %w", c.ProductID, err)
		}
		a.Cart.AddItem(ctx, *product, c.Quantity)
		printCart(a.Cart)
		return nil
	})
}

type CartRemoveCmd struct {
	ProductID int64 `arg:"" name:"product-id"`
}

func (c *CartRemoveCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, func(a *app.App) error {
		a.Cart.RemoveItem(ctx, c.ProductID)
		printCart(a.Cart)
		return nil
	})
}

type CartUpdateCmd struct {
	ProductID int64 `arg:"" name:"product-id"`
	Quantity  int   `arg:""`
}

func (c *CartUpdateCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, func(a *app.App) error {
		a.Cart.UpdateQuantity(ctx, c.ProductID, c.Quantity)
		printCart(a.Cart)
		return nil
	})
}

type CartClearCmd struct{}

func (c *CartClearCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, func(a *app.App) error {
		a.Cart.ClearCart(ctx)
		fmt.Println("Cart cleared.")
		return nil
	})
}

type CartValidateCmd struct{}

func (c *CartValidateCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, func(a *app.App) error {
		_, err := a.Cart.Validate(ctx)
		var verr *cart.ValidationError
		if errors.As(err, &verr) {
			fmt.Println("Cart is not ready for checkout:")
			for _, reason := range verr.Reasons {
				fmt.Println("  - " + reason)
			}
			return err
		}
		if err != nil {
			return err
		}
		fmt.Println("Cart is valid.")
		return nil
	})
}

type CartSyncCmd struct{}

func (c *CartSyncCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, func(a *app.App) error {
		if err := a.Cart.Sync(ctx); err != nil {
			return err
		}
		fmt.Printf("Synced at %s\n", a.Cart.LastSyncTime().Format("15:04:05"))
		return nil
	})
}

func printCart(e *cart.Engine) {
	if e.IsEmpty() {
		fmt.Println("Your cart is empty.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRODUCT\tQTY\tPRICE\tSUBTOTAL")
	for _, item := range e.Items() {
		fmt.Fprintf(w, "%d\t%s\t%d\t%.2f\t%.2f\n",
			item.Product.ID, item.Product.Name, item.Quantity, item.Product.Price, item.Product.Price*float64(item.Quantity))
	}
	fmt.Fprintf(w, "\t\t%d\t\t%.2f\n", e.TotalItems(), e.TotalPrice())
	w.Flush()
}
