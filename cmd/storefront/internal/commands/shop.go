package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/jrsteele09/go-storefront/app"
	"github.com/jrsteele09/go-storefront/cart"
	"github.com/jrsteele09/go-storefront/checkout"
)

type CheckoutCmd struct {
	Address string `required:"" help:"Delivery address."`
	Note    string `help:"Note for the seller."`
}

func (c *CheckoutCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, func(a *app.App) error {
		resp, err := a.Checkout.Checkout(ctx, checkout.Order{Address: c.Address, Note: c.Note})
		var verr *cart.ValidationError
		if errors.As(err, &verr) {
			fmt.Println("Cart is not ready for checkout:")
			for _, reason := range verr.Reasons {
				fmt.Println("  - " + reason)
			}
		}
		if err != nil {
			return err
		}
		if resp.Sale != nil {
			fmt.Printf("Order #%d placed (%s), total %.2f\n", resp.Sale.ID, resp.Sale.Status, resp.Sale.Total)
			return nil
		}
		fmt.Println(resp.Message)
		return nil
	})
}

type ReviewsCmd struct {
	List ReviewsListCmd `cmd:"" default:"withargs" help:"List reviews of a product"`
	Add  ReviewsAddCmd  `cmd:"" help:"Review a product"`
}

type ReviewsListCmd struct {
	ProductID int64 `arg:"" name:"product-id"`
	Page      int   `default:"1"`
	Limit     int   `default:"10"`
}

func (c *ReviewsListCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, func(a *app.App) error {
		page, err := a.API.ProductReviews(ctx, c.ProductID, c.Page, c.Limit)
		if err != nil {
			return err
		}
		if len(page.Reviews) == 0 {
			fmt.Println("No reviews yet.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RATING\tBY\tREVIEW")
		for _, r := range page.Reviews {
			fmt.Fprintf(w, "%d/5\t%s %s\t%s\n", r.Rating, r.User.FirstName, r.User.LastName, r.Description)
		}
		return w.Flush()
	})
}

type ReviewsAddCmd struct {
	ProductID   int64  `arg:"" name:"product-id"`
	Rating      int    `arg:"" help:"1 to 5."`
	Description string `arg:"" optional:""`
}

func (c *ReviewsAddCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, func(a *app.App) error {
		if _, err := a.API.CreateReview(ctx, c.ProductID, c.Rating, c.Description); err != nil {
			return err
		}
		fmt.Println("Review posted.")
		return nil
	})
}

type FavoriteCmd struct {
	ProductID int64 `arg:"" name:"product-id"`
}

func (c *FavoriteCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, func(a *app.App) error {
		fav, err := a.API.ToggleFavorite(ctx, c.ProductID)
		if err != nil {
			return err
		}
		if fav.IsFavorite {
			fmt.Printf("Product %d added to favorites.\n", c.ProductID)
		} else {
			fmt.Printf("Product %d removed from favorites.\n", c.ProductID)
		}
		return nil
	})
}

type NotificationsCmd struct {
	List    NotificationsListCmd    `cmd:"" default:"withargs" help:"List notifications"`
	Show    NotificationsShowCmd    `cmd:"" help:"Show a notification"`
	Read    NotificationsReadCmd    `cmd:"" help:"Mark a notification as read"`
	ReadAll NotificationsReadAllCmd `cmd:"" name:"read-all" help:"Mark every notification as read"`
}

type NotificationsListCmd struct {
	Unread bool `help:"Only unread notifications."`
	Page   int  `default:"1"`
	Limit  int  `default:"20"`
}

func (c *NotificationsListCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, func(a *app.App) error {
		page, err := a.API.Notifications(ctx, c.Page, c.Limit, c.Unread)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\t\tTYPE\tTITLE\tWHEN")
		for _, n := range page.Notifications {
			mark := " "
			if !n.Read {
				mark = "*"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", n.ID, mark, n.Type, n.Title, n.CreatedAt.Format("2006-01-02 15:04"))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\n%d unread\n", page.UnreadCount)
		return nil
	})
}

type NotificationsShowCmd struct {
	ID int64 `arg:""`
}

func (c *NotificationsShowCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, func(a *app.App) error {
		n, err := a.API.Notification(ctx, c.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n%s\n", n.Title, n.Message)
		return nil
	})
}

type NotificationsReadCmd struct {
	ID int64 `arg:""`
}

func (c *NotificationsReadCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, func(a *app.App) error {
		return a.API.MarkNotificationRead(ctx, c.ID)
	})
}

type NotificationsReadAllCmd struct{}

func (c *NotificationsReadAllCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, func(a *app.App) error {
		return a.API.MarkAllNotificationsRead(ctx)
	})
}
