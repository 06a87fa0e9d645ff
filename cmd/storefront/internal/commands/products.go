package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/jrsteele09/go-storefront/app"
	"github.com/jrsteele09/go-storefront/catalog"
)

type ProductsCmd struct {
	List ProductsListCmd `cmd:"" default:"withargs" help:"List products"`
	Show ProductsShowCmd `cmd:"" help:"Show a product"`
}

type ProductsListCmd struct {
	Search   string `help:"Free text search."`
	Category string `help:"Only this category."`
	Sort     string `help:"Sort order understood by the API."`
	Store    string `help:"Only products of this store."`
	Page     int    `default:"1"`
	Size     int    `default:"20"`
}

func (c *ProductsListCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, func(a *app.App) error {
		page, err := a.Catalog.ListProducts(ctx, catalog.ListParams{
			Search:   c.Search,
			Category: c.Category,
			Sort:     c.Sort,
			StoreID:  c.Store,
			Page:     c.Page,
			PageSize: c.Size,
		})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPRICE")
		for _, p := range page.Products {
			fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\n", p.ID, p.Name, p.Category, p.Price)
		}
		w.Flush()
		fmt.Printf("\nPage %d of %d (%d products)\n", page.Pagination.Page, page.Pagination.TotalPages, page.Pagination.Total)
		return nil
	})
}

type ProductsShowCmd struct {
	ID int64 `arg:""`
}

func (c *ProductsShowCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, func(a *app.App) error {
		p, err := a.Catalog.GetProduct(ctx, c.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%s (#%d)\n%s\n\nCategory: %s\nPrice:    %.2f\nStock:    %d\n", p.Name, p.ID, p.Description, p.Category, p.Price, p.Stock)
		return nil
	})
}
