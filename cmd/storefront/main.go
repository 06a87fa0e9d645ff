package main

import (
	"context"
	"errors"
	"io/fs"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-storefront/cmd/storefront/internal/commands"
	"github.com/jrsteele09/go-storefront/internal/logger"
	"github.com/rs/zerolog/log"
)

var (
	version = "dev"
	cli     struct {
		Login         commands.LoginCmd         `cmd:"" help:"Sign in"`
		LoginURL      commands.LoginURLCmd      `cmd:"" name:"login-url" help:"Print the hosted login URL"`
		Callback      commands.CallbackCmd      `cmd:"" help:"Complete a hosted login from the redirect URL"`
		Status        commands.StatusCmd        `cmd:"" help:"Show session and cart status"`
		Logout        commands.LogoutCmd        `cmd:"" help:"Sign out"`
		Profile       commands.ProfileCmd       `cmd:"" help:"Show the signed in user's profile"`
		Cart          commands.CartCmd          `cmd:"" help:"Manage the cart"`
		Products      commands.ProductsCmd      `cmd:"" help:"Browse the catalog"`
		Password      commands.PasswordCmd      `cmd:"" help:"Reset a forgotten password"`
		Checkout      commands.CheckoutCmd      `cmd:"" help:"Place an order for the cart"`
		Reviews       commands.ReviewsCmd       `cmd:"" help:"Read and write product reviews"`
		Favorite      commands.FavoriteCmd      `cmd:"" help:"Toggle a product as favorite"`
		Notifications commands.NotificationsCmd `cmd:"" help:"Read notifications"`
		EnvFile       string                    `name:"env-file" default:".env" help:"Dotenv file to load before reading configuration."`
		Debug         bool                      `help:"Enable debug mode."`
		Version       kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("storefront"),
		kong.Description("Storefront client: session, cart and catalog."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	if err := godotenv.Load(cli.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		cmd.FatalIfErrorf(err)
	}
	log.Logger = logger.Setup(cli.Debug)

	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
