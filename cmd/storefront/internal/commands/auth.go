package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-storefront/app"
	apperrors "github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/internal/utils"
)

type LoginCmd struct {
	Username  string `short:"u" help:"Username or email (direct login)."`
	Password  string `short:"p" env:"STOREFRONT_PASSWORD" help:"Password (direct login)."`
	ReturnURL string `name:"return-url" help:"Where to go after a hosted login."`
}

func (c *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, func(a *app.App) error {
		if a.Flow.Hosted() && c.Username == "" {
			_, err := a.Flow.BeginHostedLogin(ctx, c.ReturnURL)
			if err != nil {
				return err
			}
			fmt.Println("After signing in, run: storefront callback '<redirect url>'")
			return nil
		}

		err := a.Flow.Login(ctx, c.Username, c.Password)
		switch {
		case errors.Is(err, apperrors.ErrNewPasswordRequired):
			return fmt.Errorf("a new password is required for %s, set one with `storefront password reset`", c.Username)
		case errors.Is(err, apperrors.ErrUserNotConfirmed):
			return fmt.Errorf("account %s has not been confirmed yet", c.Username)
		case err != nil:
			return err
		}

		claims, _ := a.Session.IDClaims()
		fmt.Printf("Signed in as %s\n", claims.DisplayName())
		return nil
	})
}

type LoginURLCmd struct {
	ReturnURL string `name:"return-url" help:"Where to go after login."`
}

func (c *LoginURLCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, func(a *app.App) error {
		_, err := a.Flow.BeginHostedLogin(ctx, c.ReturnURL)
		return err
	})
}

type CallbackCmd struct {
	URL string `arg:"" help:"The full URL the browser was redirected to."`
}

func (c *CallbackCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, func(a *app.App) error {
		returnURL, err := a.Flow.HandleRedirect(ctx, c.URL)
		if err != nil {
			return err
		}
		claims, _ := a.Session.IDClaims()
		fmt.Printf("Signed in as %s\n", claims.DisplayName())
		if returnURL != "" {
			fmt.Printf("Continue at %s\n", returnURL)
		}
		return nil
	})
}

type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, func(a *app.App) error {
		if err := a.Flow.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("Signed out.")
		return nil
	})
}

type StatusCmd struct {
	NoBanner bool `name:"no-banner" help:"Do not print the banner."`
}

func (c *StatusCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, func(a *app.App) error {
		if !c.NoBanner {
			figure.NewFigure(a.Config.GetAppName(), "cybermedium", true).Print()
			fmt.Println()
		}

		fmt.Printf("Version:   %s\n", globals.Version)
		fmt.Printf("Session:   %s\n", a.Session.State())
		if claims, ok := a.Session.IDClaims(); ok {
			access, _ := a.Session.AccessClaims()
			meta := a.Session.Metadata()
			fmt.Printf("User:      %s <%s>\n", claims.DisplayName(), claims.Email)
			fmt.Printf("Access:    expires %s (expired: %t)\n", access.ExpiresAt.Format(time.RFC3339), a.Session.IsAccessTokenExpired())
			fmt.Printf("Identity:  expires %s (expired: %t)\n", claims.ExpiresAt.Format(time.RFC3339), a.Session.IsIDTokenExpired())
			fmt.Printf("Refreshed: %s\n", meta.LastRefreshAt.Format(time.RFC3339))
		}
		fmt.Printf("Cart:      %d items, %.2f total, sync %s\n", a.Cart.TotalItems(), a.Cart.TotalPrice(), a.Cart.SyncState())
		return nil
	})
}

type ProfileCmd struct {
	Refresh bool `help:"Bypass the cache."`
}

func (c *ProfileCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, func(a *app.App) error {
		if !a.Session.IsAuthenticated() {
			return apperrors.ErrNotAuthenticated
		}
		get := a.Profile.Get
		if c.Refresh {
			get = a.Profile.Refresh
		}
		p, err := get(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("ID:     %d\nEmail:  %s\nName:   %s %s\nSeller: %t\nActive: %t\n",
			p.ID, p.Email, p.FirstName, p.LastName, p.IsSeller, p.IsActive)
		if store := utils.Value(p.Store); store.StoreID != 0 {
			fmt.Printf("Store:  %s (%d)\n", store.StoreName, store.StoreID)
		}
		return nil
	})
}

type PasswordCmd struct {
	Reset   PasswordResetCmd   `cmd:"" help:"Send a reset code"`
	Confirm PasswordConfirmCmd `cmd:"" help:"Set a new password with a reset code"`
}

type PasswordResetCmd struct {
	Username string `arg:""`
	Resend   bool   `help:"Send a new code, invalidating the previous one."`
}

func (c *PasswordResetCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, func(a *app.App) error {
		request := a.Flow.RequestPasswordReset
		if c.Resend {
			request = a.Flow.ResendPasswordResetCode
		}
		delivery, err := request(ctx, c.Username)
		if err != nil {
			return err
		}
		fmt.Printf("Code sent by %s to %s\n", delivery.DeliveryMedium, delivery.Destination)
		return nil
	})
}

type PasswordConfirmCmd struct {
	Username    string `arg:""`
	Code        string `arg:""`
	NewPassword string `name:"new-password" env:"STOREFRONT_NEW_PASSWORD" required:""`
}

func (c *PasswordConfirmCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, func(a *app.App) error {
		if err := a.Flow.ConfirmPasswordReset(ctx, c.Username, c.Code, c.NewPassword); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "Password changed. You can now sign in.")
		return nil
	})
}
