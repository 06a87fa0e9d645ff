package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jrsteele09/go-storefront/app"
	"github.com/jrsteele09/go-storefront/internal/config"
	"github.com/rs/zerolog/log"
)

type Globals struct {
	Debug   bool
	Version string
}

// terminalNavigator stands in for a browser: the user opens URLs by hand.
type terminalNavigator struct{}

func (terminalNavigator) Navigate(url string) error {
	fmt.Println("Open this URL in your browser:")
	fmt.Println()
	fmt.Println("  " + url)
	fmt.Println()
	return nil
}

func (terminalNavigator) ReplaceURL(url string) {
	log.Debug().Str("url", url).Msg("landing url cleaned")
}

// withApp builds and starts the client, runs fn and flushes pending work.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := app.New(ctx, config.New(),
		app.WithNavigator(terminalNavigator{}),
		app.WithReauthenticatePrompt(func() {
			fmt.Fprintln(os.Stderr, "Session expired. Run `storefront login` to sign in again.")
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Close(ctx)
		return fmt.Errorf("failed to start: %w", err)
	}

	runErr := fn(a)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := a.Close(closeCtx); err != nil {
		log.Err(err).Msg("failed to flush cart")
	}
	return runErr
}
