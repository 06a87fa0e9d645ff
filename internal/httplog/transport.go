// Package httplog logs outgoing requests in development.
package httplog

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	green     = "\033[32m"
	blue      = "\033[34m"
	cyan      = "\033[36m"
	yellow    = "\033[33m"
	magenta   = "\033[35m"
	gray      = "\033[90m"
	resetCode = "\033[0m"
)

var methodColors = map[string]string{
	http.MethodGet:    green,
	http.MethodPost:   blue,
	http.MethodPut:    cyan,
	http.MethodDelete: yellow,
	http.MethodPatch:  magenta,
}

// Transport logs each round trip at debug level.
type Transport struct {
	Next   http.RoundTripper
	Colour bool
}

func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	next := t.Next
	if next == nil {
		next = http.DefaultTransport
	}
	start := time.Now()
	resp, err := next.RoundTrip(r)

	ev := log.Debug().Str("url", r.URL.Redacted()).Dur("took", time.Since(start))
	if err != nil {
		ev.Err(err).Msg(t.method(r.Method))
		return resp, err
	}
	ev.Int("status", resp.StatusCode).
		Bool("cached", resp.Header.Get("X-From-Cache") == "1").
		Msg(t.method(r.Method))
	return resp, nil
}

func (t *Transport) method(m string) string {
	padded := fmt.Sprintf(" %-7s", m)
	if !t.Colour {
		return padded
	}
	color, ok := methodColors[m]
	if !ok {
		color = gray
	}
	return color + padded + resetCode
}

// Wrap returns a copy of hc whose transport logs requests. hc is not modified.
func Wrap(hc *http.Client, colour bool) *http.Client {
	if hc == nil {
		hc = &http.Client{}
	}
	wrapped := *hc
	wrapped.Transport = &Transport{Next: hc.Transport, Colour: colour}
	return &wrapped
}
