package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jrsteele09/go-storefront/catalog"
	"github.com/jrsteele09/go-storefront/internal/errors"
)

type Notification struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"` // SALE, REVIEW, PURCHASE
	ProductID int64     `json:"product_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type NotificationPage struct {
	Notifications []Notification     `json:"notifications"`
	UnreadCount   int                `json:"unread_count"`
	Pagination    catalog.Pagination `json:"pagination"`
}

// Notifications lists the user's notifications. Without a session it returns
// an empty page and makes no request.
func (c *Client) Notifications(ctx context.Context, page, limit int, unreadOnly bool) (*NotificationPage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if c.tokens.AccessToken() == "" {
		return &NotificationPage{
			Notifications: []Notification{},
			Pagination:    catalog.Pagination{Page: 1, Limit: limit},
		}, nil
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	if unreadOnly {
		q.Set("unread", "true")
	}
	var resp NotificationPage
	if err := c.Do(ctx, http.MethodGet, "/api/notifications?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Notifications == nil {
		resp.Notifications = []Notification{}
	}
	return &resp, nil
}

func (c *Client) Notification(ctx context.Context, id int64) (*Notification, error) {
	if c.tokens.AccessToken() == "" {
		return nil, errors.ErrNotAuthenticated
	}
	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodGet, fmt.Sprintf("/api/notifications/%d", id), nil, &raw); err != nil {
		return nil, err
	}
	return unwrapEnvelope[Notification](raw, "notification")
}

func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	if c.tokens.AccessToken() == "" {
		return errors.ErrNotAuthenticated
	}
	return c.Do(ctx, http.MethodPatch, fmt.Sprintf("/api/notifications/%d/read", id), nil, nil)
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	if c.tokens.AccessToken() == "" {
		return errors.ErrNotAuthenticated
	}
	return c.Do(ctx, http.MethodPatch, "/api/notifications/read-all", nil, nil)
}
