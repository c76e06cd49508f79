// internal/orders/client.go
// Package orders provides a client for the storefront's commerce side. The
// ArtKey service never reads the catalog directly; it only asks whether an
// order has reached fulfillment, which gates the pending-to-active
// transition.
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Client for the commerce order API.
type Client struct {
	base string
	hc   *http.Client
}

// Order is the subset of the commerce order the ArtKey service consumes.
type Order struct {
	OrderID   string `json:"orderId"`
	Status    string `json:"status"` // e.g. processing, completed, cancelled
	UpdatedAt string `json:"updatedAt"`
}

// ErrNotFound is returned when the commerce side has no such order.
var ErrNotFound = errors.New("order not found")

// Fulfilled reports whether the order status confirms fulfillment.
func (o Order) Fulfilled() bool {
	return o.Status == "completed" || o.Status == "fulfilled"
}

// New creates an orders client with tight timeouts; the commerce side sits
// on the request path of activation only, never of public resolution.
func New(baseURL string) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: 2 * time.Second}).DialContext,
	}
	return &Client{
		base: baseURL,
		hc:   &http.Client{Transport: transport, Timeout: 3 * time.Second},
	}
}

// Get fetches one order by id.
func (c *Client) Get(ctx context.Context, orderID string) (*Order, error) {
	u := fmt.Sprintf("%s/orders/%s", c.base, url.PathEscape(orderID))

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("order lookup failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var order Order
		if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
			return nil, fmt.Errorf("failed to decode order: %w", err)
		}
		return &order, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("order lookup returned status %d", resp.StatusCode)
	}
}
