package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kiwari-pos/monitor/internal/model"
)

// ErrRejected marks a request the server understood but refused (4xx),
// as opposed to a transport fault. Callers use this to decide between
// rollback (rejected) and retry (transport).
var ErrRejected = errors.New("request rejected by server")

// Client talks to the POS server's REST API for one outlet.
type Client struct {
	baseURL  string
	token    string
	outletID uuid.UUID
	http     *http.Client
	log      *slog.Logger
}

// New creates an API client. timeout bounds every call; zero means 10s.
func New(baseURL, token string, outletID uuid.UUID, timeout time.Duration, log *slog.Logger) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		token:    token,
		outletID: outletID,
		http:     &http.Client{Timeout: timeout},
		log:      log.With(slog.String("component", "api_client")),
	}
}

// FetchActiveOrders returns the cold-start snapshot of live orders.
func (c *Client) FetchActiveOrders(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/outlets/%s/orders/active", c.outletID), nil, &orders)
	if err != nil {
		return nil, fmt.Errorf("fetch active orders: %w", err)
	}
	return orders, nil
}

// FetchTableRequests returns the current unresolved table service requests.
func (c *Client) FetchTableRequests(ctx context.Context) ([]model.TableRequest, error) {
	var reqs []model.TableRequest
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/outlets/%s/table-requests", c.outletID), nil, &reqs)
	if err != nil {
		return nil, fmt.Errorf("fetch table requests: %w", err)
	}
	return reqs, nil
}

// FetchSettings returns the outlet settings (auto-accept, auto-print,
// restaurant info).
func (c *Client) FetchSettings(ctx context.Context) (model.Settings, error) {
	var settings model.Settings
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/outlets/%s/settings", c.outletID), nil, &settings)
	if err != nil {
		return model.Settings{}, fmt.Errorf("fetch settings: %w", err)
	}
	return settings, nil
}

// UpdateOrderStatus submits a status transition for confirmation.
func (c *Client) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string) error {
	body := map[string]string{"status": status}
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/outlets/%s/orders/%s/status", c.outletID, id), body, nil)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}

// MarkOrderPrinted records a confirmed print submission on the server.
func (c *Client) MarkOrderPrinted(ctx context.Context, id uuid.UUID) error {
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/outlets/%s/orders/%s/printed", c.outletID, id), nil, nil)
	if err != nil {
		return fmt.Errorf("mark order printed: %w", err)
	}
	return nil
}

// ResolveTableRequest acknowledges a table service request.
func (c *Client) ResolveTableRequest(ctx context.Context, id uuid.UUID) error {
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/outlets/%s/table-requests/%s", c.outletID, id), nil, nil)
	if err != nil {
		return fmt.Errorf("resolve table request: %w", err)
	}
	return nil
}

// do executes one JSON request. A nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s: %s", ErrRejected, method, path, bytes.TrimSpace(msg))
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
