package bulb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Client talks to a bulb's local JSON API over HTTP.
type Client struct {
	address    string
	model      string
	httpClient *http.Client
}

// HTTPDialer opens Clients with a fixed per-request timeout.
type HTTPDialer struct {
	Timeout time.Duration
}

// Dial provisions the network credentials on the bulb and reads its identity.
func (d HTTPDialer) Dial(ctx context.Context, address, network, credential string) (Device, error) {
	c := NewClient(address, d.Timeout)

	provision := map[string]string{"ssid": network, "password": credential}
	if err := c.do(ctx, http.MethodPut, "provision", provision, nil); err != nil {
		return nil, fmt.Errorf("failed to provision bulb: %w", err)
	}

	var info struct {
		Model string `json:"model"`
	}
	if err := c.do(ctx, http.MethodGet, "info", nil, &info); err != nil {
		return nil, fmt.Errorf("failed to read bulb info: %w", err)
	}
	c.model = info.Model

	log.Debug().Str("address", address).Str("model", c.model).Msg("Bulb handshake complete")
	return c, nil
}

// NewClient creates a new bulb client
func NewClient(address string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		address: address,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Model returns the model reported during the handshake
func (c *Client) Model() string {
	return c.model
}

// State reads the composite bulb state
func (c *Client) State(ctx context.Context) (State, error) {
	var s State
	if err := c.do(ctx, http.MethodGet, "state", nil, &s); err != nil {
		return State{}, err
	}
	return s, nil
}

// SetState sends a partial update; only supplied fields change
func (c *Client) SetState(ctx context.Context, u Update) error {
	if u.IsEmpty() {
		return nil
	}
	return c.do(ctx, http.MethodPatch, "state", u, nil)
}

// Close closes the client
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) url(path string) string {
	return fmt.Sprintf("http://%s/api/%s", c.address, path)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("bulb %s %s: unexpected status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("bulb %s %s: %w", method, path, err)
	}
	return nil
}

// transportError maps network failures onto ErrTimeout. A bulb that drops
// off the network looks the same as one that stopped answering.
func transportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrTimeout, err)
}
