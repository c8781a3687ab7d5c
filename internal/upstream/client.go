// Package upstream talks to the clinic backend: action-keyed JSON calls
// wrapped in a { success, data, errors[] } envelope.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/clinicore/agenda-sync/internal/schedule"
)

var ErrUpstreamRejected = errors.New("upstream rejected request")

type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Errors  []string        `json:"errors"`
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 25 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// Invoke posts one action with a JSON payload and unwraps the envelope.
func (c *Client) Invoke(ctx context.Context, action string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/"+action, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("call %s: unexpected status %d", action, resp.StatusCode)
	}

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode %s envelope: %w", action, err)
	}
	if !env.Success {
		return nil, fmt.Errorf("%w: %s: %s", ErrUpstreamRejected, action, strings.Join(env.Errors, "; "))
	}

	return env.Data, nil
}

// Ping probes the upstream's liveness endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health/live", nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("ping upstream: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping upstream: unexpected status %d", resp.StatusCode)
	}
	return nil
}

type agendaListRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (c *Client) FetchAgenda(ctx context.Context, from, to time.Time) ([]schedule.RawEntry, error) {
	data, err := c.Invoke(ctx, "agenda.list", agendaListRequest{
		From: from.Format(schedule.DateFormat),
		To:   to.Format(schedule.DateFormat),
	})
	if err != nil {
		return nil, err
	}

	var entries []schedule.RawEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode agenda list: %w", err)
	}
	return entries, nil
}

func (c *Client) FetchGridConfig(ctx context.Context) (schedule.SlotGridConfig, error) {
	data, err := c.Invoke(ctx, "agenda.config", struct{}{})
	if err != nil {
		return schedule.SlotGridConfig{}, err
	}

	var cfg schedule.SlotGridConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return schedule.SlotGridConfig{}, fmt.Errorf("decode grid config: %w", err)
	}
	return cfg, nil
}

func (c *Client) FetchPatients(ctx context.Context) ([]json.RawMessage, error) {
	return c.fetchList(ctx, "patients.list")
}

func (c *Client) FetchRecords(ctx context.Context) ([]json.RawMessage, error) {
	return c.fetchList(ctx, "records.list")
}

func (c *Client) fetchList(ctx context.Context, action string) ([]json.RawMessage, error) {
	data, err := c.Invoke(ctx, action, struct{}{})
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", action, err)
	}
	return items, nil
}
