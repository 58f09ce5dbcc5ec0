// Package relayclient is a thin HTTP client for the relay service, used by
// relayctl and suitable for test harnesses.
package relayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"relay/internal/dto"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = "http://localhost:8085"
	}
	return &Client{
		baseURL: base,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) RegisterDevice(ctx context.Context, req dto.RegisterDeviceRequest) (dto.RegisterDeviceResponse, error) {
	var resp dto.RegisterDeviceResponse
	err := c.do(ctx, http.MethodPost, "/v1/registry/devices", req, &resp)
	return resp, err
}

func (c *Client) ListDevices(ctx context.Context, userID string) (dto.DeviceListResponse, error) {
	var resp dto.DeviceListResponse
	err := c.do(ctx, http.MethodGet, "/v1/registry/devices?user_id="+url.QueryEscape(userID), nil, &resp)
	return resp, err
}

func (c *Client) Deposit(ctx context.Context, req dto.DepositRequest) (dto.DepositResponse, error) {
	var resp dto.DepositResponse
	err := c.do(ctx, http.MethodPost, "/v1/relay/deposit", req, &resp)
	return resp, err
}

func (c *Client) DepositContact(ctx context.Context, req dto.ContactDepositRequest) (dto.ContactDepositResponse, error) {
	var resp dto.ContactDepositResponse
	err := c.do(ctx, http.MethodPost, "/v1/relay/contact", req, &resp)
	return resp, err
}

func (c *Client) DrainInbox(ctx context.Context, deviceID string) (dto.DrainResponse, error) {
	var resp dto.DrainResponse
	err := c.do(ctx, http.MethodPost, "/v1/relay/inbox/"+url.PathEscape(deviceID)+"/drain", nil, &resp)
	return resp, err
}

func (c *Client) DrainContactInbox(ctx context.Context, deviceID string) (dto.ContactDrainResponse, error) {
	var resp dto.ContactDrainResponse
	err := c.do(ctx, http.MethodPost, "/v1/relay/contact-inbox/"+url.PathEscape(deviceID)+"/drain", nil, &resp)
	return resp, err
}

func (c *Client) RemoveUser(ctx context.Context, userID string) (map[string]int64, error) {
	var resp map[string]int64
	err := c.do(ctx, http.MethodDelete, "/v1/registry/users/"+url.PathEscape(userID), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("relay: %s %s: %s", method, path, msg)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
