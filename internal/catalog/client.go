package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/example/menu-scheduler/internal/schedule"
)

const (
	DefaultBaseURL = "https://api.hyperzod.app"
	updatePath     = "/merchant/v1/catalog/product-category/update"
)

// Error is a structured failure returned by the catalog service.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("catalog update failed (status=%d)", e.StatusCode)
	}
	return fmt.Sprintf("%s (status=%d)", e.Message, e.StatusCode)
}

// ErrMissingCredentials is returned by Ping when the client cannot authenticate.
var ErrMissingCredentials = errors.New("catalog: api key and tenant id are required")

// Client talks to the Hyperzod merchant catalog API. Every category update is
// also an upsert, so the display fields travel with the status flag.
type Client struct {
	hc      *http.Client
	baseURL string
	creds   Credentials
}

type Credentials struct {
	APIKey   string
	TenantID string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = d }
}

func New(baseURL string, creds Credentials, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		hc:      &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Ping checks the client is able to authenticate. The update endpoint has no
// read-only sibling, so only the credentials are verified.
func (c *Client) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.creds.APIKey == "" || c.creds.TenantID == "" {
		return ErrMissingCredentials
	}
	return nil
}

type translation struct {
	Key    string `json:"key"`
	Locale string `json:"locale"`
	Value  string `json:"value"`
}

type updateRequest struct {
	ID                  string        `json:"id"`
	MerchantID          string        `json:"merchant_id"`
	Status              bool          `json:"status"`
	ViewType            string        `json:"view_type"`
	SortOrder           int           `json:"sort_order"`
	LanguageTranslation []translation `json:"language_translation"`
}

type updateResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SetVisibility shows or hides one category.
func (c *Client) SetVisibility(ctx context.Context, merchantID string, cat schedule.Category, visible bool) error {
	viewType := string(cat.ViewType)
	if viewType == "" {
		viewType = string(schedule.ViewList)
	}
	body, err := json.Marshal(updateRequest{
		ID:         cat.ID,
		MerchantID: merchantID,
		Status:     visible,
		ViewType:   viewType,
		SortOrder:  cat.SortOrder,
		LanguageTranslation: []translation{
			{Key: "name", Locale: "en", Value: cat.Name},
		},
	})
	if err != nil {
		return err
	}

	status, raw, err := c.do(ctx, http.MethodPost, c.baseURL+updatePath, body)
	if err != nil {
		return err
	}

	var res updateResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		if status >= 300 {
			return &Error{StatusCode: status, Message: http.StatusText(status)}
		}
		return fmt.Errorf("decode catalog response (status=%d): %w", status, err)
	}
	if status >= 300 || !res.Success {
		msg := res.Message
		if msg == "" && status >= 300 {
			msg = http.StatusText(status)
		}
		return &Error{StatusCode: status, Message: msg}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-API-KEY", c.creds.APIKey)
	req.Header.Set("X-TENANT", c.creds.TenantID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()

	b, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, b, nil
}
