package deviceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifiboot/internal/credstore"
	"github.com/muurk/wifiboot/internal/logging"
	"github.com/muurk/wifiboot/internal/server"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for failed requests
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the default delay between retry attempts
	DefaultRetryDelay = 1 * time.Second

	// DefaultMaxRetryDelay is the maximum delay for exponential backoff
	DefaultMaxRetryDelay = 30 * time.Second

	// MaxPayload is the largest payload the control server accepts.
	MaxPayload = server.ScratchSize - 1
)

// Client talks to a device's control server.
type Client struct {
	// BaseURL is the base URL for the device (e.g., "http://192.168.4.16")
	BaseURL string

	HTTPClient *http.Client

	// MaxRetries is the number of retries after the first attempt
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts
	RetryDelay time.Duration

	// MaxRetryDelay caps the exponential backoff
	MaxRetryDelay time.Duration

	log *zap.Logger
}

// NewClient creates a client for the device at host:port.
func NewClient(host string, port int) *Client {
	return NewClientWithURL("http://" + net.JoinHostPort(host, strconv.Itoa(port)))
}

// NewClientWithURL creates a client with a full base URL.
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		HTTPClient:    &http.Client{Timeout: DefaultTimeout},
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
		log:           logging.Named("deviceclient"),
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetRetry configures retry behavior
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// Info fetches the device status document.
func (c *Client) Info(ctx context.Context) (*server.Status, error) {
	var status *server.Status
	err := c.withRetry(ctx, func() error {
		var err error
		status, err = c.infoAttempt(ctx)
		return err
	})
	return status, err
}

func (c *Client) infoAttempt(ctx context.Context) (*server.Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+server.InfoPath, nil)
	if err != nil {
		return nil, NewNetworkError("failed to create GET request", c.BaseURL, err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, NewNetworkError("GET request failed", c.BaseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewNetworkError("failed to read response body", c.BaseURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, NewHTTPError(resp.StatusCode, string(body))
	}

	var status server.Status
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, NewParseError("failed to parse status document", err)
	}
	if status.Message == "" {
		return nil, NewParseError("status document has no message", nil)
	}
	return &status, nil
}

// Push posts a configuration payload and returns the device's reply.
// Payloads the device would refuse are rejected before sending.
func (c *Client) Push(ctx context.Context, payload []byte) (string, error) {
	switch {
	case len(payload) == 0:
		return "", NewValidationError("payload is empty")
	case len(payload) > MaxPayload:
		return "", NewValidationError(fmt.Sprintf("payload is %d bytes, limit is %d", len(payload), MaxPayload))
	}

	var reply string
	err := c.withRetry(ctx, func() error {
		var err error
		reply, err = c.pushAttempt(ctx, payload)
		return err
	})
	return reply, err
}

func (c *Client) pushAttempt(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+server.SystemSetPath, bytes.NewReader(payload))
	if err != nil {
		return "", NewNetworkError("failed to create POST request", c.BaseURL, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", NewNetworkError("POST request failed", c.BaseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewNetworkError("failed to read response body", c.BaseURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", NewHTTPError(resp.StatusCode, string(body))
	}
	return strings.TrimSpace(string(body)), nil
}

// PushCredentials provisions new network credentials. The device applies
// them at its next boot.
func (c *Client) PushCredentials(ctx context.Context, creds credstore.Credentials) (string, error) {
	if err := creds.Validate(); err != nil {
		return "", NewValidationError(err.Error())
	}
	payload, err := json.Marshal(map[string]string{
		"ssid":     creds.SSID,
		"password": creds.Password,
	})
	if err != nil {
		return "", NewValidationError(err.Error())
	}
	return c.Push(ctx, payload)
}

// withRetry runs attempt until it succeeds, fails with a non-retryable
// error, or the retries run out.
func (c *Client) withRetry(ctx context.Context, attempt func() error) error {
	var lastErr error
	delay := c.RetryDelay

	for i := 0; i <= c.MaxRetries; i++ {
		if i > 0 {
			c.log.Debug("Retrying request",
				zap.Int("attempt", i+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return NewNetworkError("request cancelled", c.BaseURL, ctx.Err())
			}
			delay *= 2
			if delay > c.MaxRetryDelay {
				delay = c.MaxRetryDelay
			}
		}

		err := attempt()
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return err
		}
	}
	return lastErr
}
