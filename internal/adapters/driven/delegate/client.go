// Package delegate calls the remote folder endpoint of peer servers.
package delegate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
	"github.com/custodia-labs/addrcrawl/internal/core/ports/driven"
	"github.com/custodia-labs/addrcrawl/internal/logger"
)

const (
	// RemoteFolderPath is the delegation endpoint on every server.
	RemoteFolderPath = "/service/extension/contacts/remotefolder"

	// TokenType is the Authorization scheme of session tokens.
	TokenType = "Token"

	// HeaderRequestID correlates a delegation across both servers.
	HeaderRequestID = "X-Request-ID"

	// DefaultRate is the default number of delegations per second.
	DefaultRate = 10

	// DefaultBurst is the default delegation burst.
	DefaultBurst = 5

	// DefaultBreakerFailures is the number of consecutive failures that
	// opens a peer's circuit.
	DefaultBreakerFailures = 5

	// DefaultBreakerTimeout is how long an open circuit stays open.
	DefaultBreakerTimeout = 30 * time.Second

	maxErrorBody = 64 << 10
)

// Ensure Client implements the interface.
var _ driven.RemoteDelegate = (*Client)(nil)

// Options configures a Client. Zero values select the defaults.
type Options struct {
	Rate            float64
	Burst           int
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	HTTPClient      *http.Client
}

// Client delegates subtree crawls to peers over HTTP.
// Calls are throttled globally and guarded by one circuit breaker per peer.
type Client struct {
	directory driven.Directory
	http      *http.Client
	limiter   *rate.Limiter
	failures  uint32
	timeout   time.Duration

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewClient creates a delegation client resolving peers through directory.
func NewClient(directory driven.Directory, opts Options) *Client {
	if opts.Rate <= 0 {
		opts.Rate = DefaultRate
	}
	if opts.Burst <= 0 {
		opts.Burst = DefaultBurst
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = DefaultBreakerFailures
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = DefaultBreakerTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &Client{
		directory: directory,
		http:      opts.HTTPClient,
		limiter:   rate.NewLimiter(rate.Limit(opts.Rate), opts.Burst),
		failures:  opts.BreakerFailures,
		timeout:   opts.BreakerTimeout,
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Delegate posts req to the remote folder endpoint of serverName.
func (c *Client) Delegate(
	ctx context.Context,
	serverName, token string,
	req domain.DelegationRequest,
) (*domain.PartialResult, error) {
	if token == "" {
		return nil, domain.ErrMissingToken
	}

	// 1. Resolve the peer URL
	server, err := c.directory.Server(ctx, serverName)
	if err != nil {
		return nil, fmt.Errorf("resolve server %s: %w", serverName, err)
	}
	base, err := server.BaseURL()
	if err != nil {
		return nil, fmt.Errorf("resolve server %s: %w", serverName, err)
	}
	url := strings.TrimRight(base, "/") + RemoteFolderPath

	// 2. Throttle
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("delegate to %s: %w", serverName, err)
	}

	// 3. Call through the peer's breaker
	out, err := c.breaker(serverName).Execute(func() (any, error) {
		return c.post(ctx, url, token, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrDelegationFailed, serverName, err)
		}
		return nil, err
	}
	return out.(*domain.PartialResult), nil
}

// BreakerState reports the circuit state of a peer.
func (c *Client) BreakerState(serverName string) gobreaker.State {
	return c.breaker(serverName).State()
}

func (c *Client) breaker(serverName string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[serverName]; ok {
		return cb
	}
	failures := c.failures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        serverName,
		MaxRequests: 1,
		Timeout:     c.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// peer answered; only transport errors and 5xx count
			return err == nil || (statusOf(err) > 0 && !IsServerError(err))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("delegation circuit for %s: %s -> %s", name, from, to)
		},
	})
	c.breakers[serverName] = cb
	return cb
}

func (c *Client) post(ctx context.Context, url, token string, req domain.DelegationRequest) (*domain.PartialResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode delegation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(HeaderRequestID, uuid.New().String())

	resp, err := c.authorized(token).Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("delegate to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, readAPIError(resp, url)
	}

	var result domain.PartialResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &result, nil
}

// authorized wraps the base client so every request carries
// "Authorization: Token <token>".
func (c *Client) authorized(token string) *http.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: TokenType})
	return &http.Client{
		Transport: &oauth2.Transport{Source: src, Base: c.http.Transport},
		Timeout:   c.http.Timeout,
	}
}

func readAPIError(resp *http.Response, url string) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		msg = body.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg, URL: url}
}
