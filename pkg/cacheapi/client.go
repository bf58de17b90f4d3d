// Package cacheapi is an HTTP client for a server's cache API.
//
// Commands are mapped onto /zato/cache/{key}: get is a GET, set a POST and
// delete a DELETE. Every request carries a JSON body asking the server to
// return the previous value, plus the value itself for set.
//
//	c := cacheapi.New(cacheapi.Config{Address: "localhost:17010", Password: pwd})
//	resp, err := c.RunCommand(ctx, cacheapi.CommandConfig{
//		Command:   cacheapi.CommandSet,
//		Key:       "counter",
//		Value:     cacheapi.StringValue("1"),
//		ValueType: cacheapi.ValueInt,
//	})
//
// The client is synchronous. A Client may be shared by goroutines since it
// only reads its own fields and net/http is safe for concurrent use.
package cacheapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/zato-cache-client/pkg/logging"
	"github.com/rs/zerolog"
)

// APIUsername is the reserved identity the client authenticates as.
const APIUsername = "pub.zato.cache"

// PathPrefix is the cache API path; the key follows it unescaped apart
// from stray '%' characters, which are sent as %25.
const PathPrefix = "/zato/cache/"

// Config holds the client configuration.
type Config struct {
	// Address is host:port without a scheme.
	Address string `yaml:"address"`

	// Password for APIUsername. Empty means no authentication.
	Password string `yaml:"password"`

	// IsHTTPS selects https:// instead of http://.
	IsHTTPS bool `yaml:"is_https"`

	// Timeout for a whole request. Zero leaves it to the transport.
	Timeout time.Duration `yaml:"timeout"`

	// Retry of transport failures. The zero value means a single attempt.
	Retry RetryConfig `yaml:"-"`

	// Transport overrides http.DefaultTransport.
	Transport http.RoundTripper `yaml:"-"`

	// Logger overrides the global logger.
	Logger *zerolog.Logger `yaml:"-"`
}

// Client is a cache API client.
type Client struct {
	address  string
	username string
	password string
	session  *http.Client
	retry    RetryConfig
	logger   zerolog.Logger
}

// New creates a client. The address is not validated.
func New(cfg Config) *Client {
	scheme := "http"
	if cfg.IsHTTPS {
		scheme = "https"
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if cfg.Password != "" {
		transport = &basicAuthTransport{
			username: APIUsername,
			password: cfg.Password,
			next:     transport,
		}
	}

	logger := logging.NewLogger(logging.ComponentClient)
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", logging.ComponentClient).Logger()
	}

	return &Client{
		address:  scheme + "://" + cfg.Address,
		username: APIUsername,
		password: cfg.Password,
		session: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		retry:  cfg.Retry,
		logger: logger,
	}
}

// FromDict creates a client from a dictionary with the keys address,
// password and is_https. A nil or missing password means no authentication.
func FromDict(d map[string]any) (*Client, error) {
	var cfg Config

	switch v := d["address"].(type) {
	case nil:
	case string:
		cfg.Address = v
	default:
		return nil, fmt.Errorf("address: expected string, got %T", v)
	}

	switch v := d["password"].(type) {
	case nil:
	case string:
		cfg.Password = v
	default:
		return nil, fmt.Errorf("password: expected string, got %T", v)
	}

	switch v := d["is_https"].(type) {
	case nil:
	case bool:
		cfg.IsHTTPS = v
	case string:
		b, err := ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("is_https: %w", err)
		}
		cfg.IsHTTPS = b
	default:
		return nil, fmt.Errorf("is_https: expected bool, got %T", v)
	}

	return New(cfg), nil
}

// Address returns the base URL including the scheme.
func (c *Client) Address() string {
	return c.address
}

// Username returns the identity used for authentication.
func (c *Client) Username() string {
	return c.username
}

// Session returns the HTTP client used for all requests.
func (c *Client) Session() *http.Client {
	return c.session
}

// Credentials returns the Basic Auth credentials attached to the session;
// ok is false when requests are sent unauthenticated.
func (c *Client) Credentials() (username, password string, ok bool) {
	if c.password == "" {
		return "", "", false
	}
	return c.username, c.password, true
}

// basicAuthTransport pre-authenticates every request of a session.
type basicAuthTransport struct {
	username string
	password string
	next     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.SetBasicAuth(t.username, t.password)
	return t.next.RoundTrip(r)
}

// quoteStrayPercent rewrites a '%' not followed by two hex digits as %25 so
// that the key still parses as a URL path. Everything else is left as is.
func quoteStrayPercent(key string) string {
	if !strings.Contains(key, "%") {
		return key
	}

	var b strings.Builder
	for i := 0; i < len(key); i++ {
		if key[i] == '%' && (i+2 >= len(key) || !isHex(key[i+1]) || !isHex(key[i+2])) {
			b.WriteString("%25")
			continue
		}
		b.WriteByte(key[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

// request sends one command and returns the status and raw body. The
// status is not inspected here.
func (c *Client) request(ctx context.Context, cmd Command, key any, value any, withValue bool) (int, string, error) {
	verb := cmd.Verb()
	if verb == "" {
		return 0, "", fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}

	url := c.address + PathPrefix + quoteStrayPercent(fmt.Sprint(key))

	body := map[string]any{"return_prev": true}
	if withValue {
		body["value"] = value
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, "", fmt.Errorf("encode request body: %w", err)
	}

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(string(cmd)).Observe(time.Since(start).Seconds())
	}()

	c.logger.Debug().
		Str("command", string(cmd)).
		Str("method", verb).
		Str("url", url).
		Msg("Executing cache API request")

	var status int
	var raw string

	err = retryWithBackoff(ctx, c.retry, c.logger, func() (ErrorClass, error) {
		req, err := http.NewRequestWithContext(ctx, verb, url, bytes.NewReader(payload))
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.session.Do(req)
		if err != nil {
			c.logger.Warn().Err(err).Str("command", string(cmd)).Msg("Cache API request failed")
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(string(cmd), "network_error").Inc()
			return ErrorClassNetwork, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return ErrorClassNetwork, fmt.Errorf("read response body: %w", err)
		}

		status, raw = resp.StatusCode, string(data)
		requestsTotal.WithLabelValues(string(cmd), strconv.Itoa(status)).Inc()
		return "", nil
	})
	if err != nil {
		return 0, "", err
	}

	c.logger.Debug().
		Str("command", string(cmd)).
		Int("status", status).
		Int("bytes", len(raw)).
		Msg("Cache API response received")

	return status, raw, nil
}

// RunCommand coerces the key and value of cfg, sends the command and
// decodes the response.
func (c *Client) RunCommand(ctx context.Context, cfg CommandConfig) (*CommandResponse, error) {
	if !cfg.Command.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, cfg.Command)
	}

	key, err := coerceKey(cfg.Key, cfg.KeyType)
	if err != nil {
		return nil, err
	}

	value, withValue, err := coerceValue(cfg.Value, cfg.ValueType)
	if err != nil {
		return nil, err
	}

	status, raw, err := c.request(ctx, cfg.Command, key, value, withValue)
	if err != nil {
		return nil, err
	}

	return c.newResponse(cfg.Key, status, raw)
}

func (c *Client) newResponse(key string, status int, raw string) (*CommandResponse, error) {
	data, err := parseData(raw)
	if err != nil {
		class := classifyStatus(status)
		if class == "" {
			class = ErrorClassParse
		}
		errorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().Err(err).Int("status", status).Msg("Cannot decode cache API response")

		return nil, &APIError{
			StatusCode: status,
			ErrorClass: class,
			Message:    http.StatusText(status),
			Body:       raw,
			Err:        fmt.Errorf("%w: %w", ErrInvalidResponse, err),
		}
	}

	return &CommandResponse{
		Key:        key,
		Raw:        raw,
		Data:       data,
		HasValue:   data.Has("value"),
		StatusCode: status,
	}, nil
}

// Get returns the value of a string key.
func (c *Client) Get(ctx context.Context, key string) (*CommandResponse, error) {
	return c.RunCommand(ctx, CommandConfig{Command: CommandGet, Key: key})
}

// Set stores value, which is sent as JSON without coercion, under a string key.
func (c *Client) Set(ctx context.Context, key string, value any) (*CommandResponse, error) {
	status, raw, err := c.request(ctx, CommandSet, key, value, true)
	if err != nil {
		return nil, err
	}
	return c.newResponse(key, status, raw)
}

// Delete removes a string key.
func (c *Client) Delete(ctx context.Context, key string) (*CommandResponse, error) {
	return c.RunCommand(ctx, CommandConfig{Command: CommandDelete, Key: key})
}
