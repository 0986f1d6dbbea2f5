package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yndnr/dogpay-go/internal/core/domain"
	"github.com/yndnr/dogpay-go/internal/infra/tlsroots"
	"github.com/yndnr/dogpay-go/internal/telemetry/logger"
	"github.com/yndnr/dogpay-go/internal/telemetry/tracer"
)

// DefaultTimeout bounds a single attempt.
const DefaultTimeout = 30 * time.Second

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithClientTracer traces every call.
func WithClientTracer(p *tracer.Provider) ClientOption {
	return func(c *HTTPClient) { c.tracer = p }
}

// WithClientLogger sets the logger.
func WithClientLogger(l logger.Logger) ClientOption {
	return func(c *HTTPClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithUserAgent sets the User-Agent used by direct requests.
func WithUserAgent(ua string) ClientOption {
	return func(c *HTTPClient) { c.userAgent = ua }
}

// HTTPClient sends JSON requests to one service.
type HTTPClient struct {
	service   string
	baseURL   string
	chain     *Chain
	tracer    *tracer.Provider
	logger    logger.Logger
	userAgent string
}

// NewHTTPClient creates a client for the service at baseURL. Requests
// made with Get and Post go through chain.
func NewHTTPClient(service, baseURL string, chain *Chain, opts ...ClientOption) *HTTPClient {
	// Ensure baseURL has http:// prefix
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	if chain == nil {
		chain = NewChain(nil)
	}
	c := &HTTPClient{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		chain:   chain,
		logger:  logger.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a GET request through the chain.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil, false)
}

// Post performs a POST request with a JSON body through the chain.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body, false)
}

// PostUnauthenticated is Post for endpoints whose 401 is an answer, not an
// expired session.
func (c *HTTPClient) PostUnauthenticated(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body, true)
}

// PostDirect sends a POST without the chain: no credential, no refresh,
// no replay. Used for the refresh exchange itself.
func (c *HTTPClient) PostDirect(ctx context.Context, path string, body any) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	id, err := domain.NewRequestID()
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Request-ID", id)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.chain.Client().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.ErrNetwork.WithDetails(c.service).WithCause(err)
	}
	c.logger.Debug("direct request",
		"service", c.service,
		"path", path,
		"status", resp.StatusCode,
		"request_id", id,
	)
	return resp, nil
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Service returns the service name.
func (c *HTTPClient) Service() string {
	return c.service
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, skipRefresh bool) (*http.Response, error) {
	ctx, span := c.tracer.StartSpan(ctx, c.service+" "+method+" "+path,
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
		attribute.String("dogpay.service", c.service),
	)
	defer span.End()

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	call, err := NewCall(c.service, req)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("buffer request: %w", err)
	}
	call.SkipRefresh = skipRefresh

	resp, err := c.chain.Do(ctx, call)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("http.response.status_code", resp.StatusCode),
		attribute.Bool("dogpay.replayed", call.Retried),
	)
	return resp, nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// errorBody covers both error shapes the services return.
type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParseResponse decodes a 2xx JSON body into target and maps any other
// status to a domain error carrying the server's message. The body is
// always closed.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var eb errorBody
		msg := ""
		if json.Unmarshal(data, &eb) == nil {
			switch {
			case eb.Error != "":
				msg = eb.Error
			case eb.Message != "" && eb.Code != "":
				msg = fmt.Sprintf("[%s] %s", eb.Code, eb.Message)
			case eb.Message != "":
				msg = eb.Message
			}
		}
		return domain.ResponseError(resp.StatusCode, msg)
	}

	if target == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.ErrMalformedResponse.WithStatus(resp.StatusCode).WithDetails("empty body")
		}
		return domain.ErrMalformedResponse.WithStatus(resp.StatusCode).WithCause(err)
	}
	return nil
}

// NewTransport builds the http.Client shared by both services. caFile, if
// set, adds a PEM bundle or a directory of them to the system roots.
func NewTransport(timeout time.Duration, caFile string) (*http.Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if caFile != "" {
		tlsConfig, err := tlsroots.ClientConfig(caFile)
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig = tlsConfig
	}
	return &http.Client{Timeout: timeout, Transport: transport}, nil
}
