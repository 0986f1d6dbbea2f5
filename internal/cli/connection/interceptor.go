package connection

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/yndnr/dogpay-go/internal/core/domain"
)

// Service names used in logs, metrics and spans.
const (
	ServiceIdentity = "identity"
	ServiceLedger   = "ledger"
)

// Call is one logical request. A call is sent at most twice: once, and
// once more if the refresh coordinator replays it.
type Call struct {
	Service   string
	RequestID string

	// Request is the attempt currently on the wire.
	Request *http.Request

	// AccessToken is the bearer token stamped on the current attempt,
	// empty when the attempt went out unauthenticated.
	AccessToken string

	// Retried is set once the coordinator has handled a 401 for this call.
	Retried bool

	// SkipRefresh opts the call out of 401 recovery. Set for login and
	// register, whose 401 means bad credentials.
	SkipRefresh bool

	// SentAt is when the current attempt was handed to the transport.
	SentAt time.Time

	template *http.Request
	body     []byte
}

// NewCall prepares a call for req. The body is buffered so the call can
// be replayed.
func NewCall(service string, req *http.Request) (*Call, error) {
	c := &Call{Service: service, template: req}
	if req.Body != nil && req.Body != http.NoBody {
		data, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		c.body = data
	}
	c.Request = c.attempt(req.Context())
	return c, nil
}

// attempt builds a fresh request for the next send.
func (c *Call) attempt(ctx context.Context) *http.Request {
	req := c.template.Clone(ctx)
	if c.body != nil {
		req.Body = io.NopCloser(bytes.NewReader(c.body))
		req.ContentLength = int64(len(c.body))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(c.body)), nil
		}
	} else {
		req.Body = http.NoBody
	}
	return req
}

// RequestInterceptor runs before every attempt, including replays.
type RequestInterceptor interface {
	InterceptRequest(ctx context.Context, call *Call) error
}

// RequestInterceptorFunc adapts a function to RequestInterceptor.
type RequestInterceptorFunc func(ctx context.Context, call *Call) error

// InterceptRequest calls f.
func (f RequestInterceptorFunc) InterceptRequest(ctx context.Context, call *Call) error {
	return f(ctx, call)
}

// Replayer sends call again through the whole chain.
type Replayer func(ctx context.Context, call *Call) (*http.Response, error)

// ResponseInterceptor runs after every attempt that produced a response.
// It returns the response the caller should see, which may come from a
// replay.
type ResponseInterceptor interface {
	InterceptResponse(ctx context.Context, call *Call, resp *http.Response, replay Replayer) (*http.Response, error)
}

// TransportErrorObserver is implemented by response interceptors that
// also want to see attempts that failed without a response.
type TransportErrorObserver interface {
	ObserveTransportError(ctx context.Context, call *Call, err error)
}

// Chain is an ordered set of interceptors around an http.Client.
type Chain struct {
	client   *http.Client
	request  []RequestInterceptor
	response []ResponseInterceptor
}

// NewChain creates a chain sending through client.
func NewChain(client *http.Client) *Chain {
	if client == nil {
		client = http.DefaultClient
	}
	return &Chain{client: client}
}

// UseRequest appends request interceptors.
func (ch *Chain) UseRequest(in ...RequestInterceptor) *Chain {
	ch.request = append(ch.request, in...)
	return ch
}

// UseResponse appends response interceptors.
func (ch *Chain) UseResponse(in ...ResponseInterceptor) *Chain {
	ch.response = append(ch.response, in...)
	return ch
}

// Client returns the underlying http.Client.
func (ch *Chain) Client() *http.Client {
	return ch.client
}

// Do sends call through the chain. A transport failure is returned as
// domain.ErrNetwork; non-2xx responses are returned as responses.
func (ch *Chain) Do(ctx context.Context, call *Call) (*http.Response, error) {
	for _, in := range ch.request {
		if err := in.InterceptRequest(ctx, call); err != nil {
			return nil, err
		}
	}

	call.SentAt = time.Now()
	resp, err := ch.client.Do(call.Request)
	if err != nil {
		for _, in := range ch.response {
			if o, ok := in.(TransportErrorObserver); ok {
				o.ObserveTransportError(ctx, call, err)
			}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.ErrNetwork.WithDetails(call.Service).WithCause(err)
	}

	for _, in := range ch.response {
		if resp, err = in.InterceptResponse(ctx, call, resp, ch.replay); err != nil {
			return resp, err
		}
	}
	return resp, nil
}

func (ch *Chain) replay(ctx context.Context, call *Call) (*http.Response, error) {
	call.Request = call.attempt(ctx)
	return ch.Do(ctx, call)
}
