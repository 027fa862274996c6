package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/cartsync/internal/core/domain"
	"github.com/rl1809/cartsync/internal/port"
)

const (
	DefaultTimeout = 10 * time.Second

	HeaderRequestID = "X-Request-ID"

	maxResponseBytes = 4 << 20
)

// Remote endpoints, relative to the base URL.
const (
	endpointList   = "ver"
	endpointAdd    = "agregar"
	endpointRemove = "eliminar/"
	endpointUpdate = "actualizar/"
	endpointClear  = "vaciar"
)

type Options struct {
	// Timeout bounds each request end to end. Zero means DefaultTimeout;
	// longer values are capped at DefaultTimeout.
	Timeout time.Duration

	// Tokens supplies the bearer credential. Nil sends no Authorization header.
	Tokens port.TokenSource

	// HTTPClient overrides the default client, which keeps a cookie jar.
	HTTPClient *http.Client
}

// HTTPGateway issues bounded-time JSON requests to the remote cart service
// and classifies every failure as a *domain.RequestError.
type HTTPGateway struct {
	base    *url.URL
	client  *http.Client
	tokens  port.TokenSource
	timeout time.Duration
}

func NewHTTPGateway(baseURL string, opts Options) (*HTTPGateway, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid cart api url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid cart api url %q: scheme and host are required", baseURL)
	}

	client := opts.HTTPClient
	if client == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		client = &http.Client{Jar: jar}
	}

	timeout := opts.Timeout
	if timeout <= 0 || timeout > DefaultTimeout {
		timeout = DefaultTimeout
	}

	return &HTTPGateway{base: u, client: client, tokens: opts.Tokens, timeout: timeout}, nil
}

func (g *HTTPGateway) List(ctx context.Context) (domain.Snapshot, error) {
	return g.Send(ctx, endpointList, http.MethodGet, nil)
}

func (g *HTTPGateway) Add(ctx context.Context, productID string, quantity int) (domain.Snapshot, error) {
	return g.Send(ctx, endpointAdd, http.MethodPost, addRequest{
		ProductoID: productIDValue(productID),
		Cantidad:   quantity,
	})
}

func (g *HTTPGateway) Remove(ctx context.Context, productID string) (domain.Snapshot, error) {
	return g.Send(ctx, endpointRemove+url.PathEscape(productID), http.MethodDelete, nil)
}

func (g *HTTPGateway) UpdateQuantity(ctx context.Context, productID string, quantity int) (domain.Snapshot, error) {
	return g.Send(ctx, endpointUpdate+url.PathEscape(productID), http.MethodPut, updateRequest{Cantidad: quantity})
}

func (g *HTTPGateway) Clear(ctx context.Context) (domain.Snapshot, error) {
	return g.Send(ctx, endpointClear, http.MethodPost, nil)
}

// Send performs one request against endpoint and decodes the cart snapshot
// from the response. The body is serialized only for mutating methods.
func (g *HTTPGateway) Send(ctx context.Context, endpoint, method string, body any) (domain.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := g.newRequest(ctx, endpoint, method, body)
	if err != nil {
		return nil, domain.NewMalformedRequestError(err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.NewServerError(resp.StatusCode, errorMessage(resp.StatusCode, raw))
	}

	snap, err := decodeSnapshot(raw)
	if err != nil {
		return nil, domain.NewMalformedResponseError(err)
	}
	return snap, nil
}

func (g *HTTPGateway) newRequest(ctx context.Context, endpoint, method string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil && hasBody(method) {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.endpointURL(endpoint), reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, uuid.NewString())

	if g.tokens != nil {
		token, err := g.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("load credential: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	return req, nil
}

// endpointURL joins the base path and endpoint, collapsing repeated slashes.
func (g *HTTPGateway) endpointURL(endpoint string) string {
	root := *g.base
	root.Path, root.RawPath, root.RawQuery, root.Fragment = "", "", "", ""
	return root.String() + collapseSlashes("/"+g.base.EscapedPath()+"/"+endpoint)
}

func collapseSlashes(p string) string {
	var b strings.Builder
	b.Grow(len(p))
	prevSlash := false
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.NewTimeoutError(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewTimeoutError(err)
	}
	// A request that never reached the server (refused, bad host) is reported
	// like one the client could not build.
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return domain.NewMalformedRequestError(err)
	}
	return domain.NewUnknownError(err)
}

func errorMessage(status int, raw []byte) string {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil && strings.TrimSpace(body.Message) != "" {
		return body.Message
	}
	return fmt.Sprintf("Error %d: %s", status, http.StatusText(status))
}
