package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/cartsync/internal/core/domain"
)

type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   string
}

type staticTokens string

func (s staticTokens) Token(ctx context.Context) (string, error) { return string(s), nil }

type failingTokens struct{}

func (failingTokens) Token(ctx context.Context) (string, error) {
	return "", errors.New("keychain locked")
}

func newStubServer(t *testing.T, status int, body string) (*httptest.Server, <-chan recordedRequest) {
	t.Helper()
	ch := make(chan recordedRequest, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		ch <- recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Header: r.Header.Clone(),
			Body:   string(raw),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, ch
}

const oneLine = `{"carrito":[{"producto":{"id":42,"nombre":"iPhone 13","precio":999},"cantidad":1}]}`

func TestList_DecodesSnapshotAndSetsHeaders(t *testing.T) {
	srv, reqs := newStubServer(t, http.StatusOK, oneLine)

	gw, err := NewHTTPGateway(srv.URL+"/carrito/api/", Options{Tokens: staticTokens("secret")})
	require.NoError(t, err)

	snap, err := gw.List(context.Background())
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, "42", snap[0].ProductID)
	assert.Equal(t, "iPhone 13", snap[0].Product.Name)
	assert.Equal(t, "999.00", snap[0].Product.UnitPrice.StringFixed(2))
	assert.Equal(t, 1, snap[0].Quantity)

	req := <-reqs
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/carrito/api/ver", req.Path)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
	assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
	assert.NotEmpty(t, req.Header.Get(HeaderRequestID))
	assert.Empty(t, req.Body)
}

func TestMutations_UseContractPathsAndBodies(t *testing.T) {
	srv, reqs := newStubServer(t, http.StatusOK, `{"carrito":[]}`)

	gw, err := NewHTTPGateway(srv.URL+"/carrito/api", Options{})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = gw.Add(ctx, "42", 2)
	require.NoError(t, err)
	req := <-reqs
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/carrito/api/agregar", req.Path)
	assert.JSONEq(t, `{"producto_id":42,"cantidad":2}`, req.Body)
	assert.Empty(t, req.Header.Get("Authorization"))

	_, err = gw.UpdateQuantity(ctx, "42", 5)
	require.NoError(t, err)
	req = <-reqs
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/carrito/api/actualizar/42", req.Path)
	assert.JSONEq(t, `{"cantidad":5}`, req.Body)

	_, err = gw.Remove(ctx, "42")
	require.NoError(t, err)
	req = <-reqs
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "/carrito/api/eliminar/42", req.Path)
	assert.Empty(t, req.Body)

	_, err = gw.Clear(ctx)
	require.NoError(t, err)
	req = <-reqs
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/carrito/api/vaciar", req.Path)
	assert.Empty(t, req.Body)
}

func TestAdd_NonNumericProductIDSentAsString(t *testing.T) {
	srv, reqs := newStubServer(t, http.StatusOK, `{"carrito":[]}`)
	gw, err := NewHTTPGateway(srv.URL, Options{})
	require.NoError(t, err)

	_, err = gw.Add(context.Background(), "sku-9", 1)
	require.NoError(t, err)

	req := <-reqs
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(req.Body), &body))
	assert.Equal(t, "sku-9", body["producto_id"])
}

func TestSend_GetNeverCarriesBody(t *testing.T) {
	srv, reqs := newStubServer(t, http.StatusOK, `{"carrito":[]}`)
	gw, err := NewHTTPGateway(srv.URL, Options{})
	require.NoError(t, err)

	_, err = gw.Send(context.Background(), "ver", http.MethodGet, map[string]int{"x": 1})
	require.NoError(t, err)
	assert.Empty(t, (<-reqs).Body)
}

func TestSend_ServerErrorUsesMessageField(t *testing.T) {
	srv, _ := newStubServer(t, http.StatusBadRequest, `{"message":"Producto sin stock"}`)
	gw, err := NewHTTPGateway(srv.URL, Options{})
	require.NoError(t, err)

	_, err = gw.Add(context.Background(), "42", 1)

	var reqErr *domain.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, domain.KindServer, reqErr.Kind)
	assert.Equal(t, http.StatusBadRequest, reqErr.Status)
	assert.Equal(t, "Producto sin stock", reqErr.Message)
}

func TestSend_ServerErrorFallsBackToStatus(t *testing.T) {
	tests := map[string]string{
		"html body":     `<html>oops</html>`,
		"other schema":  `{"detail":"nope"}`,
		"empty body":    ``,
		"blank message": `{"message":"  "}`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			srv, _ := newStubServer(t, http.StatusInternalServerError, body)
			gw, err := NewHTTPGateway(srv.URL, Options{})
			require.NoError(t, err)

			_, err = gw.List(context.Background())

			var reqErr *domain.RequestError
			require.ErrorAs(t, err, &reqErr)
			assert.Equal(t, domain.KindServer, reqErr.Kind)
			assert.Equal(t, "Error 500: Internal Server Error", reqErr.Message)
		})
	}
}

func TestSend_MalformedResponse(t *testing.T) {
	tests := map[string]string{
		"not json":          `carrito`,
		"wrong shape":       `[1,2,3]`,
		"duplicate product": `{"carrito":[{"producto":{"id":1,"precio":1},"cantidad":1},{"producto":{"id":1,"precio":1},"cantidad":2}]}`,
		"missing id":        `{"carrito":[{"producto":{"precio":1},"cantidad":1}]}`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			srv, _ := newStubServer(t, http.StatusOK, body)
			gw, err := NewHTTPGateway(srv.URL, Options{})
			require.NoError(t, err)

			_, err = gw.List(context.Background())
			assert.Equal(t, domain.KindMalformedResponse, domain.KindOf(err))

			var reqErr *domain.RequestError
			require.ErrorAs(t, err, &reqErr)
			assert.Equal(t, domain.MsgMalformedResponse, reqErr.Message)
		})
	}
}

func TestSend_LenientSnapshotDecoding(t *testing.T) {
	body := `{"carrito":[
		{"producto":{"id":"7","nombre":"Mouse","precio":"19.90"},"cantidad":2},
		{"producto":{"id":8,"nombre":"Gone","precio":5},"cantidad":0}
	]}`
	srv, _ := newStubServer(t, http.StatusOK, body)
	gw, err := NewHTTPGateway(srv.URL, Options{})
	require.NoError(t, err)

	snap, err := gw.List(context.Background())
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, "7", snap[0].ProductID)
	assert.Equal(t, "19.90", snap[0].Product.UnitPrice.StringFixed(2))

	srv2, _ := newStubServer(t, http.StatusOK, `{}`)
	gw2, err := NewHTTPGateway(srv2.URL, Options{})
	require.NoError(t, err)
	snap, err = gw2.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestSend_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	gw, err := NewHTTPGateway(srv.URL, Options{Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	_, err = gw.UpdateQuantity(context.Background(), "42", 5)

	assert.Less(t, time.Since(start), 5*time.Second)
	var reqErr *domain.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, domain.KindTimeout, reqErr.Kind)
	assert.Equal(t, domain.MsgTimeout, reqErr.Message)
}

func TestSend_UnreachableIsMalformedRequest(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	gw, err := NewHTTPGateway(url, Options{Timeout: 2 * time.Second})
	require.NoError(t, err)

	_, err = gw.List(context.Background())

	var reqErr *domain.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, domain.KindMalformedRequest, reqErr.Kind)
	assert.Equal(t, domain.MsgMalformedRequest, reqErr.Message)
}

func TestSend_ConnectionDroppedIsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			return
		}
		if conn, _, err := hj.Hijack(); err == nil {
			conn.Close()
		}
	}))
	defer srv.Close()

	gw, err := NewHTTPGateway(srv.URL, Options{Timeout: 2 * time.Second})
	require.NoError(t, err)

	_, err = gw.List(context.Background())
	assert.Equal(t, domain.KindUnknown, domain.KindOf(err))
}

func TestNewHTTPGateway_TimeoutNeverExceedsBound(t *testing.T) {
	gw, err := NewHTTPGateway("http://localhost:8000/api", Options{Timeout: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, gw.timeout)

	short, err := NewHTTPGateway("http://localhost:8000/api", Options{Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, short.timeout)

	unset, err := NewHTTPGateway("http://localhost:8000/api", Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, unset.timeout)
}

func TestSend_CredentialFailureIsMalformedRequest(t *testing.T) {
	srv, _ := newStubServer(t, http.StatusOK, `{"carrito":[]}`)
	gw, err := NewHTTPGateway(srv.URL, Options{Tokens: failingTokens{}})
	require.NoError(t, err)

	_, err = gw.List(context.Background())
	assert.Equal(t, domain.KindMalformedRequest, domain.KindOf(err))
}

func TestNewHTTPGateway_RejectsInvalidBase(t *testing.T) {
	_, err := NewHTTPGateway("not a url", Options{})
	assert.Error(t, err)

	_, err = NewHTTPGateway("://bad", Options{})
	assert.Error(t, err)
}

func TestEndpointURL_CollapsesSlashes(t *testing.T) {
	gw, err := NewHTTPGateway("http://localhost:8000/carrito//api/", Options{})
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/carrito/api/ver", gw.endpointURL("ver"))
	assert.Equal(t, "http://localhost:8000/carrito/api/eliminar/42", gw.endpointURL("/eliminar//42"))

	bare, err := NewHTTPGateway("https://shop.example", Options{})
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/vaciar", bare.endpointURL("vaciar"))
}
