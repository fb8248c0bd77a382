package netx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReachable(t *testing.T) {
	t.Run("2xx and 4xx are reachable", func(t *testing.T) {
		var gotMethod string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			if r.URL.Path == "/missing" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer ts.Close()

		require.NoError(t, Reachable(context.Background(), ts.Client(), ts.URL))
		assert.Equal(t, http.MethodHead, gotMethod)
		require.NoError(t, Reachable(context.Background(), ts.Client(), ts.URL+"/missing"))
	})

	t.Run("5xx is an error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer ts.Close()

		err := Reachable(context.Background(), ts.Client(), ts.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("closed server", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		ts.Close()

		assert.Error(t, Reachable(context.Background(), nil, ts.URL))
	})
}

func TestAnyReachable(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	alive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer alive.Close()

	ctx := context.Background()
	assert.NoError(t, AnyReachable(ctx, nil, []string{dead.URL, alive.URL}))
	assert.Error(t, AnyReachable(ctx, nil, []string{dead.URL}))
	assert.Error(t, AnyReachable(ctx, nil, nil))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, AnyReachable(cancelled, nil, []string{alive.URL}), context.Canceled)
}
