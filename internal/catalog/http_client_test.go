package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hperssn/benchtop/internal/retry"
)

func testPolicy() retry.Policy {
	return retry.Policy{MaxRetries: 2, InitDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestHTTPClientList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/checklists", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[` + screenJSON + `, {"id": "broken", "steps": [{"order": 0}]}]`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", time.Second, testPolicy(), nil)

	all, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1, "invalid record should be skipped")
	assert.Equal(t, "iphone-screen", all[0].ID)

	def, err := c.Get(context.Background(), "iphone-screen")
	require.NoError(t, err)
	assert.Len(t, def.Steps, 3)

	_, err = c.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, testPolicy(), nil)

	all, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, testPolicy(), nil)

	_, err := c.List(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPClientNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, testPolicy(), nil)

	_, err := c.List(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}
