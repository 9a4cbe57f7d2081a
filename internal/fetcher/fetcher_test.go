package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	return New(Config{
		UserAgent: "harvester-test/1.0",
		Timeout:   5 * time.Second,
		MinDelay:  time.Millisecond,
	}, NewRetryPolicy(3, time.Millisecond, 5*time.Millisecond), zap.NewNop())
}

func TestGetSuccess(t *testing.T) {
	t.Parallel()

	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.UserAgent())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	res, err := testClient(t).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, []byte("hello"), res.Body)
	require.Equal(t, "harvester-test/1.0", gotUA.Load())
}

func TestGetRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	res, err := testClient(t).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, []byte("ok"), res.Body)
	require.Equal(t, int32(2), calls.Load())
}

func TestGetRetriesRateLimiting(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	res, err := testClient(t).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, []byte("ok"), res.Body)
	require.Equal(t, int32(3), calls.Load())
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(t).Get(context.Background(), srv.URL)
	require.Error(t, err)
	require.Equal(t, int32(1), calls.Load())

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusNotFound, statusErr.Code)
	require.False(t, statusErr.Transient())
}

func TestGetGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(t).Get(context.Background(), srv.URL)
	require.Error(t, err)
	require.Equal(t, int32(3), calls.Load())
}

func TestGetHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(t).Get(ctx, "http://127.0.0.1:0/never")
	require.Error(t, err)
}

func TestGetMinDelaySpacesRequests(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(Config{
		UserAgent: "harvester-test/1.0",
		Timeout:   5 * time.Second,
		MinDelay:  50 * time.Millisecond,
	}, NewExponentialRetryPolicy(), zap.NewNop())

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Get(context.Background(), srv.URL)
		require.NoError(t, err)
	}
	// First token is free; two more must wait for the refill interval.
	require.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}
