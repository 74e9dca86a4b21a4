package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Data []struct {
		Route string `json:"route"`
	} `json:"data"`
}

func newTestClient(retries *[]time.Duration) *Client {
	return NewClient(nil, Options{
		MaxAttempts: 3,
		Backoff:     5 * time.Millisecond,
		Timeout:     200 * time.Millisecond,
		OnRetry: func(url string, err error, wait time.Duration) {
			*retries = append(*retries, wait)
		},
	})
}

func TestGetJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{"data":[{"route":"1A"}]}`))
	}))
	defer srv.Close()

	var retries []time.Duration
	var out payload
	require.NoError(t, newTestClient(&retries).GetJSON(context.Background(), srv.URL, &out))
	require.Len(t, out.Data, 1)
	assert.Equal(t, "1A", out.Data[0].Route)
	assert.Empty(t, retries)
}

func TestGetJSON_RecoversOnThirdAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	var retries []time.Duration
	var out payload
	require.NoError(t, newTestClient(&retries).GetJSON(context.Background(), srv.URL, &out))
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, []time.Duration{5 * time.Millisecond, 5 * time.Millisecond}, retries)
}

func TestGetJSON_ExhaustsBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var retries []time.Duration
	var out payload
	err := newTestClient(&retries).GetJSON(context.Background(), srv.URL+"?key=secret", &out)
	require.Error(t, err)

	var tf *TransportFailure
	require.True(t, errors.As(err, &tf))
	assert.Equal(t, 3, tf.Attempts)
	assert.NotContains(t, tf.URL, "secret")
	assert.EqualValues(t, 3, calls.Load())
	assert.Len(t, retries, 2, "exactly two delays between three attempts")

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
}

func TestGetJSON_MalformedBodyIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`<html>oops`))
	}))
	defer srv.Close()

	var retries []time.Duration
	var out payload
	err := newTestClient(&retries).GetJSON(context.Background(), srv.URL, &out)
	assert.True(t, IsTransportFailure(err))
	assert.EqualValues(t, 3, calls.Load())
}

func TestGetJSON_AttemptTimeout(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-time.After(time.Second):
			case <-r.Context().Done():
			}
			return
		}
		w.Write([]byte(`{"data":[{"route":"2"}]}`))
	}))
	defer srv.Close()

	client := NewClient(nil, Options{MaxAttempts: 2, Backoff: time.Millisecond, Timeout: 50 * time.Millisecond,
		OnRetry: func(string, error, time.Duration) {}})
	var out payload
	require.NoError(t, client.GetJSON(context.Background(), srv.URL, &out))
	assert.EqualValues(t, 2, calls.Load())
}

func TestGetJSON_ContextCancelledStopsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(nil, Options{MaxAttempts: 3, Backoff: time.Hour,
		OnRetry: func(string, error, time.Duration) { cancel() }})

	var out payload
	err := client.GetJSON(ctx, srv.URL, &out)
	assert.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}
