package seed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FairForge/otpload/internal/httpx"
	"github.com/FairForge/otpload/internal/loadtest"
)

type memRecorder struct {
	mu      sync.Mutex
	results []loadtest.Result
}

func (m *memRecorder) Record(res loadtest.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, res)
}

// redisBackend answers /v1/redis/set with 200 until failAt writes have
// been seen, then 500.
func redisBackend(t *testing.T, failAt int64) (*httptest.Server, *sync.Map, *atomic.Int64) {
	t.Helper()
	var store sync.Map
	var writes atomic.Int64

	r := chi.NewRouter()
	r.Post("/v1/redis/set", func(w http.ResponseWriter, r *http.Request) {
		n := writes.Add(1)
		if failAt >= 0 && n > failAt {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		store.Store(r.URL.Query().Get("key"), r.URL.Query().Get("value"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, &store, &writes
}

func setRequest(i int) httpx.Request {
	return httpx.Request{
		Method: http.MethodPost,
		Path:   "/v1/redis/set",
		Query:  url.Values{"key": {"otp:1:09120000000:seed:" + strconv.Itoa(i)}, "value": {"v"}},
		Tags:   loadtest.Tags{"op": "redis_seed"},
	}
}

func TestSeed_AllKeys(t *testing.T) {
	srv, store, writes := redisBackend(t, -1)
	client, err := httpx.New(httpx.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	rec := &memRecorder{}
	s := New(client, rec, zap.NewNop())

	require.NoError(t, s.Seed(context.Background(), 5, setRequest))

	assert.Equal(t, int64(5), writes.Load())
	_, ok := store.Load("otp:1:09120000000:seed:4")
	assert.True(t, ok)

	require.Len(t, rec.results, 5)
	for _, res := range rec.results {
		assert.Equal(t, "setup", res.Tags["phase"])
		assert.Equal(t, "redis_seed", res.Tags["op"])
	}
}

func TestSeed_StopsAtFirstFailure(t *testing.T) {
	srv, _, writes := redisBackend(t, 3)
	client, err := httpx.New(httpx.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	rec := &memRecorder{}
	err = New(client, rec, nil).Seed(context.Background(), 10, setRequest)

	require.Error(t, err)
	assert.Equal(t, "seed failed at i=3, status=500", err.Error())

	var serr *Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, 3, serr.Index)
	assert.Equal(t, 500, serr.Status)

	// no further writes after the failing one
	assert.Equal(t, int64(4), writes.Load())
	assert.Len(t, rec.results, 4)
}

func TestSeed_TransportErrorIsStatusZero(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	client, err := httpx.New(httpx.Config{BaseURL: addr})
	require.NoError(t, err)

	err = New(client, nil, nil).Seed(context.Background(), 3, setRequest)

	var serr *Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, 0, serr.Index)
	assert.Equal(t, 0, serr.Status)
	assert.NotNil(t, serr.Unwrap())
	assert.Contains(t, err.Error(), "seed failed at i=0, status=0")
}

func TestSeed_ZeroIsNoop(t *testing.T) {
	srv, _, writes := redisBackend(t, -1)
	client, err := httpx.New(httpx.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	assert.NoError(t, New(client, nil, nil).Seed(context.Background(), 0, setRequest))
	assert.Equal(t, int64(0), writes.Load())
}

func TestSeed_Cancelled(t *testing.T) {
	srv, _, writes := redisBackend(t, -1)
	client, err := httpx.New(httpx.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = New(client, nil, nil).Seed(ctx, 5, setRequest)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), writes.Load())
}

func TestError_Message(t *testing.T) {
	e := &Error{Index: 7, Status: 503}
	assert.Equal(t, "seed failed at i=7, status=503", e.Error())
	assert.Nil(t, e.Unwrap())
}
