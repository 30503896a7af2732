package instrument

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/thebtf/engram-storage/internal/db"
	"github.com/thebtf/engram-storage/internal/db/dbtest"
	"github.com/thebtf/engram-storage/internal/db/file"
	"github.com/thebtf/engram-storage/pkg/models"
)

// recorder counts Add calls per instrument and op attribute.
type recorder struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (r *recorder) add(instrument string, n int64, opts []metric.AddOption) {
	cfg := metric.NewAddConfig(opts)
	set := cfg.Attributes()
	op, _ := set.Value(attribute.Key("op"))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[instrument+"/"+op.AsString()] += n
}

func (r *recorder) get(key string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[key]
}

type provider struct {
	noop.MeterProvider
	rec *recorder
}

func (p provider) Meter(string, ...metric.MeterOption) metric.Meter {
	return meter{rec: p.rec}
}

type meter struct {
	noop.Meter
	rec *recorder
}

func (m meter) Int64Counter(name string, _ ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	return counter{name: name, rec: m.rec}, nil
}

type counter struct {
	noop.Int64Counter
	name string
	rec  *recorder
}

func (c counter) Add(_ context.Context, n int64, opts ...metric.AddOption) {
	c.rec.add(c.name, n, opts)
}

func newFileStore(t *testing.T) db.Store {
	t.Helper()
	store, err := file.New(file.Config{Dir: filepath.Join(t.TempDir(), "data")})
	require.NoError(t, err)
	return store
}

func TestStoreContract(t *testing.T) {
	dbtest.Run(t, func(t *testing.T) db.Store {
		store, err := Wrap(newFileStore(t), WithMeterProvider(noop.NewMeterProvider()))
		require.NoError(t, err)
		return store
	})
}

func TestWrap_RecordsCallsAndErrors(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{counts: map[string]int64{}}
	store, err := Wrap(newFileStore(t), WithMeterProvider(provider{rec: rec}))
	require.NoError(t, err)
	assert.Equal(t, "file", store.Name())

	// Before Initialize every call fails with context.
	_, err = store.GetAllProjects(ctx)
	require.ErrorIs(t, err, db.ErrNotInitialized)
	assert.Contains(t, err.Error(), "file all projects:")

	require.NoError(t, store.Initialize(ctx))
	defer store.Close()

	_, err = store.CreateSDKSession(ctx, "abc-1", "demo", "hello")
	require.NoError(t, err)
	_, _, err = store.StoreObservation(ctx, "mem-1", "demo", &models.ParsedObservation{Type: "bogus"}, 1, 0)
	require.ErrorIs(t, err, db.ErrInvalidObservationType)
	assert.Contains(t, err.Error(), "file store observation:")

	assert.Equal(t, int64(1), rec.get("engram.storage.calls/all projects"))
	assert.Equal(t, int64(1), rec.get("engram.storage.errors/all projects"))
	assert.Equal(t, int64(1), rec.get("engram.storage.calls/create session"))
	assert.Equal(t, int64(0), rec.get("engram.storage.errors/create session"))
	assert.Equal(t, int64(1), rec.get("engram.storage.errors/store observation"))
}

func TestWrap_NotFoundIsNotAnError(t *testing.T) {
	ctx := context.Background()
	store, err := Wrap(newFileStore(t), WithMeterProvider(noop.NewMeterProvider()))
	require.NoError(t, err)
	require.NoError(t, store.Initialize(ctx))
	defer store.Close()

	sess, err := store.GetSessionByID(ctx, 42)
	assert.NoError(t, err)
	assert.Nil(t, sess)
}

func TestUnwrap(t *testing.T) {
	inner := newFileStore(t)
	store, err := Wrap(inner)
	require.NoError(t, err)
	assert.Same(t, inner, store.Unwrap())
}
