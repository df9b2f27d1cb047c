package kv

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/accessguard/internal/testutil"
	"github.com/StricklySoft/accessguard/pkg/clients/redis"
	agerr "github.com/StricklySoft/accessguard/pkg/errors"
)

// ---------------------------------------------------------------------------
// Memory
// ---------------------------------------------------------------------------

func TestMemory_SetGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	_, found, err := m.Get(ctx, "jwks:a")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, m.Set(ctx, "jwks:a", []byte("v1"), time.Minute))
	got, found, err := m.Get(ctx, "jwks:a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v1"), got)
	assert.Equal(t, 1, m.Len())

	m.Delete("jwks:a")
	_, found, _ = m.Get(ctx, "jwks:a")
	assert.False(t, found)
}

func TestMemory_CopiesValues(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	in := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", in, 0))
	in[0] = 'x'

	out, _, _ := m.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), out)
	out[0] = 'y'

	again, _, _ := m.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
}

func TestMemory_Expiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "short", []byte("v"), 20*time.Millisecond))
	require.NoError(t, m.Set(ctx, "forever", []byte("v"), 0))

	assert.Eventually(t, func() bool {
		_, found, _ := m.Get(ctx, "short")
		return !found
	}, time.Second, 5*time.Millisecond)

	_, found, _ := m.Get(ctx, "forever")
	assert.True(t, found)
}

// ---------------------------------------------------------------------------
// Redis
// ---------------------------------------------------------------------------

// fakeCmdable is an in-memory redis.Cmdable recording expiries.
type fakeCmdable struct {
	mu   sync.Mutex
	data map[string][]byte
	ttl  map[string]time.Duration
	err  error
}

func newFakeCmdable() *fakeCmdable {
	return &fakeCmdable{data: map[string][]byte{}, ttl: map[string]time.Duration{}}
}

func (f *fakeCmdable) Get(ctx context.Context, key string) *goredis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := goredis.NewStringCmd(ctx)
	switch v, ok := f.data[key]; {
	case f.err != nil:
		cmd.SetErr(f.err)
	case !ok:
		cmd.SetErr(goredis.Nil)
	default:
		cmd.SetVal(string(v))
	}
	return cmd
}

func (f *fakeCmdable) Set(ctx context.Context, key string, value interface{}, exp time.Duration) *goredis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := goredis.NewStatusCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.data[key] = append([]byte(nil), value.([]byte)...)
	f.ttl[key] = exp
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeCmdable) Del(ctx context.Context, keys ...string) *goredis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	cmd := goredis.NewIntCmd(ctx)
	cmd.SetVal(n)
	return cmd
}

func (f *fakeCmdable) TTL(ctx context.Context, key string) *goredis.DurationCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := goredis.NewDurationCmd(ctx, time.Second)
	cmd.SetVal(f.ttl[key])
	return cmd
}

func (f *fakeCmdable) Ping(ctx context.Context) *goredis.StatusCmd {
	cmd := goredis.NewStatusCmd(ctx)
	cmd.SetVal("PONG")
	return cmd
}

func (f *fakeCmdable) Close() error { return nil }

func TestRedis_NamespacesKeys(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fake := newFakeCmdable()
	store := NewRedis(redis.NewFromClient(fake, 0), "accessguard:")

	require.NoError(t, store.Set(ctx, "jwks:https://acme.example.com", []byte("v"), 15*time.Minute))

	fake.mu.Lock()
	_, ok := fake.data["accessguard:jwks:https://acme.example.com"]
	exp := fake.ttl["accessguard:jwks:https://acme.example.com"]
	fake.mu.Unlock()
	assert.True(t, ok)
	assert.Equal(t, 15*time.Minute, exp)

	got, found, err := store.Get(ctx, "jwks:https://acme.example.com")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), got)

	d, err := store.TTL(ctx, "jwks:https://acme.example.com")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, d)
}

func TestRedis_MissAndError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fake := newFakeCmdable()
	store := NewRedis(redis.NewFromClient(fake, 0), "")

	_, found, err := store.Get(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, found)

	fake.mu.Lock()
	fake.err = errors.New("connection reset")
	fake.mu.Unlock()

	_, _, err = store.Get(ctx, "absent")
	testutil.RequireErrorCode(t, err, agerr.CodeInternalStore)
	err = store.Set(ctx, "k", []byte("v"), time.Minute)
	testutil.RequireErrorCode(t, err, agerr.CodeInternalStore)
}
