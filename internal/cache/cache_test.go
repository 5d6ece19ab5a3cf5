package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"HTTPS://WWW.Example.com/Post/#section":         "https://example.com/Post",
		"https://example.com:443/a?b=2&a=1":             "https://example.com/a?a=1&b=2",
		"https://example.com/a?utm_source=x&id=7":       "https://example.com/a?id=7",
		"  https://arxiv.org/abs/2401.00001  ":          "https://arxiv.org/abs/2401.00001",
		"not a url":                                     "not a url",
		"http://example.com:80/feed/?fbclid=abc&gclid=": "http://example.com/feed",
		"https://example.com:80/a":                      "https://example.com:80/a",
		"http://example.com:443/a":                      "http://example.com:443/a",
		"http://Example.com:8080/a/":                    "http://example.com:8080/a",
		"https://example.com/repo/a%2Fb/":               "https://example.com/repo/a%2Fb",
		"http://[::1]:80/x":                             "http://[::1]/x",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeURL(in), in)
	}
}

func TestKeysAreStableAndScoped(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ContentKey("https://example.com/a/"), ContentKey("https://EXAMPLE.com/a#x"))
	assert.Equal(t, ScopeContent, ContentKey("https://example.com").Scope)

	assert.Equal(t, DiscoveryKey(" Growth Loops ", "web"), DiscoveryKey("growth loops", "web"))
	assert.NotEqual(t, DiscoveryKey("growth loops", "web"), DiscoveryKey("growth loops", "paper"))

	a := EvaluationKey("https://example.com/a", "hash", "rubric-1")
	b := EvaluationKey("https://example.com/a", "hash", "rubric-2")
	assert.NotEqual(t, a, b)
	assert.Equal(t, ScopeEvaluation, a.Scope)
}

func TestMemoryRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemory(time.Hour)
	key := ContentKey("https://example.com/post")

	require.NoError(t, store.Put(ctx, key, []byte("payload"), time.Minute))
	got, ok := store.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got)

	require.NoError(t, store.Put(ctx, key, []byte("newer"), time.Minute))
	got, ok = store.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, []byte("newer"), got)

	require.NoError(t, store.Invalidate(ctx, key))
	_, ok = store.Get(ctx, key)
	assert.False(t, ok)
}

func TestMemoryExpiryAndPurge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemory(time.Hour).WithClock(func() time.Time { return now })

	old := ContentKey("https://example.com/old")
	require.NoError(t, store.Put(ctx, old, []byte("x"), 10*time.Second))

	now = now.Add(11 * time.Second)
	_, ok := store.Get(ctx, old)
	assert.False(t, ok)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Put(ctx, ContentKey("https://example.com/new"), []byte("y"), 0))
	assert.Equal(t, 1, store.Len())
}

func TestSubSecondTTLRoundsUp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(1), TTLSeconds(500*time.Millisecond))
	assert.Equal(t, int64(2), TTLSeconds(1500*time.Millisecond))
	assert.Equal(t, int64(60), TTLSeconds(time.Minute))

	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemory(time.Hour).WithClock(func() time.Time { return now })

	key := ContentKey("https://example.com/brief")
	require.NoError(t, store.Put(ctx, key, []byte("x"), 300*time.Millisecond))
	now = now.Add(900 * time.Millisecond)
	_, ok := store.Get(ctx, key)
	assert.True(t, ok, "a sub-second TTL is not an immediately stale entry")

	now = now.Add(200 * time.Millisecond)
	_, ok = store.Get(ctx, key)
	assert.False(t, ok)
}

func TestMemoryClearScope(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemory(time.Hour)
	require.NoError(t, store.Put(ctx, ContentKey("https://a.example"), []byte("a"), 0))
	require.NoError(t, store.Put(ctx, DiscoveryKey("q", "web"), []byte("d"), 0))

	require.NoError(t, store.Clear(ctx, ScopeDiscovery))
	_, ok := store.Get(ctx, DiscoveryKey("q", "web"))
	assert.False(t, ok)
	_, ok = store.Get(ctx, ContentKey("https://a.example"))
	assert.True(t, ok)

	require.NoError(t, store.Clear(ctx, ""))
	assert.Zero(t, store.Len())
}

func TestJSONHelpersTreatCorruptionAsMiss(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemory(time.Hour)
	key := EvaluationKey("https://example.com", "h", "r")

	require.NoError(t, store.Put(ctx, key, []byte("{not json"), 0))
	var out map[string]float64
	assert.False(t, GetJSON(ctx, store, key, &out))

	require.NoError(t, PutJSON(ctx, store, key, map[string]float64{"depth": 7}, 0))
	require.True(t, GetJSON(ctx, store, key, &out))
	assert.Equal(t, 7.0, out["depth"])

	assert.False(t, GetJSON(ctx, nil, key, &out))
}

func TestMemoryConcurrentAccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemory(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := ContentKey(fmt.Sprintf("https://example.com/%d", i%4))
			_ = store.Put(ctx, key, []byte{byte(i)}, 0)
			_, _ = store.Get(ctx, key)
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, store.Len())
}

func TestNopAlwaysMisses(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var store Store = Nop{}
	require.NoError(t, store.Put(ctx, ContentKey("https://x.example"), []byte("x"), 0))
	_, ok := store.Get(ctx, ContentKey("https://x.example"))
	assert.False(t, ok)
}
