package kvstore

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return mr, client
}

func appendNumber(n int) UpdateFunc {
	return func(old []byte, ok bool) ([]byte, error) {
		var list []int
		if ok {
			if err := json.Unmarshal(old, &list); err != nil {
				return nil, err
			}
		}
		list = append(list, n)
		return json.Marshal(list)
	}
}

func TestMemoryStore_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
	v, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", string(v))

	require.NoError(t, s.Remove(ctx, "a"))
	require.NoError(t, s.Remove(ctx, "a"))
	_, ok, _ = s.Get(ctx, "a")
	assert.False(t, ok)
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "session", []byte("x"), time.Minute))

	_, ok, _ := s.Get(ctx, "session")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = s.Get(ctx, "session")
	assert.False(t, ok)
}

func TestMemoryStore_NotifiesSynchronously(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var got []Change
	unsubscribe := s.Subscribe("k", func(c Change) { got = append(got, c) })

	require.NoError(t, s.Set(ctx, "k", []byte("v1"), 0))
	require.Len(t, got, 1, "subscriber must be called before Set returns")
	assert.Equal(t, "v1", string(got[0].Value))

	require.NoError(t, s.Set(ctx, "other", []byte("v"), 0))
	assert.Len(t, got, 1)

	require.NoError(t, s.Remove(ctx, "k"))
	require.Len(t, got, 2)
	assert.True(t, got[1].Removed)

	unsubscribe()
	unsubscribe()
	require.NoError(t, s.Set(ctx, "k", []byte("v2"), 0))
	assert.Len(t, got, 2)
}

func TestMemoryStore_ConcurrentUpdateKeepsAllWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, s.Update(ctx, "list", 0, appendNumber(n)))
		}(i)
	}
	wg.Wait()

	raw, ok, err := s.Get(ctx, "list")
	require.NoError(t, err)
	require.True(t, ok)

	var list []int
	require.NoError(t, json.Unmarshal(raw, &list))
	assert.Len(t, list, 50)
}

func TestNamespace_IsolatesKeys(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryStore()
	a := Namespace(base, "visitor:a")
	b := Namespace(base, "visitor:b")

	var seen []string
	a.Subscribe("identity.playerId", func(c Change) { seen = append(seen, c.Key) })

	require.NoError(t, a.Set(ctx, "identity.playerId", []byte("12345678"), 0))
	require.NoError(t, b.Set(ctx, "identity.playerId", []byte("87654321"), 0))

	v, ok, err := a.Get(ctx, "identity.playerId")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "12345678", string(v))

	_, ok, _ = base.Get(ctx, "visitor:b:identity.playerId")
	assert.True(t, ok)

	assert.Equal(t, []string{"identity.playerId"}, seen)
}

func TestRedisStore_SetGetRemove(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	ctx := context.Background()
	s := NewRedisStore(client, nil)

	var changes []Change
	s.Subscribe("k", func(c Change) { changes = append(changes, c) })

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(v))
	require.Len(t, changes, 1)

	require.NoError(t, s.Remove(ctx, "k"))
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	require.Len(t, changes, 2)
	assert.True(t, changes[1].Removed)
}

func TestRedisStore_TTL(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	ctx := context.Background()
	s := NewRedisStore(client, nil)

	require.NoError(t, s.Set(ctx, "session", []byte("x"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := s.Get(ctx, "session")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_ConcurrentUpdateKeepsAllWrites(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	ctx := context.Background()
	tabA := NewRedisStore(client, nil)
	tabB := NewRedisStore(client, nil)

	var wg sync.WaitGroup
	for i, s := range []*RedisStore{tabA, tabB} {
		wg.Add(1)
		go func(n int, s *RedisStore) {
			defer wg.Done()
			assert.NoError(t, s.Update(ctx, "list", 0, appendNumber(n)))
		}(i, s)
	}
	wg.Wait()

	raw, ok, err := tabA.Get(ctx, "list")
	require.NoError(t, err)
	require.True(t, ok)

	var list []int
	require.NoError(t, json.Unmarshal(raw, &list))
	assert.ElementsMatch(t, []int{0, 1}, list)
}

func TestRedisStore_RelaysChangesBetweenInstances(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writer := NewRedisStore(client, nil)
	reader := NewRedisStore(client, nil)

	done := make(chan error, 1)
	go func() { done <- reader.Run(ctx) }()

	select {
	case <-reader.Ready():
	case <-time.After(2 * time.Second):
		t.Fatalf("relay subscription was not established")
	}

	received := make(chan Change, 4)
	reader.Subscribe("locale.selection", func(c Change) { received <- c })

	var local int
	writer.Subscribe("locale.selection", func(Change) { local++ })

	require.NoError(t, writer.Set(ctx, "locale.selection", []byte(`{"countryCode":"gb","currencyCode":"GBP"}`), 0))

	select {
	case c := <-received:
		assert.Equal(t, "locale.selection", c.Key)
		assert.JSONEq(t, `{"countryCode":"gb","currencyCode":"GBP"}`, string(c.Value))
	case <-time.After(2 * time.Second):
		t.Fatalf("change was not relayed to the other instance")
	}
	assert.Equal(t, 1, local, "writer must not receive its own change twice")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}

func TestRedisStore_UpdatePropagatesFnError(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	ctx := context.Background()
	s := NewRedisStore(client, nil)
	require.NoError(t, s.Set(ctx, "list", []byte("not json"), 0))

	err := s.Update(ctx, "list", 0, appendNumber(1))
	require.Error(t, err)

	v, _, _ := s.Get(ctx, "list")
	assert.Equal(t, "not json", string(v))
}

func TestStore_TakeRemovesOnce(t *testing.T) {
	_, client := newMiniRedisClient(t)
	defer client.Close()

	stores := map[string]Store{
		"memory":    NewMemoryStore(),
		"redis":     NewRedisStore(client, nil),
		"namespace": Namespace(NewMemoryStore(), "tab:default"),
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var removed []string
			unsubscribe := s.Subscribe("k", func(c Change) {
				if c.Removed {
					removed = append(removed, c.Key)
				}
			})
			defer unsubscribe()

			_, ok, err := s.Take(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Hour))

			v, ok, err := s.Take(ctx, "k")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "v", string(v))

			_, ok, err = s.Take(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)

			_, ok, err = s.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Equal(t, []string{"k"}, removed)
		})
	}
}
