package locale

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/uc-storefront/internal/kvstore"
	"github.com/mmeshcher/uc-storefront/internal/model"
)

func TestContext_DefaultWhenUnset(t *testing.T) {
	c := NewContext(kvstore.NewMemoryStore(), model.LocaleSelection{}, nil)
	assert.Equal(t, Default, c.Get(context.Background()))
}

func TestContext_CustomFallback(t *testing.T) {
	c := NewContext(kvstore.NewMemoryStore(), model.LocaleSelection{CountryCode: "US", CurrencyCode: "usd"}, nil)
	assert.Equal(t, model.LocaleSelection{CountryCode: "us", CurrencyCode: "USD"}, c.Get(context.Background()))
}

func TestContext_CorruptRecordReadsAsDefault(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, KeySelection, []byte("{not json"), 0))

	c := NewContext(kv, model.LocaleSelection{}, nil)
	assert.Equal(t, Default, c.Get(ctx))
}

func TestContext_SetNormalizesAndPersists(t *testing.T) {
	ctx := context.Background()
	c := NewContext(kvstore.NewMemoryStore(), model.LocaleSelection{}, nil)

	sel, err := c.Set(ctx, model.LocaleSelection{CountryCode: "GB", CurrencyCode: "gbp"})
	require.NoError(t, err)
	assert.Equal(t, model.LocaleSelection{CountryCode: "gb", CurrencyCode: "GBP"}, sel)
	assert.Equal(t, sel, c.Get(ctx))

	_, err = c.Set(ctx, model.LocaleSelection{CountryCode: "gbr", CurrencyCode: "GBP"})
	assert.ErrorIs(t, err, ErrInvalidLocale)
	assert.Equal(t, sel, c.Get(ctx))
}

func TestContext_SameProcessObserversFireSynchronously(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	writer := NewContext(kv, model.LocaleSelection{}, nil)
	otherView := NewContext(kv, model.LocaleSelection{}, nil)

	var seen []string
	otherView.Subscribe(func(sel model.LocaleSelection) { seen = append(seen, sel.CurrencyCode) })

	_, err := writer.Set(ctx, model.LocaleSelection{CountryCode: "gb", CurrencyCode: "GBP"})
	require.NoError(t, err)

	assert.Equal(t, []string{"GBP"}, seen)
}

func TestContext_OtherInstanceObserverFires(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tabA := kvstore.NewRedisStore(client, nil)
	tabB := kvstore.NewRedisStore(client, nil)
	go func() { _ = tabB.Run(ctx) }()

	select {
	case <-tabB.Ready():
	case <-time.After(2 * time.Second):
		t.Fatalf("relay not ready")
	}

	got := make(chan model.LocaleSelection, 1)
	NewContext(tabB, model.LocaleSelection{}, nil).Subscribe(func(sel model.LocaleSelection) { got <- sel })

	_, err = NewContext(tabA, model.LocaleSelection{}, nil).Set(ctx, model.LocaleSelection{CountryCode: "gb", CurrencyCode: "GBP"})
	require.NoError(t, err)

	select {
	case sel := <-got:
		assert.Equal(t, "GBP", sel.CurrencyCode)
	case <-time.After(2 * time.Second):
		t.Fatalf("observer in the other view did not fire")
	}
}
