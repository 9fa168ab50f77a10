package cache_test

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/interceptops/cache"
)

func ExampleNewMemoryCache() {
	c := cache.NewMemoryCache(cache.DefaultConfig())
	ctx := context.Background()

	key := cache.Key{Partition: "rates.latest", Digest: "usd"}

	// Store a value
	_ = c.Set(ctx, key, 1.08, 5*time.Minute)

	// Retrieve the value
	value, ok := c.Get(ctx, key)
	if ok {
		fmt.Println("Value:", value)
	}
	// Output:
	// Value: 1.08
}

func ExampleMemoryCache_SetLimit() {
	c := cache.NewMemoryCache(cache.DefaultConfig())
	c.SetLimit("rates.latest", 2)
	ctx := context.Background()

	for _, currency := range []string{"USD", "EUR", "GBP"} {
		_ = c.Set(ctx, cache.Key{Partition: "rates.latest", Digest: currency}, currency, time.Hour)
	}

	_, ok := c.Get(ctx, cache.Key{Partition: "rates.latest", Digest: "USD"})
	fmt.Println("Oldest kept:", ok)
	fmt.Println("Entries:", c.Len("rates.latest"))
	// Output:
	// Oldest kept: false
	// Entries: 2
}

func ExampleDefaultKeyer_Key() {
	keyer := cache.NewDefaultKeyer()

	key1, _ := keyer.Key("rates.convert", []any{map[string]any{"from": "USD", "to": "EUR"}})
	key2, _ := keyer.Key("rates.convert", []any{map[string]any{"to": "EUR", "from": "USD"}})

	fmt.Println("Same key:", key1 == key2)
	fmt.Println("Partition:", key1.Partition)
	fmt.Println("Digest length:", len(key1.Digest))
	// Output:
	// Same key: true
	// Partition: rates.convert
	// Digest length: 32
}

func ExampleConfig_EffectiveTTL() {
	cfg := cache.Config{MaxTTL: time.Hour}

	fmt.Println(cfg.EffectiveTTL(10 * time.Minute))
	fmt.Println(cfg.EffectiveTTL(3 * time.Hour))
	fmt.Println(cfg.EffectiveTTL(0))
	// Output:
	// 10m0s
	// 1h0m0s
	// 0s
}

func ExampleValidateKey() {
	fmt.Println(cache.ValidateKey(cache.Key{Partition: "rates.latest", Digest: "abc"}))
	fmt.Println(cache.ValidateKey(cache.Key{}))
	// Output:
	// <nil>
	// cache: key is invalid
}
