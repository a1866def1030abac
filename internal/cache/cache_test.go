package cache

import (
	"context"
	"testing"
	"time"
)

type quoteKey struct {
	Venue    string
	TokenIn  string
	TokenOut string
	AmountIn string
}

func TestCache_SetGet(t *testing.T) {
	c := New[quoteKey, int](0)
	defer c.Close()

	ctx := context.Background()
	key := quoteKey{"sushi", "WETH", "USDC", "1000000000000000000"}

	if _, ok := c.Get(ctx, key); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set(ctx, key, 42, time.Minute)

	got, ok := c.Get(ctx, key)
	if !ok || got != 42 {
		t.Fatalf("Get = (%d, %v), want (42, true)", got, ok)
	}

	// Distinct struct keys must not collide even when a naive string
	// concatenation of the fields would.
	other := quoteKey{"sushiWETH", "", "USDC", "1000000000000000000"}
	if _, ok := c.Get(ctx, other); ok {
		t.Fatal("struct keys collided")
	}
}

func TestCache_Expiry(t *testing.T) {
	c := New[string, string](0)
	defer c.Close()

	ctx := context.Background()
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set(ctx, "k", "v", 5*time.Second)

	if _, ok := c.Get(ctx, "k"); !ok {
		t.Fatal("expected hit before expiry")
	}

	now = now.Add(6 * time.Second)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss after expiry")
	}
}

func TestCache_LastWriterWins(t *testing.T) {
	c := New[string, int](0)
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, "k", 1, time.Minute)
	c.Set(ctx, "k", 2, time.Minute)

	if got, _ := c.Get(ctx, "k"); got != 2 {
		t.Fatalf("Get = %d, want 2", got)
	}
}
