package cache

import (
	"context"
	"testing"
	"time"
)

type export struct {
	Title string `json:"title"`
}

func TestMemoryCache_RoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(ctx, 0)

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.SetJSON(ctx, ExportKey("s1"), export{Title: "standup"}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got export
	hit, err := c.GetJSON(ctx, ExportKey("s1"), &got)
	if err != nil || !hit || got.Title != "standup" {
		t.Fatalf("get = %v %v %+v", hit, err, got)
	}

	now = now.Add(2 * time.Minute)
	if hit, _ := c.GetJSON(ctx, ExportKey("s1"), &got); hit {
		t.Fatalf("expired entry returned")
	}
}

func TestMemoryCache_Del(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(ctx, 0)

	_ = c.SetJSON(ctx, "a", 1, time.Minute)
	_ = c.SetJSON(ctx, "b", 2, time.Minute)
	_ = c.Del(ctx, "a", "b")

	var v int
	if hit, _ := c.GetJSON(ctx, "a", &v); hit {
		t.Fatalf("a survived delete")
	}
	if hit, _ := c.GetJSON(ctx, "b", &v); hit {
		t.Fatalf("b survived delete")
	}
}

func TestMemoryCache_NonPositiveTTLStoresNothing(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(ctx, 0)

	if err := c.SetJSON(ctx, "k", 1, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	var v int
	if hit, _ := c.GetJSON(ctx, "k", &v); hit {
		t.Fatal("zero ttl entry cached")
	}
}
