package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	c, err := New("redis://"+s.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return c, s
}

func TestPutAndGet(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()
	export := Export{
		Text:     "[Event]\nname=Cup\n",
		Filename: "Cup-2024-03-21.blw",
		MimeType: "text/plain; charset=utf-8",
		BuiltAt:  time.Now(),
	}
	if err := c.Put(ctx, "rg_1", "all", export); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := c.Get(ctx, "rg_1", "all")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Text != export.Text || got.Filename != export.Filename {
		t.Errorf("cached export mangled: %+v", got)
	}
}

func TestGetMiss(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	if _, err := c.Get(context.Background(), "rg_none", "all"); err != ErrMiss {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
}

func TestVariantsAreIndependent(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()
	if err := c.Put(ctx, "rg_1", "all", Export{Text: "all races"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := c.Put(ctx, "rg_1", "completed", Export{Text: "completed only"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := c.Get(ctx, "rg_1", "completed")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Text != "completed only" {
		t.Errorf("variant collision: %q", got.Text)
	}
}

func TestInvalidateDropsAllVariants(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()
	for _, variant := range []string{"all", "completed", "all+notes"} {
		if err := c.Put(ctx, "rg_1", variant, Export{Text: variant}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if err := c.Put(ctx, "rg_2", "all", Export{Text: "other regatta"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := c.Invalidate(ctx, "rg_1"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	for _, variant := range []string{"all", "completed", "all+notes"} {
		if _, err := c.Get(ctx, "rg_1", variant); err != ErrMiss {
			t.Errorf("variant %q survived invalidation: %v", variant, err)
		}
	}
	if _, err := c.Get(ctx, "rg_2", "all"); err != nil {
		t.Errorf("other regatta's cache was dropped: %v", err)
	}
}

func TestExpiry(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()
	if err := c.Put(ctx, "rg_1", "all", Export{Text: "x"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	s.FastForward(2 * time.Minute)

	if _, err := c.Get(ctx, "rg_1", "all"); err != ErrMiss {
		t.Errorf("expected expiry after TTL, got %v", err)
	}
}
