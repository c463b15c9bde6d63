package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"videofront/internal/cache"
)

type view struct {
	Title    string  `json:"title"`
	Progress float64 `json:"progress"`
}

func stores(t *testing.T) map[string]cache.Store {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]cache.Store{
		"memory": cache.NewMemoryStore(),
		"redis":  cache.NewRedisStore(client),
	}
}

func TestVideoCacheRoundTripAndInvalidate(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			vc := cache.NewVideoCache(store, time.Hour, nil)

			var got view
			hit, err := vc.Get(ctx, "abc", &got)
			if err != nil || hit {
				t.Fatalf("expected miss, got hit=%v err=%v", hit, err)
			}
			if err := vc.Set(ctx, "abc", 0, view{Title: "Lecture", Progress: 42}); err != nil {
				t.Fatalf("Set: %v", err)
			}
			hit, err = vc.Get(ctx, "abc", &got)
			if err != nil || !hit {
				t.Fatalf("expected hit, got hit=%v err=%v", hit, err)
			}
			if got.Title != "Lecture" || got.Progress != 42 {
				t.Fatalf("unexpected view %#v", got)
			}
			vc.Invalidate(ctx, "abc")
			hit, _ = vc.Get(ctx, "abc", &got)
			if hit {
				t.Fatal("expected miss after invalidate")
			}
		})
	}
}

func TestRedisStoreUsesVideoKeyAndTTL(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()
	vc := cache.NewVideoCache(cache.NewRedisStore(client), time.Hour, nil)
	if err := vc.Set(context.Background(), "xyz", 0, view{Title: "t"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !srv.Exists("VIDEO:xyz") {
		t.Fatal("expected VIDEO:xyz key")
	}
	if ttl := srv.TTL("VIDEO:xyz"); ttl != time.Hour {
		t.Fatalf("ttl = %v, want 1h", ttl)
	}
	srv.FastForward(61 * time.Minute)
	var got view
	if hit, _ := vc.Get(context.Background(), "xyz", &got); hit {
		t.Fatal("expected entry to expire")
	}
}

func TestUndecodableEntryIsMiss(t *testing.T) {
	store := cache.NewMemoryStore()
	ctx := context.Background()
	_ = store.Set(ctx, cache.VideoKey("bad"), []byte("{not json"), time.Hour)
	vc := cache.NewVideoCache(store, time.Hour, nil)
	var got view
	hit, err := vc.Get(ctx, "bad", &got)
	if err != nil || hit {
		t.Fatalf("expected silent miss, got hit=%v err=%v", hit, err)
	}
	if _, err := store.Get(ctx, cache.VideoKey("bad")); err != cache.ErrMiss {
		t.Fatalf("expected entry dropped, got %v", err)
	}
}

func TestSetAfterInvalidateIsStale(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			vc := cache.NewVideoCache(store, time.Hour, nil)

			// A reader observes the generation, then a writer invalidates
			// before the reader stores what it built.
			gen, err := vc.Generation(ctx, "abc")
			if err != nil {
				t.Fatalf("Generation: %v", err)
			}
			vc.Invalidate(ctx, "abc")
			if err := vc.Set(ctx, "abc", gen, view{Title: "processing"}); err != nil {
				t.Fatalf("Set: %v", err)
			}
			var got view
			if hit, err := vc.Get(ctx, "abc", &got); err != nil || hit {
				t.Fatalf("expected stale entry to miss, got hit=%v err=%v", hit, err)
			}

			gen, err = vc.Generation(ctx, "abc")
			if err != nil || gen != 1 {
				t.Fatalf("expected generation 1, got %d err=%v", gen, err)
			}
			if err := vc.Set(ctx, "abc", gen, view{Title: "success"}); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if hit, err := vc.Get(ctx, "abc", &got); err != nil || !hit || got.Title != "success" {
				t.Fatalf("expected fresh hit, got hit=%v err=%v view=%#v", hit, err, got)
			}
		})
	}
}

func TestRedisGenerationKeyExpires(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()
	vc := cache.NewVideoCache(cache.NewRedisStore(client), time.Hour, nil)
	vc.Invalidate(context.Background(), "xyz")
	if got, _ := srv.Get(cache.GenerationKey("xyz")); got != "1" {
		t.Fatalf("expected generation 1, got %q", got)
	}
	if ttl := srv.TTL(cache.GenerationKey("xyz")); ttl != 2*time.Hour {
		t.Fatalf("generation ttl = %v, want 2h", ttl)
	}
}
