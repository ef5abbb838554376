//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/etagger/internal/testutil"
)

func TestStore_PutGetDelete(t *testing.T) {
	redisClient := testutil.StartRedis(t)
	docs := New(redisClient, WithPrefix("test:doc:"))
	ctx := context.Background()

	if err := docs.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	if _, err := docs.Get(ctx, "readme"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}

	doc := &Document{ContentType: "application/json", Data: []byte(`{"description":"x"}`)}
	if err := docs.Put(ctx, "readme", doc); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := docs.Get(ctx, "readme")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ContentType != doc.ContentType || string(got.Data) != string(doc.Data) {
		t.Errorf("Get() = %+v, want %+v", got, doc)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt was not set")
	}

	if exists, _ := redisClient.Exists(ctx, "test:doc:readme").Result(); exists != 1 {
		t.Error("document not stored under prefixed key")
	}

	if err := docs.Delete(ctx, "readme"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := docs.Delete(ctx, "readme"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestStore_TTL(t *testing.T) {
	redisClient := testutil.StartRedis(t)
	docs := New(redisClient, WithTTL(time.Minute))
	ctx := context.Background()

	if err := docs.Put(ctx, "short", &Document{ContentType: "text/plain", Data: []byte("x")}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	ttl, err := redisClient.TTL(ctx, docs.Key("short")).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want (0, 1m]", ttl)
	}
}

func TestStore_InvalidDocument(t *testing.T) {
	redisClient := testutil.StartRedis(t)
	docs := New(redisClient)
	ctx := context.Background()

	if err := redisClient.Set(ctx, docs.Key("broken"), "not json", 0).Err(); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := docs.Get(ctx, "broken"); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("Get() error = %v, want ErrInvalidDocument", err)
	}
}
