// Package store keeps documents served by the etag demo server in Redis.
//
// Each document is stored as one JSON value under "<prefix><name>" and
// carries its content type, so the server can hand it to the ETag hook as
// structured data, text or raw bytes.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	docs := store.New(redisClient)
//
//	err := docs.Put(ctx, "readme", &store.Document{
//		ContentType: "application/json",
//		Data:        []byte(`{"description":"x"}`),
//	})
//
//	doc, err := docs.Get(ctx, "readme")
//	if errors.Is(err, store.ErrNotFound) {
//		// no such document
//	}
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix is prepended to document names to form Redis keys.
const DefaultPrefix = "etagger:doc:"

var (
	// ErrNotFound indicates the requested document does not exist
	ErrNotFound = errors.New("document not found")

	// ErrInvalidDocument indicates a stored value that cannot be decoded
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidName indicates an empty document name
	ErrInvalidName = errors.New("invalid document name")
)

// Operations tracks store operations by operation and result
var Operations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "etag_store_operations_total",
		Help: "Total number of document store operations by operation and result",
	},
	[]string{"operation", "result"}, // "get", "put", "delete" / "ok", "miss", "error"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Store handles document operations with Redis backend.
type Store struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the Redis key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithTTL expires documents after ttl. Zero keeps documents forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// New creates a new document store with Redis backend.
func New(redisClient *redis.Client, opts ...Option) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	s := &Store{
		redis:  redisClient,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the Redis key for a document name.
func (s *Store) Key(name string) string {
	return s.prefix + name
}

// Get retrieves a document by name.
// Returns ErrNotFound if the document doesn't exist.
func (s *Store) Get(ctx context.Context, name string) (*Document, error) {
	if name == "" {
		return nil, ErrInvalidName
	}

	data, err := s.redis.Get(ctx, s.Key(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			Operations.WithLabelValues("get", "miss").Inc()
			return nil, ErrNotFound
		}
		Operations.WithLabelValues("get", "error").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var doc Document
	if err := codec.Unmarshal(data, &doc); err != nil {
		Operations.WithLabelValues("get", "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	Operations.WithLabelValues("get", "ok").Inc()
	return &doc, nil
}

// Put stores a document, replacing any previous version.
func (s *Store) Put(ctx context.Context, name string, doc *Document) error {
	if name == "" {
		return ErrInvalidName
	}
	if doc == nil {
		return fmt.Errorf("document cannot be nil")
	}

	stored := *doc
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}

	data, err := codec.Marshal(&stored)
	if err != nil {
		Operations.WithLabelValues("put", "error").Inc()
		return fmt.Errorf("marshal document: %w", err)
	}

	if err := s.redis.Set(ctx, s.Key(name), data, s.ttl).Err(); err != nil {
		Operations.WithLabelValues("put", "error").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	Operations.WithLabelValues("put", "ok").Inc()
	return nil
}

// Delete removes a document.
// Returns ErrNotFound if the document doesn't exist.
func (s *Store) Delete(ctx context.Context, name string) error {
	if name == "" {
		return ErrInvalidName
	}

	n, err := s.redis.Del(ctx, s.Key(name)).Result()
	if err != nil {
		Operations.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	if n == 0 {
		Operations.WithLabelValues("delete", "miss").Inc()
		return ErrNotFound
	}

	Operations.WithLabelValues("delete", "ok").Inc()
	return nil
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}
