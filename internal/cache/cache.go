// Package cache defines the key-addressed store used to avoid repeated
// network fetches, discovery calls and scoring calls across runs.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// Scope partitions the key space so maintenance can clear one kind of entry.
type Scope string

const (
	ScopeContent    Scope = "content"
	ScopeDiscovery  Scope = "discovery"
	ScopeEvaluation Scope = "evaluation"
)

// Scopes lists every scope in a stable order.
func Scopes() []Scope {
	return []Scope{ScopeContent, ScopeDiscovery, ScopeEvaluation}
}

// Key addresses one cache entry.
type Key struct {
	Scope Scope
	ID    string
}

func (k Key) String() string {
	return string(k.Scope) + ":" + k.ID
}

// Entry is a stored payload with its expiry information.
type Entry struct {
	Key        Key
	Payload    []byte
	CreatedAt  time.Time
	TTLSeconds int64
}

// TTLSeconds converts ttl to whole seconds, rounding up so a sub-second
// TTL still keeps the entry for a second.
func TTLSeconds(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return int64((ttl + time.Second - 1) / time.Second)
}

// Expired reports whether the entry is past created_at + ttl at now.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.CreatedAt.Add(time.Duration(e.TTLSeconds) * time.Second))
}

// Store is the cache contract. Absent, expired and unreadable entries are
// all misses; Get never fails.
type Store interface {
	Get(ctx context.Context, key Key) ([]byte, bool)
	// Put overwrites any existing entry. A non-positive ttl selects the
	// store's default TTL.
	Put(ctx context.Context, key Key, payload []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, key Key) error
	// Clear removes every entry of scope, or everything when scope is empty.
	Clear(ctx context.Context, scope Scope) error
}

// ContentKey addresses an extracted item by its normalized URL.
func ContentKey(rawURL string) Key {
	return Key{Scope: ScopeContent, ID: digest(NormalizeURL(rawURL))}
}

// DiscoveryKey addresses one adapter's candidate list for a query.
func DiscoveryKey(query, sourceType string) Key {
	return Key{Scope: ScopeDiscovery, ID: digest(strings.ToLower(strings.TrimSpace(query)), sourceType)}
}

// EvaluationKey addresses a scored item. The rubric fingerprint keeps a
// changed weighting from returning stale scores.
func EvaluationKey(rawURL, contentHash, rubric string) Key {
	return Key{Scope: ScopeEvaluation, ID: digest(NormalizeURL(rawURL), contentHash, rubric)}
}

// ContentHash returns the hex SHA-256 of extracted text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func digest(parts ...string) string {
	h := sha256.New()
	for i, part := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// GetJSON decodes a cached payload into v. Decode failures count as misses.
func GetJSON(ctx context.Context, store Store, key Key, v any) bool {
	if store == nil {
		return false
	}
	payload, ok := store.Get(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal(payload, v) == nil
}

// PutJSON encodes v and stores it under key.
func PutJSON(ctx context.Context, store Store, key Key, v any, ttl time.Duration) error {
	if store == nil {
		return nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return store.Put(ctx, key, payload, ttl)
}
