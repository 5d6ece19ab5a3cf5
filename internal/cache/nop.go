package cache

import (
	"context"
	"time"
)

// Nop is the Store used when caching is disabled: every Get misses.
type Nop struct{}

var _ Store = Nop{}

func (Nop) Get(context.Context, Key) ([]byte, bool) { return nil, false }

func (Nop) Put(context.Context, Key, []byte, time.Duration) error { return nil }

func (Nop) Invalidate(context.Context, Key) error { return nil }

func (Nop) Clear(context.Context, Scope) error { return nil }
