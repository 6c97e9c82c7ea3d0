package cache

import (
	"context"
	"time"
)

// NoOp is the default Cache when no backend is configured: every read is a
// miss, every write is discarded. It exists so the validator never has to
// special-case a nil cache (spec §9: "replace with explicit dependency
// injection into the validator ... a no-op implementation of this interface
// is the default when no cache is configured").
type NoOp struct{}

func (NoOp) Get(ctx context.Context, key string) ([]byte, bool)               { return nil, false }
func (NoOp) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {}
func (NoOp) Delete(ctx context.Context, key string)                           {}
func (NoOp) DeleteMatching(ctx context.Context, prefix string) int            { return 0 }

var _ Cache = NoOp{}
