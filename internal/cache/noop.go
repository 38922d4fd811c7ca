// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import "context"

// NoOp never stores anything; every Get is a miss.
type NoOp struct{}

// NewNoOp returns a cache that does nothing.
func NewNoOp() *NoOp { return &NoOp{} }

func (NoOp) Get(context.Context, string) (*Entry, error) { return nil, nil }

func (NoOp) Set(context.Context, string, Entry) error { return nil }

func (NoOp) Close() error { return nil }
