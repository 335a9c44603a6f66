// Package module defines the intelligence module contract and the registry
// that resolves module names to implementations.
package module

import (
	"context"

	"github.com/raysh454/reconai/internal/model"
)

// Module gathers one kind of intelligence about a target. Implementations
// share no mutable state, are safe for concurrent use and must return
// promptly once ctx is done.
type Module interface {
	Name() string
	Gather(ctx context.Context, target string, targetType model.TargetType, opts Options) (any, error)
}

// Options carries per-call settings. Params holds caller-supplied values such
// as a person's state or date of birth.
type Options struct {
	ScanType model.ScanType
	Params   map[string]string
}

// Param returns Params[key] or def when missing or empty.
func (o Options) Param(key, def string) string {
	if v, ok := o.Params[key]; ok && v != "" {
		return v
	}
	return def
}

// Func adapts a plain function to Module.
type Func struct {
	ModuleName string
	Fn         func(ctx context.Context, target string, targetType model.TargetType, opts Options) (any, error)
}

func (f Func) Name() string { return f.ModuleName }

func (f Func) Gather(ctx context.Context, target string, targetType model.TargetType, opts Options) (any, error) {
	return f.Fn(ctx, target, targetType, opts)
}
