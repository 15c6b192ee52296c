// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package scheduler drives the per-function pass scheduler (spec.md
// §4.8): for every defined function it lets the scripting bridge
// record which passes to run, then replays those records in order
// against the registry.
package scheduler

import (
	"go.uber.org/zap"

	"github.com/zyroxobf/zyrox/internal/ir"
	"github.com/zyroxobf/zyrox/internal/metadata"
	"github.com/zyroxobf/zyrox/internal/passreg"
)

// bridge is the subset of *script.Bridge the scheduler depends on.
type bridge interface {
	HasRunOnFunction() bool
	RunOnFunction(fn *ir.Function)
}

// Scheduler replays recorded passes against every function in a module.
type Scheduler struct {
	Bridge   bridge
	Registry *passreg.Registry
	Store    *metadata.Store
	Logger   *zap.Logger
}

// New returns a Scheduler wired to the given collaborators. logger
// defaults to a no-op logger when nil.
func New(b bridge, registry *passreg.Registry, store *metadata.Store, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{Bridge: b, Registry: registry, Store: store, Logger: logger}
}

// Run lets the bridge record a schedule for every defined function in m,
// then replays each function's schedule in the order it was recorded.
// A function with no RunOnFunction callback, or one whose call raised,
// simply ends up with no records and is skipped during replay.
func (s *Scheduler) Run(m *ir.Module) error {
	if !s.Bridge.HasRunOnFunction() {
		s.Logger.Warn("RunOnFunction function not found, skipping per-function pass scheduling")
		return nil
	}

	var fns []*ir.Function
	for _, fn := range m.Functions {
		if fn.IsDeclaration() {
			continue
		}
		fns = append(fns, fn)
		s.Bridge.RunOnFunction(fn)
	}

	for _, fn := range fns {
		for _, rec := range s.Store.Records(fn) {
			if rec.Iterations() <= 0 {
				s.Logger.Warn("skipping pass record with no PassIterations",
					zap.String("function", fn.DisplayName()), zap.String("pass", rec.CodeName))
				continue
			}

			descriptor, ok := s.Registry.ByCodeName(rec.CodeName)
			if !ok {
				s.Logger.Warn("skipping pass record with unknown code_name",
					zap.String("function", fn.DisplayName()), zap.String("pass", rec.CodeName))
				continue
			}

			if err := descriptor.Pass.RunOnFunction(fn, rec.Options); err != nil {
				s.Logger.Error("pass failed",
					zap.String("function", fn.DisplayName()), zap.String("pass", rec.CodeName), zap.Error(err))
			}
		}
	}
	return nil
}
