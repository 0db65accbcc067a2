// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package amx lowers dot ops (matrix multiply-accumulate) of the ir package to hardware tile
// operations: tile loads and stores, and tile multiplies of int8 or 16-bit float inputs,
// accumulated in 32 bits.
//
// For each dot op, Evaluate checks whether the tile unit supports it, and picks the tile and block
// sizes. The conversion then stages the operands in memory (packing the right hand side in the
// VNNI layout expected by the tile multiply), multiplies them block by block, and replaces the dot.
// Accumulators carried by a loop are kept in tile registers across iterations when they fit, and
// results stored to memory are stored there directly from the tiles.
//
// Dots that can't be converted are left untouched, to be lowered by other means.
package amx

import (
	"github.com/Artlesbol/triton-cpu/capabilities"
	"github.com/Artlesbol/triton-cpu/ir"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Pass lowers the dot ops of a module to tile operations.
type Pass struct {
	caps capabilities.Capabilities

	// VerifyEach checks the module after each conversion, and rolls back conversions that leave it invalid.
	// Enabled by default.
	VerifyEach bool

	// RemoveDeadOps erases the ops left without uses by the conversions, e.g.: the reads of the operands
	// that are now loaded directly into tiles. Ops that were already unused before the pass are left
	// alone. Enabled by default.
	RemoveDeadOps bool
}

// Stats of one run of the Pass.
type Stats struct {
	// Dots found in the module.
	Dots int

	// Candidates are the dots supported by the tile unit.
	Candidates int

	// Converted and Failed candidates.
	Converted, Failed int

	// AccOnTiles, AccInBuf and FusedStores count the converted candidates with loop-carried accumulators
	// kept in tile registers or in a buffer, and the ones whose result was stored directly to its
	// output buffer.
	AccOnTiles, AccInBuf, FusedStores int

	// DeadOpsRemoved after the conversions.
	DeadOpsRemoved int
}

// New returns a Pass with the capabilities configured by the AMX_CONFIG environment variable,
// or by capabilities.DefaultConfig if it's not set (by default all modes are enabled).
//
// It panics if the configuration is invalid.
func New() *Pass {
	caps, err := capabilities.FromEnv()
	if err != nil {
		exceptions.Panicf("amx.New(): %+v", err)
	}
	return newPass(caps)
}

// NewWithCapabilities returns a Pass for hardware supporting the given tile modes.
func NewWithCapabilities(amxInt8, amxFP16, amxBF16 bool) *Pass {
	return newPass(capabilities.Capabilities{Int8: amxInt8, FP16: amxFP16, BF16: amxBF16})
}

func newPass(caps capabilities.Capabilities) *Pass {
	return &Pass{caps: caps, VerifyEach: true, RemoveDeadOps: true}
}

// Capabilities returns the tile modes the pass lowers to.
func (p *Pass) Capabilities() capabilities.Capabilities { return p.caps }

// Run lowers all the supported dot ops of the module. If no tile mode is enabled, it does nothing.
//
// Dots that fail to convert are left untouched, and counted in Stats.Failed: it only returns an
// error if the module is invalid to start with.
func (p *Pass) Run(m *ir.Module) (Stats, error) {
	var stats Stats
	if !p.caps.Any() {
		klog.V(1).Infof("amx: no tile mode enabled, nothing to do")
		return stats, nil
	}
	if p.VerifyEach {
		if err := ir.Verify(m); err != nil {
			return stats, errors.WithMessage(err, "amx: invalid module")
		}
	}

	// Ops already dead are not ours to remove.
	var alreadyDead []*ir.Op
	if p.RemoveDeadOps {
		alreadyDead = ir.DeadOps(m.Op())
	}

	// Candidates are collected before converting any of them.
	var candidates []Candidate
	for _, op := range ir.OpsOfType(m.Op(), ir.OpTypeDot) {
		stats.Dots++
		if c, ok := Evaluate(op, p.caps); ok {
			candidates = append(candidates, c)
		}
	}
	stats.Candidates = len(candidates)

	for _, c := range candidates {
		if err := p.convert(m, c); err != nil {
			stats.Failed++
			klog.Warningf("amx: failed to convert %s, it is left unchanged: %+v", c, err)
			continue
		}
		stats.Converted++
		switch {
		case c.KeepAccOnTiles:
			stats.AccOnTiles++
		case c.KeepAccInBuf:
			stats.AccInBuf++
		}
		if c.OrigStore != nil {
			stats.FusedStores++
		}
	}
	if p.RemoveDeadOps && stats.Converted > 0 {
		stats.DeadOpsRemoved = ir.RemoveDeadOps(m.Op(), alreadyDead...)
	}
	klog.V(1).Infof("amx: %d dots, %d candidates, %d converted, %d failed (%s)",
		stats.Dots, stats.Candidates, stats.Converted, stats.Failed, p.caps)
	return stats, nil
}

// convert one candidate, with its own rewriter: on failure all its changes are rolled back.
func (p *Pass) convert(m *ir.Module, c Candidate) (err error) {
	if c.Op.Block() == nil {
		return errors.New("dot op no longer in the module")
	}
	r := ir.NewRewriter(c.Op.Op)
	defer func() {
		if err != nil {
			r.Rollback()
		} else {
			r.Commit()
		}
	}()
	if panicErr := exceptions.TryCatch[error](func() { err = convertCandidate(r, c) }); panicErr != nil {
		return errors.WithMessage(panicErr, "internal error")
	}
	if err != nil {
		return err
	}
	if p.VerifyEach {
		if err = ir.Verify(m); err != nil {
			return errors.WithMessage(err, "converted module is invalid")
		}
	}
	return nil
}
