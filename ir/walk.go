// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

// Walk calls fn for op and then for every op nested in its regions, in pre-order.
//
// The list of ops of each block is copied before it is visited, so fn may detach the op it is visiting.
func (op *Op) Walk(fn func(op *Op)) {
	fn(op)
	for _, region := range op.regions {
		for _, nested := range region.Ops() {
			nested.Walk(fn)
		}
	}
}

// OpsOfType returns all ops nested in root (including root) of the given type, in pre-order.
func OpsOfType(root *Op, opType OpType) []*Op {
	var ops []*Op
	root.Walk(func(op *Op) {
		if op.opType == opType {
			ops = append(ops, op)
		}
	})
	return ops
}

// DeadOps returns the ops nested in root (excluding root) that are trivially dead: see RemoveDeadOps.
func DeadOps(root *Op) []*Op {
	var dead []*Op
	root.Walk(func(op *Op) {
		if op != root && isTriviallyDead(op) {
			dead = append(dead, op)
		}
	})
	return dead
}

// RemoveDeadOps erases pure ops whose results are not used, until no more can be erased,
// and returns the number of ops erased.
// Loops whose results are not used and whose bodies don't write to memory are also erased.
//
// The ops in keep are never erased, and so the values they use are kept too.
func RemoveDeadOps(root *Op, keep ...*Op) int {
	kept := make(map[*Op]bool, len(keep))
	for _, op := range keep {
		kept[op] = true
	}
	var count int
	for {
		var dead []*Op
		for _, op := range DeadOps(root) {
			if !kept[op] {
				dead = append(dead, op)
			}
		}
		if len(dead) == 0 {
			return count
		}
		// Erase in reverse order, so users are erased before the values they use.
		for i := len(dead) - 1; i >= 0; i-- {
			op := dead[i]
			if op.block == nil || op.hasUses() {
				continue
			}
			op.block.remove(op)
			op.dropUses()
			count++
		}
	}
}

func isTriviallyDead(op *Op) bool {
	if op.hasUses() || op.block == nil {
		return false
	}
	if op.opType.IsPure() {
		return true
	}
	if op.opType != OpTypeFor {
		return false
	}
	var sideEffects bool
	op.Walk(func(nested *Op) {
		if nested.opType.WritesMemory() || nested.opType == OpTypePrefetch {
			sideEffects = true
		}
	})
	return !sideEffects
}
