// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

//go:build !amd64

package capabilities

// AMX is x86-64 only.
func detect() Capabilities { return Capabilities{} }
