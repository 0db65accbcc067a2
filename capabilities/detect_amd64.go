// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

//go:build amd64

package capabilities

import (
	"os"

	"golang.org/x/sys/cpu"
	"k8s.io/klog/v2"
)

// cpuInfoPath lists the CPU flags, on Linux.
var cpuInfoPath = "/proc/cpuinfo"

// detect requires AVX-512 (AMX is only present in CPUs that have it), and then reads the AMX
// flags reported by the kernel, since the AMX tile state must also be enabled by the OS.
func detect() Capabilities {
	if !cpu.X86.HasAVX512F {
		klog.V(2).Info("no AVX-512 support, AMX not available")
		return Capabilities{}
	}
	contents, err := os.ReadFile(cpuInfoPath)
	if err != nil {
		klog.V(2).Infof("can't read CPU flags from %s: %v", cpuInfoPath, err)
		return Capabilities{}
	}
	return parseCPUFlags(string(contents))
}
