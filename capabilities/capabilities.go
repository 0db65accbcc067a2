// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package capabilities describes which hardware tile-multiply modes (AMX) a target supports:
// 8-bit integer, float16 and bfloat16.
//
// Capabilities can be detected from the host CPU, or configured with a string (see Parse), typically
// taken from the environment variable AMX_CONFIG (see FromEnv).
package capabilities

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Capabilities lists the tile-multiply modes supported by the target.
type Capabilities struct {
	// Int8 tile multiply: int8 x int8 -> int32.
	Int8 bool

	// FP16 tile multiply: float16 x float16 -> float32.
	FP16 bool

	// BF16 tile multiply: bfloat16 x bfloat16 -> float32.
	BF16 bool
}

// All returns capabilities with every mode enabled.
func All() Capabilities {
	return Capabilities{Int8: true, FP16: true, BF16: true}
}

// Any returns whether at least one mode is enabled.
func (c Capabilities) Any() bool { return c.Int8 || c.FP16 || c.BF16 }

// All returns whether every mode is enabled.
func (c Capabilities) All() bool { return c.Int8 && c.FP16 && c.BF16 }

// String returns the capabilities in the format accepted by Parse: "none", or a comma-separated list of modes.
func (c Capabilities) String() string {
	var modes []string
	if c.Int8 {
		modes = append(modes, ModeInt8)
	}
	if c.FP16 {
		modes = append(modes, ModeFP16)
	}
	if c.BF16 {
		modes = append(modes, ModeBF16)
	}
	if len(modes) == 0 {
		return ConfigNone
	}
	return strings.Join(modes, ",")
}

const (
	ModeInt8 = "int8"
	ModeFP16 = "fp16"
	ModeBF16 = "bf16"

	// ConfigAuto detects the capabilities of the host CPU.
	ConfigAuto = "auto"

	// ConfigAll enables every mode.
	ConfigAll = "all"

	// ConfigNone disables every mode.
	ConfigNone = "none"
)

// AMX_CONFIG is the environment variable with the capabilities configuration to use. See Parse for its format.
const AMX_CONFIG = "AMX_CONFIG"

// DefaultConfig is the configuration used by FromEnv if AMX_CONFIG is not set.
var DefaultConfig = ConfigAll

// FromEnv returns the capabilities configured by the environment variable AMX_CONFIG if it is set,
// or by DefaultConfig otherwise.
func FromEnv() (Capabilities, error) {
	config, found := os.LookupEnv(AMX_CONFIG)
	if !found {
		config = DefaultConfig
	}
	caps, err := Parse(config)
	if err != nil {
		return Capabilities{}, errors.WithMessagef(err, "invalid capabilities configuration (set with $%s)", AMX_CONFIG)
	}
	klog.V(1).Infof("tile-multiply capabilities configured as %q: %s", config, caps)
	return caps, nil
}

// Parse a capabilities configuration: "auto" detects the host CPU capabilities (see Detect), "all" and "none"
// enable or disable every mode, otherwise it's a comma-separated list of the modes "int8", "fp16" and "bf16".
// An empty configuration is the same as "none".
func Parse(config string) (Capabilities, error) {
	config = strings.TrimSpace(strings.ToLower(config))
	switch config {
	case ConfigAuto:
		return Detect(), nil
	case ConfigAll:
		return All(), nil
	case ConfigNone, "":
		return Capabilities{}, nil
	}
	var caps Capabilities
	for _, mode := range strings.Split(config, ",") {
		switch strings.TrimSpace(mode) {
		case ModeInt8:
			caps.Int8 = true
		case ModeFP16:
			caps.FP16 = true
		case ModeBF16:
			caps.BF16 = true
		default:
			return Capabilities{}, errors.Errorf("unknown tile-multiply mode %q in %q, valid values are %q, %q, %q or one of %q, %q, %q",
				mode, config, ModeInt8, ModeFP16, ModeBF16, ConfigAuto, ConfigAll, ConfigNone)
		}
	}
	return caps, nil
}

// Detect returns the capabilities of the host CPU.
func Detect() Capabilities {
	caps := detect()
	klog.V(1).Infof("detected tile-multiply capabilities: %s", caps)
	return caps
}

// parseCPUFlags returns the capabilities listed in the "flags" line of /proc/cpuinfo contents.
func parseCPUFlags(cpuinfo string) Capabilities {
	var caps Capabilities
	for _, line := range strings.Split(cpuinfo, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found || strings.TrimSpace(key) != "flags" {
			continue
		}
		for _, flag := range strings.Fields(value) {
			switch flag {
			case "amx_int8":
				caps.Int8 = true
			case "amx_fp16":
				caps.FP16 = true
			case "amx_bf16":
				caps.BF16 = true
			}
		}
		// All cores report the same flags.
		break
	}
	return caps
}
