// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// amxlower lowers sample kernels to tile operations, checks the lowered kernels compute the same
// results as the original ones with the reference interpreter, and reports on the conversions.
//
// Usage:
//
//	amxlower [-config=all] [-print] [kernel names...]
//
// With no kernel names, all sample kernels are lowered. See -list for the available kernels.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Artlesbol/triton-cpu/amx"
	"github.com/Artlesbol/triton-cpu/capabilities"
	"github.com/Artlesbol/triton-cpu/ir"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/janpfeifer/must"
	"github.com/muesli/termenv"
	"k8s.io/klog/v2"
)

var (
	flagConfig = flag.String("config", "",
		fmt.Sprintf("Tile-multiply capabilities: \"auto\", \"all\", \"none\" or a comma-separated list of "+
			"\"int8\", \"fp16\" and \"bf16\". If empty, it uses $%s, or %q if that is not set.",
			capabilities.AMX_CONFIG, capabilities.DefaultConfig))
	flagList  = flag.Bool("list", false, "List the sample kernels and exit.")
	flagPrint = flag.Bool("print", false, "Print the kernels before and after lowering.")
	flagCheck = flag.Bool("check", true, "Run the original and the lowered kernels with random inputs, and compare them.")
	flagSeed  = flag.Uint64("seed", 42, "Seed for the random inputs of -check.")
	flagDelta = flag.Float64("delta", 1e-2, "Maximum absolute difference allowed between float results with -check.")

	flagNoColor = flag.Bool("no_color", false, "Disable colors in the report. Also disabled if $NO_COLOR is set.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if _, found := os.LookupEnv("NO_COLOR"); *flagNoColor || found {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	if *flagList {
		table := newReportTable(lipgloss.Left)
		table.Table.Headers("Kernel", "Description")
		for _, k := range kernels {
			table.Row(false, k.name, k.description)
		}
		fmt.Println(table.Table.Render())
		return
	}

	selected := kernels
	if names := flag.Args(); len(names) > 0 {
		selected = nil
		for _, name := range names {
			k, found := findKernel(name)
			if !found {
				klog.Errorf("Unknown kernel %q, see 'amxlower -list'", name)
				os.Exit(1)
			}
			selected = append(selected, k)
		}
	}

	pass := newPass()
	fmt.Println(titleStyle.Render(fmt.Sprintf("Lowering to tile operations (%s)", pass.Capabilities())))
	table := newReportTable(lipgloss.Left, lipgloss.Right)
	table.Table.Headers("Kernel", "Dots", "Converted", "Failed", "Acc on tiles", "Acc in buffer",
		"Fused stores", "Scratch", "Max diff")
	var mismatches int
	for _, k := range selected {
		r := lower(pass, k)
		isRed := r.stats.Failed > 0 || !r.matches
		if !r.matches {
			mismatches++
		}
		table.Row(isRed, k.name,
			fmt.Sprintf("%d", r.stats.Dots),
			fmt.Sprintf("%d/%d", r.stats.Converted, r.stats.Candidates),
			fmt.Sprintf("%d", r.stats.Failed),
			fmt.Sprintf("%d", r.stats.AccOnTiles),
			fmt.Sprintf("%d", r.stats.AccInBuf),
			fmt.Sprintf("%d", r.stats.FusedStores),
			humanize.Bytes(r.scratchBytes),
			r.maxDiff)
	}
	fmt.Println(table.Table.Render())
	if mismatches > 0 {
		klog.Errorf("%d lowered kernels don't match the original ones", mismatches)
		os.Exit(1)
	}
}

// newPass creates the lowering pass with the capabilities from -config, or from the environment.
func newPass() *amx.Pass {
	if *flagConfig == "" {
		return amx.New()
	}
	caps := must.M1(capabilities.Parse(*flagConfig))
	return amx.NewWithCapabilities(caps.Int8, caps.FP16, caps.BF16)
}

// loweringReport of one kernel.
type loweringReport struct {
	stats        amx.Stats
	scratchBytes uint64
	matches      bool
	maxDiff      string
}

func lower(pass *amx.Pass, k kernel) loweringReport {
	original, lowered := k.build(), k.build()
	if *flagPrint {
		fmt.Printf("%s:\n%s\n", k.name, original)
	}
	r := loweringReport{matches: true, maxDiff: "-"}
	r.stats = must.M1(pass.Run(lowered))
	if *flagPrint {
		fmt.Printf("%s lowered:\n%s\n", k.name, lowered)
	}
	for _, op := range ir.OpsOfType(lowered.Op(), ir.OpTypeAlloca) {
		r.scratchBytes += uint64(op.Result(0).Type().Shape.Memory())
	}
	if *flagCheck {
		diff := compare(original, lowered, *flagSeed)
		r.matches = diff <= *flagDelta
		r.maxDiff = humanize.FtoaWithDigits(diff, 6)
	}
	return r
}
