// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Print returns a compact textual form of op and its nested ops, meant for debugging and logs.
//
// Values are numbered in the order they are defined, so printing the same IR twice yields the same text.
func Print(op *Op) string {
	p := &printer{names: make(map[*Value]string)}
	p.printOp(op, 0)
	return p.sb.String()
}

type printer struct {
	sb    strings.Builder
	names map[*Value]string
}

func (p *printer) name(v *Value) string {
	if name, ok := p.names[v]; ok {
		return name
	}
	return "%<unknown>"
}

func (p *printer) define(v *Value) string {
	name := "%" + strconv.Itoa(len(p.names))
	p.names[v] = name
	return name
}

func (p *printer) printOp(op *Op, indent int) {
	pad := strings.Repeat("  ", indent)
	switch op.opType {
	case OpTypeModule:
		p.sb.WriteString("module {\n")
		p.printBlockOps(op.regions[0], indent+1)
		p.sb.WriteString("}\n")
		return
	case OpTypeFunc:
		fn := FuncOp{op}
		fmt.Fprintf(&p.sb, "%sfunc %s(%s) {\n", pad, fn.Name(), p.defineArgs(fn.Body().args))
		p.printBlockOps(fn.Body(), indent+1)
		fmt.Fprintf(&p.sb, "%s}\n", pad)
		return
	}

	p.sb.WriteString(pad)
	if len(op.results) > 0 {
		names := make([]string, len(op.results))
		for i, result := range op.results {
			names[i] = p.define(result)
		}
		p.sb.WriteString(strings.Join(names, ", "))
		p.sb.WriteString(" = ")
	}
	p.sb.WriteString(op.opType.String())
	if attrs := opAttributes(op); attrs != "" {
		p.sb.WriteString("{" + attrs + "}")
	}
	operands := make([]string, len(op.operands))
	for i, operand := range op.operands {
		operands[i] = p.name(operand.value)
	}
	p.sb.WriteString("(" + strings.Join(operands, ", ") + ")")
	if len(op.results) > 0 {
		types := make([]string, len(op.results))
		for i, result := range op.results {
			types[i] = result.typ.String()
		}
		p.sb.WriteString(" : " + strings.Join(types, ", "))
	}
	for _, region := range op.regions {
		fmt.Fprintf(&p.sb, " ^(%s) {\n", p.defineArgs(region.args))
		p.printBlockOps(region, indent+1)
		p.sb.WriteString(pad + "}")
	}
	p.sb.WriteString("\n")
}

func (p *printer) defineArgs(args []*Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = p.define(arg) + ": " + arg.typ.String()
	}
	return strings.Join(parts, ", ")
}

func (p *printer) printBlockOps(block *Block, indent int) {
	for _, op := range block.ops {
		p.printOp(op, indent)
	}
}

func opAttributes(op *Op) string {
	switch data := op.data.(type) {
	case *constantData:
		values := make([]string, len(data.values))
		for i, v := range data.values {
			values[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if len(values) > 8 {
			values = append(values[:8], "...")
		}
		return strings.Join(values, " ")
	case *extractData:
		return fmt.Sprintf("row=%d", data.row)
	case *transferData:
		var attrs []string
		if data.hasMask {
			attrs = append(attrs, "masked")
		}
		if !data.inBounds && op.opType != OpTypePrefetch {
			attrs = append(attrs, "bounds_check")
		}
		return strings.Join(attrs, ",")
	}
	return ""
}
