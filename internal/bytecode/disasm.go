package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble renders chunk as human-readable text, one instruction per
// line, labelled name. It's used by the `-dump-bytecode` CLI flag and by
// tests that assert on emitted shapes without executing them.
func Disassemble(name string, c *Chunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	offset := 0
	for offset < len(c.Code) {
		offset = disassembleInstr(&b, c, offset)
	}
	return b.String()
}

func disassembleInstr(b *strings.Builder, c *Chunk, offset int) int {
	op := Op(c.Code[offset])
	fmt.Fprintf(b, "%04d %-16s", offset, op)
	next := offset + 1
	switch op {
	case OpGet, OpSet, OpGlobalGet, OpUpvalueGet, OpUpvalueSet, OpStructGet, OpStructSet, OpPopV,
		OpStringLiteral, OpArrayLiteral, OpMapLiteral:
		idx := ReadU16(c.Code, next)
		fmt.Fprintf(b, " %d", idx)
		next += 2
	case OpInt:
		idx := ReadU16(c.Code, next)
		fmt.Fprintf(b, " %d (%d)", idx, c.Ints[idx])
		next += 2
	case OpFloat:
		idx := ReadU16(c.Code, next)
		fmt.Fprintf(b, " %d (%g)", idx, c.Floats[idx])
		next += 2
	case OpJmp, OpJmpZ, OpAnd, OpOr:
		rel := ReadI16(c.Code, next)
		fmt.Fprintf(b, " -> %04d", next+2+int(rel))
		next += 2
	case OpCall:
		argc := c.Code[next]
		fmt.Fprintf(b, " argc=%d", argc)
		next++
	case OpConstructor:
		idx := ReadU16(c.Code, next)
		next += 2
		total := ReadU16(c.Code, next)
		next += 2
		provided := ReadU16(c.Code, next)
		next += 2
		fmt.Fprintf(b, " %d total=%d provided=%d", idx, total, provided)
	case OpClosure:
		idx := ReadU16(c.Code, next)
		next += 2
		n := ReadU16(c.Code, next)
		next += 2
		fmt.Fprintf(b, " fn=%d upvalues=%d [", idx, n)
		for i := uint16(0); i < n; i++ {
			upIdx := ReadU16(c.Code, next)
			next += 2
			nonlocal := c.Code[next]
			next++
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "(%d,%d)", upIdx, nonlocal)
		}
		b.WriteString("]")
	}
	b.WriteString("\n")
	return next
}
