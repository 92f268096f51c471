package analysis

import "github.com/Aloecraft-org/diluvium/pkg/bytecode"

// lineForPC recovers a best-effort source line for the instruction at pc.
// Absolute line info is a sorted array of {pc, line} checkpoints; the
// compact encoding stores signed per-instruction deltas from LineDefined.
// Stripped chunks carry neither, in which case the line is 0.
func lineForPC(p *bytecode.Proto, pc int) int {
	if len(p.AbsLineInfo) > 0 {
		lo, hi, best := 0, len(p.AbsLineInfo)-1, 0
		for lo <= hi {
			mid := (lo + hi) / 2
			if p.AbsLineInfo[mid].PC <= pc {
				best = p.AbsLineInfo[mid].Line
				lo = mid + 1
			} else {
				hi = mid - 1
			}
		}
		return best
	}

	if len(p.LineInfo) > 0 {
		line := p.LineDefined
		for k := 0; k <= pc && k < len(p.LineInfo); k++ {
			line += int(p.LineInfo[k])
		}
		return line
	}

	return 0
}
