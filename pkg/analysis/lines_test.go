package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aloecraft-org/diluvium/pkg/bytecode"
)

func TestLineForPC_AbsoluteCheckpoints(t *testing.T) {
	p := &bytecode.Proto{
		Code: make([]bytecode.Instruction, 8),
		AbsLineInfo: []bytecode.AbsLine{
			{PC: 0, Line: 1},
			{PC: 3, Line: 5},
			{PC: 6, Line: 9},
		},
	}

	tests := []struct {
		pc   int
		want int
	}{
		{0, 1},
		{2, 1},
		{3, 5},
		{5, 5},
		{6, 9},
		{7, 9},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, lineForPC(p, tt.pc), "pc=%d", tt.pc)
	}
}

func TestLineForPC_DeltaEncoding(t *testing.T) {
	p := &bytecode.Proto{
		LineDefined: 10,
		Code:        make([]bytecode.Instruction, 4),
		LineInfo:    []int8{0, 1, 0, 2},
	}

	require.Equal(t, 10, lineForPC(p, 0))
	require.Equal(t, 11, lineForPC(p, 1))
	require.Equal(t, 11, lineForPC(p, 2))
	require.Equal(t, 13, lineForPC(p, 3))
}

func TestLineForPC_StrippedChunk(t *testing.T) {
	p := &bytecode.Proto{Code: make([]bytecode.Instruction, 2)}
	require.Equal(t, 0, lineForPC(p, 1))
}
