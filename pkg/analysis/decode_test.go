package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aloecraft-org/diluvium/pkg/bytecode"
)

func TestHashSize(t *testing.T) {
	tests := []struct {
		b    int
		want int
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{3, 4},
		{5, 16},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, HashSize(tt.b), "HashSize(%d)", tt.b)
	}
}

func TestArraySize(t *testing.T) {
	tests := []struct {
		name string
		code []bytecode.Instruction
		want int
	}{
		{
			name: "narrow encoding",
			code: []bytecode.Instruction{
				bytecode.ABC(bytecode.OpNewTable, 0, 0, 7),
				bytecode.AAx(bytecode.OpExtraArg, 0),
			},
			want: 7,
		},
		{
			name: "wide encoding with extension word",
			code: []bytecode.Instruction{
				bytecode.ABCk(bytecode.OpNewTable, 0, 0, 0x34, true),
				bytecode.AAx(bytecode.OpExtraArg, 0x12),
			},
			want: 0x12<<8 | 0x34,
		},
		{
			name: "wide flag but stream ends",
			code: []bytecode.Instruction{
				bytecode.ABCk(bytecode.OpNewTable, 0, 0, 9, true),
			},
			want: 9,
		},
		{
			name: "wide flag but no extension word follows",
			code: []bytecode.Instruction{
				bytecode.ABCk(bytecode.OpNewTable, 0, 0, 9, true),
				bytecode.ABC(bytecode.OpReturn0, 0, 0, 0),
			},
			want: 9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &bytecode.Proto{Code: tt.code}
			require.Equal(t, tt.want, ArraySize(p, 0))
		})
	}
}
