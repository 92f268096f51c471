package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aloecraft-org/diluvium/internal/luac"
	"github.com/Aloecraft-org/diluvium/pkg/analysis"
	"github.com/Aloecraft-org/diluvium/pkg/bytecode"
)

// writeChunk compiles a trivial prototype to a chunk file and returns its
// path. Each chunk gets a distinct source name so results are tellable
// apart.
func writeChunk(t *testing.T, dir, name string) string {
	t.Helper()
	p := &bytecode.Proto{
		Source:       "@" + name,
		IsVararg:     true,
		MaxStackSize: 2,
		Code: []bytecode.Instruction{
			bytecode.ABC(bytecode.OpVarargPrep, 0, 0, 0),
			bytecode.ABC(bytecode.OpReturn0, 0, 0, 0),
		},
		Upvalues: []bytecode.Upvalue{{Name: "_ENV", InStack: true}},
	}
	path := filepath.Join(dir, name+".luac")
	require.NoError(t, os.WriteFile(path, luac.Dump(p), 0o644))
	return path
}

func TestRun_ResultsInInputOrder(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 8; i++ {
		paths = append(paths, writeChunk(t, dir, fmt.Sprintf("chunk%d", i)))
	}

	results, err := Run(context.Background(), paths, Options{Jobs: 3})
	require.NoError(t, err)
	require.Len(t, results, len(paths))

	for i, res := range results {
		require.Equal(t, paths[i], res.Path)
		require.Equal(t, "@"+fmt.Sprintf("chunk%d", i), res.Report.Functions[0].Source)
		require.Equal(t, analysis.LuaVersion, res.Report.LuaVersion)

		var decoded analysis.Report
		require.NoError(t, json.Unmarshal(res.JSON, &decoded))
	}
}

func TestRun_PrettySelectsIndentedOutput(t *testing.T) {
	dir := t.TempDir()
	path := writeChunk(t, dir, "chunk")

	compact, err := Run(context.Background(), []string{path}, Options{})
	require.NoError(t, err)
	pretty, err := Run(context.Background(), []string{path}, Options{Pretty: true})
	require.NoError(t, err)

	require.NotContains(t, string(compact[0].JSON), "\n")
	require.Contains(t, string(pretty[0].JSON), "\n  ")

	// Same report either way.
	var a, b analysis.Report
	require.NoError(t, json.Unmarshal(compact[0].JSON, &a))
	require.NoError(t, json.Unmarshal(pretty[0].JSON, &b))
	require.Equal(t, a, b)
}

func TestRun_NoInputs(t *testing.T) {
	_, err := Run(context.Background(), nil, Options{})
	require.Error(t, err)
}

func TestRun_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.luac")
	_, err := Run(context.Background(), []string{missing}, Options{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "nope.luac")
}

func TestRun_CorruptChunkAbortsBatch(t *testing.T) {
	dir := t.TempDir()
	good := writeChunk(t, dir, "good")
	bad := filepath.Join(dir, "bad.luac")
	require.NoError(t, os.WriteFile(bad, []byte("print('not compiled')"), 0o644))

	_, err := Run(context.Background(), []string{good, bad}, Options{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad.luac")
}

func TestRun_CanceledContext(t *testing.T) {
	dir := t.TempDir()
	path := writeChunk(t, dir, "chunk")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, []string{path}, Options{})
	require.ErrorIs(t, err, context.Canceled)
}
