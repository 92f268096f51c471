// Package runner drives the analyzer over batches of compiled chunk files.
// The engine itself is single-threaded and state-free, so distinct chunks
// are analyzed in parallel.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	goruntime "runtime"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"

	"github.com/Aloecraft-org/diluvium/internal/luac"
	"github.com/Aloecraft-org/diluvium/pkg/analysis"
)

// Options configures a batch run.
type Options struct {
	// Jobs caps the number of chunks analyzed concurrently.
	// Zero means NumCPU.
	Jobs int

	// Pretty selects indented JSON output.
	Pretty bool
}

// Result is the outcome for one input file.
type Result struct {
	Path   string
	Report *analysis.Report
	JSON   []byte
}

// Run loads, analyzes, and serializes every chunk file. Results come back
// in input order regardless of completion order. The first failure aborts
// the batch; there are no partial reports.
func Run(ctx context.Context, paths []string, opts Options) ([]Result, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no chunk files provided")
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = goruntime.NumCPU()
	}

	byPath := xsync.NewMapOf[string, *Result]()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := analyzeFile(path, opts.Pretty)
			if err != nil {
				return err
			}
			byPath.Store(path, res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(paths))
	for _, path := range paths {
		if res, ok := byPath.Load(path); ok {
			results = append(results, *res)
		}
	}
	return results, nil
}

func analyzeFile(path string, pretty bool) (*Result, error) {
	chunk, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	proto, err := luac.Undump(chunk)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	report, err := analysis.Analyze(proto)
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", path, err)
	}

	var out []byte
	if pretty {
		out, err = report.JSON()
	} else {
		out, err = json.Marshal(report)
	}
	if err != nil {
		return nil, fmt.Errorf("serializing report for %s: %w", path, err)
	}

	slog.Debug("analyzed chunk",
		"path", path,
		"functions", len(report.Functions),
		"globals", len(report.Globals))

	return &Result{Path: path, Report: report, JSON: out}, nil
}
