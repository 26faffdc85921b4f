package transform

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/ContentExtract/internal/extract"
	"golang.org/x/sync/errgroup"
)

// DefaultParallelThreshold is the smallest row count worth fanning out.
const DefaultParallelThreshold = 256

// contextCheckInterval is how often (in rows) the sequential path checks
// for cancellation.
const contextCheckInterval = 100

// Options tunes a Transformer.
type Options struct {
	// Workers bounds parallel extraction. Values <= 1 run sequentially.
	Workers int

	// ParallelThreshold is the minimum row count before Workers is used.
	// Zero means DefaultParallelThreshold.
	ParallelThreshold int
}

// Stats summarises one transform run.
type Stats struct {
	RowsIn  int            `json:"rows_in"`
	RowsOut int            `json:"rows_out"`
	Misses  map[string]int `json:"misses"` // field -> rows that fell back
}

// Result is the output table plus run statistics.
type Result struct {
	Table Table
	Stats Stats
}

// Transformer maps input rows to output rows with one extractor.
type Transformer struct {
	ex   *extract.Extractor
	opts Options
}

// New creates a Transformer.
func New(ex *extract.Extractor, opts Options) *Transformer {
	if opts.ParallelThreshold <= 0 {
		opts.ParallelThreshold = DefaultParallelThreshold
	}
	return &Transformer{ex: ex, opts: opts}
}

// Header returns the output header for rows decoded under inHeader.
// It is computed once per run so every output row has the same columns.
func (t *Transformer) Header(inHeader []string) []string {
	fields := t.ex.Fields()
	var header []string
	seen := make(map[string]bool)

	add := func(col string) {
		if !seen[col] {
			seen[col] = true
			header = append(header, col)
		}
	}

	if t.ex.Profile().Merge == extract.MergePassthrough {
		header = make([]string, 0, len(inHeader)+len(fields)+2)
		for _, col := range inHeader {
			add(col)
		}
	} else {
		header = make([]string, 0, len(fields)+2)
	}

	add(ColOutPageTitle)
	add(ColStaticContentID)
	for _, f := range fields {
		add(f)
	}
	return header
}

// Transform extracts fields from every row of in, preserving order.
func (t *Transformer) Transform(ctx context.Context, in Table) (Result, error) {
	return t.run(ctx, in.Header, in.Rows, len(in.Rows))
}

// Join keeps the rows of content whose StaticContentID was marked
// "Keep - New" in reference, then transforms them in content's order.
// Rows without a matching identifier are dropped without error.
func (t *Transformer) Join(ctx context.Context, reference, content Table, spec JoinSpec) (Result, error) {
	filter := BuildJoinFilter(reference, spec)
	survivors := filter.Apply(content.Rows, spec)
	return t.run(ctx, content.Header, survivors, len(content.Rows))
}

func (t *Transformer) run(ctx context.Context, inHeader []string, rows []Row, rowsIn int) (Result, error) {
	header := t.Header(inHeader)

	fields, misses, err := t.extractAll(ctx, rows)
	if err != nil {
		return Result{}, err
	}

	stats := Stats{
		RowsIn:  rowsIn,
		RowsOut: len(rows),
		Misses:  make(map[string]int),
	}

	out := make([]Row, len(rows))
	for i, row := range rows {
		out[i] = merge(header, row, fields[i])
		for _, f := range misses[i] {
			stats.Misses[f]++
		}
	}

	return Result{Table: Table{Header: header, Rows: out}, Stats: stats}, nil
}

// merge builds one output row. Extracted fields win over identity columns,
// which win over input columns of the same name.
func merge(header []string, in Row, fields extract.Fields) Row {
	out := make(Row, len(header))
	for _, col := range header {
		if v, ok := fields[col]; ok {
			out[col] = v
			continue
		}
		if col == ColOutPageTitle {
			out[col] = in[ColPageTitle]
			continue
		}
		out[col] = in[col]
	}
	return out
}

// extractAll runs the extractor over rows. Results are stored by index so
// the parallel path yields the same order as the sequential one.
func (t *Transformer) extractAll(ctx context.Context, rows []Row) ([]extract.Fields, [][]string, error) {
	fields := make([]extract.Fields, len(rows))
	misses := make([][]string, len(rows))

	if t.opts.Workers <= 1 || len(rows) < t.opts.ParallelThreshold {
		for i, row := range rows {
			if i%contextCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return nil, nil, fmt.Errorf("transform cancelled at row %d: %w", i, err)
				}
			}
			fields[i], misses[i] = t.ex.ExtractWithMisses(row[ColContent])
		}
		return fields, misses, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.Workers)

	chunk := (len(rows) + t.opts.Workers - 1) / t.opts.Workers
	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				fields[i], misses[i] = t.ex.ExtractWithMisses(rows[i][ColContent])
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("transform cancelled: %w", err)
	}
	return fields, misses, nil
}
