package transform

import (
	"math"
	"strconv"
	"strings"
)

// JoinSpec names the columns and status value used in join mode.
type JoinSpec struct {
	IDColumn     string // Identifier column in both tables
	StatusColumn string // Status column in the reference table
	KeepValue    string // Exact status value that keeps an identifier
}

// DefaultJoinSpec returns the StaticContentID / "Keep / Delete" / "Keep - New" spec.
func DefaultJoinSpec() JoinSpec {
	return JoinSpec{
		IDColumn:     ColStaticContentID,
		StatusColumn: ColKeepDelete,
		KeepValue:    KeepNew,
	}
}

func (s JoinSpec) withDefaults() JoinSpec {
	d := DefaultJoinSpec()
	if s.IDColumn == "" {
		s.IDColumn = d.IDColumn
	}
	if s.StatusColumn == "" {
		s.StatusColumn = d.StatusColumn
	}
	if s.KeepValue == "" {
		s.KeepValue = d.KeepValue
	}
	return s
}

// JoinFilter is the set of kept identifiers, compared numerically so that
// "7", "7.0" and " 7 " all refer to the same row.
type JoinFilter map[float64]struct{}

// BuildJoinFilter collects the identifiers of reference rows whose status
// column equals the keep value exactly. Identifiers that are not numbers are
// ignored.
func BuildJoinFilter(reference Table, spec JoinSpec) JoinFilter {
	spec = spec.withDefaults()
	filter := make(JoinFilter)
	for _, row := range reference.Rows {
		if row[spec.StatusColumn] != spec.KeepValue {
			continue
		}
		if id, ok := ParseID(row[spec.IDColumn]); ok {
			filter[id] = struct{}{}
		}
	}
	return filter
}

// Contains reports whether raw parses to a kept identifier.
func (f JoinFilter) Contains(raw string) bool {
	id, ok := ParseID(raw)
	if !ok {
		return false
	}
	_, found := f[id]
	return found
}

// Apply returns the rows whose identifier is in the filter, in input order.
func (f JoinFilter) Apply(rows []Row, spec JoinSpec) []Row {
	spec = spec.withDefaults()
	kept := make([]Row, 0, len(rows))
	for _, row := range rows {
		if f.Contains(row[spec.IDColumn]) {
			kept = append(kept, row)
		}
	}
	return kept
}

// ParseID parses an identifier cell as a finite number.
func ParseID(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
