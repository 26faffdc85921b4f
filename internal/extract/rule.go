package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidProfile is returned when a profile cannot be compiled.
var ErrInvalidProfile = errors.New("invalid extract profile")

// Step names a post-processing transform applied to a captured value.
type Step string

const (
	StepStripNewlines Step = "strip_newlines" // remove every \r and \n
	StepRGBAToHex     Step = "rgba_to_hex"    // see RGBAToHex
	StepTrimSpace     Step = "trim_space"
)

// MergeMode controls which input columns survive into the output row.
type MergeMode string

const (
	// MergeProjected keeps only the identity columns and the extracted fields.
	MergeProjected MergeMode = "projected"

	// MergePassthrough keeps every input column and overlays extracted fields.
	MergePassthrough MergeMode = "passthrough"
)

// Rule describes how one output field is pulled out of a Content string.
type Rule struct {
	Field    string // Output column name
	Pattern  string // RE2 expression; the first match wins
	Group    int    // Capture group to read; 0 means the whole match
	Steps    []Step // Applied in order to the captured value
	Fallback string // Used when there is no match or the value ends up empty
}

// Profile is a named extraction configuration.
type Profile struct {
	Name        string
	Description string
	Merge       MergeMode
	Rules       []Rule
}

// Fields maps output field names to extracted values.
type Fields map[string]string

// FieldNames returns the output field names in rule order.
func (p Profile) FieldNames() []string {
	names := make([]string, len(p.Rules))
	for i, r := range p.Rules {
		names[i] = r.Field
	}
	return names
}

// Validate reports whether the profile compiles.
func (p Profile) Validate() error {
	_, err := compile(p)
	return err
}

type compiledRule struct {
	Rule
	re *regexp.Regexp
}

// compile checks every rule and returns the compiled set. All problems are
// collected so a profile file can be fixed in one pass.
func compile(p Profile) ([]compiledRule, error) {
	var errs []string

	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, "profile name is required")
	}
	switch p.Merge {
	case MergeProjected, MergePassthrough:
	default:
		errs = append(errs, fmt.Sprintf("unknown merge mode %q", p.Merge))
	}
	if len(p.Rules) == 0 {
		errs = append(errs, "at least one field rule is required")
	}

	seen := make(map[string]bool, len(p.Rules))
	rules := make([]compiledRule, 0, len(p.Rules))

	for i, r := range p.Rules {
		if r.Field == "" {
			errs = append(errs, fmt.Sprintf("rule %d: field name is required", i))
			continue
		}
		if seen[r.Field] {
			errs = append(errs, fmt.Sprintf("rule %q: duplicate field", r.Field))
			continue
		}
		seen[r.Field] = true

		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			errs = append(errs, fmt.Sprintf("rule %q: %v", r.Field, err))
			continue
		}
		if r.Group < 0 || r.Group > re.NumSubexp() {
			errs = append(errs, fmt.Sprintf("rule %q: group %d out of range (pattern has %d)",
				r.Field, r.Group, re.NumSubexp()))
			continue
		}
		for _, s := range r.Steps {
			if !s.known() {
				errs = append(errs, fmt.Sprintf("rule %q: unknown step %q", r.Field, s))
			}
		}

		rules = append(rules, compiledRule{Rule: r, re: re})
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w %q:\n  - %s", ErrInvalidProfile, p.Name, strings.Join(errs, "\n  - "))
	}
	return rules, nil
}

func (s Step) known() bool {
	switch s {
	case StepStripNewlines, StepRGBAToHex, StepTrimSpace:
		return true
	}
	return false
}

func (s Step) apply(v string) string {
	switch s {
	case StepStripNewlines:
		return newlineReplacer.Replace(v)
	case StepRGBAToHex:
		return RGBAToHex(v)
	case StepTrimSpace:
		return strings.TrimSpace(v)
	}
	return v
}

var newlineReplacer = strings.NewReplacer("\r", "", "\n", "")

// match returns the processed value for this rule, or "" when the pattern
// does not match.
func (r compiledRule) match(content string) string {
	m := r.re.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	v := m[r.Group]
	for _, s := range r.Steps {
		v = s.apply(v)
	}
	return v
}
