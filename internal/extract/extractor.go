package extract

// Extractor applies a compiled profile to Content strings.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	profile Profile
	rules   []compiledRule
}

// New compiles a profile into an Extractor.
func New(p Profile) (*Extractor, error) {
	rules, err := compile(p)
	if err != nil {
		return nil, err
	}
	return &Extractor{profile: p, rules: rules}, nil
}

// Profile returns the profile the extractor was built from.
func (e *Extractor) Profile() Profile {
	return e.profile
}

// Fields returns the output field names in rule order.
func (e *Extractor) Fields() []string {
	return e.profile.FieldNames()
}

// Extract returns one value per configured field.
func (e *Extractor) Extract(content string) Fields {
	fields, _ := e.ExtractWithMisses(content)
	return fields
}

// ExtractWithMisses is Extract that also reports, in rule order, the fields
// that fell back to their default value.
func (e *Extractor) ExtractWithMisses(content string) (Fields, []string) {
	fields := make(Fields, len(e.rules))
	var misses []string

	for _, r := range e.rules {
		v := r.match(content)
		if v == "" {
			v = r.Fallback
			misses = append(misses, r.Field)
		}
		fields[r.Field] = v
	}

	return fields, misses
}
