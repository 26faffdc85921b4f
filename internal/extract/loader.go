package extract

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// profileFile is the on-disk shape of a profiles document:
//
//	profiles:
//	  - name: spring-sale
//	    merge: passthrough
//	    fields:
//	      - name: PageTitle
//	        pattern: '<title>(.*?)</title>'
//	      - name: modal_content
//	        pattern: '<section class="terms">[\s\S]*?</section>'
//	        group: 0
//	        steps: [strip_newlines]
type profileFile struct {
	Profiles []profileDoc `yaml:"profiles"`
}

type profileDoc struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Merge       string    `yaml:"merge"`
	Fields      []ruleDoc `yaml:"fields"`
}

type ruleDoc struct {
	Name     string   `yaml:"name"`
	Pattern  string   `yaml:"pattern"`
	Group    *int     `yaml:"group"`
	Steps    []string `yaml:"steps"`
	Fallback string   `yaml:"fallback"`
}

// LoadProfiles parses and validates a YAML profiles document.
// Group defaults to 1 and merge defaults to projected.
func LoadProfiles(r io.Reader) ([]Profile, error) {
	var doc profileFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse profiles: %w", err)
	}

	profiles := make([]Profile, 0, len(doc.Profiles))
	seen := make(map[string]bool, len(doc.Profiles))

	for _, pd := range doc.Profiles {
		p := pd.toProfile()
		if seen[p.Name] {
			return nil, fmt.Errorf("%w: profile %q defined twice", ErrInvalidProfile, p.Name)
		}
		seen[p.Name] = true

		if err := p.Validate(); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	return profiles, nil
}

func (pd profileDoc) toProfile() Profile {
	merge := MergeMode(strings.ToLower(strings.TrimSpace(pd.Merge)))
	if merge == "" {
		merge = MergeProjected
	}

	rules := make([]Rule, len(pd.Fields))
	for i, f := range pd.Fields {
		group := 1
		if f.Group != nil {
			group = *f.Group
		}
		steps := make([]Step, len(f.Steps))
		for j, s := range f.Steps {
			steps[j] = Step(strings.TrimSpace(s))
		}
		rules[i] = Rule{
			Field:    f.Name,
			Pattern:  f.Pattern,
			Group:    group,
			Steps:    steps,
			Fallback: f.Fallback,
		}
	}

	return Profile{
		Name:        strings.TrimSpace(pd.Name),
		Description: pd.Description,
		Merge:       merge,
		Rules:       rules,
	}
}

// RegisterFile loads the profiles in path and adds them to the registry.
// Returns the names that were added.
func RegisterFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open profiles file: %w", err)
	}
	defer f.Close()

	profiles, err := LoadProfiles(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		if err := Add(p); err != nil {
			return names, fmt.Errorf("%s: %w", path, err)
		}
		names = append(names, p.Name)
	}
	return names, nil
}
