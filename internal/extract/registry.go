package extract

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownProfile is returned when a profile name is not registered.
var ErrUnknownProfile = errors.New("unknown profile")

var (
	registry   = make(map[string]Profile)
	registryMu sync.RWMutex
)

// Add validates a profile and adds it to the registry.
// Returns an error if the name is already taken.
func Add(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[p.Name]; exists {
		return fmt.Errorf("profile already registered: %s", p.Name)
	}
	registry[p.Name] = p
	return nil
}

// Register is Add for built-in profiles. Panics on error.
func Register(p Profile) {
	if err := Add(p); err != nil {
		panic(err)
	}
}

// Lookup returns a profile by name.
func Lookup(name string) (Profile, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	p, ok := registry[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	return p, nil
}

// MustLookup is Lookup for names known to be registered.
func MustLookup(name string) Profile {
	p, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return p
}

// Profiles returns all registered profiles sorted by name.
func Profiles() []Profile {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Profile, 0, len(registry))
	for _, p := range registry {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}
