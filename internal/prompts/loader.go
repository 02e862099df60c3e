// Package prompts holds the model prompt templates. Each embedded JSON file
// maps a template name to its text; {{.Name}} marks a value slot.
package prompts

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
)

//go:embed *.json
var files embed.FS

var placeholder = regexp.MustCompile(`\{\{\.([A-Za-z][A-Za-z0-9_]*)\}\}`)

// Set is one parsed template file.
type Set struct {
	file      string
	templates map[string]string
}

var (
	setsMu sync.Mutex
	sets   = map[string]*Set{}
)

// Load returns the templates in file, parsing it on first use.
func Load(file string) (*Set, error) {
	setsMu.Lock()
	defer setsMu.Unlock()
	if s, ok := sets[file]; ok {
		return s, nil
	}

	data, err := files.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", file, err)
	}
	s := &Set{file: file}
	if err := json.Unmarshal(data, &s.templates); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", file, err)
	}
	sets[file] = s
	return s, nil
}

// MustLoad is Load for files that ship with the binary.
func MustLoad(file string) *Set {
	s, err := Load(file)
	if err != nil {
		panic(err)
	}
	return s
}

// Names lists the template names in s, sorted.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Slots lists the placeholders template name expects, sorted and without
// duplicates.
func (s *Set) Slots(name string) ([]string, error) {
	tmpl, ok := s.templates[name]
	if !ok {
		return nil, fmt.Errorf("prompt %q not found in %s", name, s.file)
	}
	var slots []string
	for _, m := range placeholder.FindAllStringSubmatch(tmpl, -1) {
		slots = append(slots, m[1])
	}
	slices.Sort(slots)
	return slices.Compact(slots), nil
}

// Check reports every template in want that is missing from s or whose
// placeholders differ from the slots listed for it.
func (s *Set) Check(want map[string][]string) error {
	var errs []error
	for name, slots := range want {
		got, err := s.Slots(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		expected := slices.Clone(slots)
		slices.Sort(expected)
		if !slices.Equal(got, expected) {
			errs = append(errs, fmt.Errorf("prompt %q in %s has slots %v, want %v", name, s.file, got, expected))
		}
	}
	return errors.Join(errs...)
}

// Render fills template name with data. See Format.
func (s *Set) Render(name string, data map[string]string) (string, error) {
	tmpl, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("prompt %q not found in %s", name, s.file)
	}
	return Format(tmpl, data), nil
}

// Format substitutes {{.Key}} slots in tmpl from data in a single pass:
// slots that appear inside a substituted value are left as they are, and
// slots without a value stay in place.
func Format(tmpl string, data map[string]string) string {
	pairs := make([]string, 0, 2*len(data))
	for key, value := range data {
		pairs = append(pairs, "{{."+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
