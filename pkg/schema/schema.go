package schema

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind is the input kind of a wizard field.
type Kind int

const (
	FreeText Kind = iota
	SingleSelect
	MultiSelect
	Numeric
	Boolean
	Date
)

var kindNames = map[Kind]string{
	FreeText:     "text",
	SingleSelect: "select",
	MultiSelect:  "multiselect",
	Numeric:      "number",
	Boolean:      "boolean",
	Date:         "date",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsSelect reports whether the kind renders an expandable option list.
func (k Kind) IsSelect() bool {
	return k == SingleSelect || k == MultiSelect
}

// ParseKind maps the catalog spelling of a kind to its value.
func ParseKind(s string) (Kind, error) {
	value := strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == value {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown field type %q", s)
}

func (k *Kind) UnmarshalYAML(node *yaml.Node) error {
	if node == nil || node.Kind != yaml.ScalarNode {
		return fmt.Errorf("invalid field type")
	}
	parsed, err := ParseKind(node.Value)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Format names an extra syntactic rule applied to free-text fields.
type Format string

const (
	FormatNone  Format = ""
	FormatEmail Format = "email"
)

// Field describes a single input of a wizard step.
type Field struct {
	Key         string   `yaml:"key" json:"key"`
	Label       string   `yaml:"label" json:"label"`
	Kind        Kind     `yaml:"type" json:"type"`
	Required    bool     `yaml:"required" json:"required"`
	Options     []string `yaml:"options" json:"options,omitempty"`
	OptionsRef  string   `yaml:"options_ref" json:"-"`
	Format      Format   `yaml:"format" json:"format,omitempty"`
	Placeholder string   `yaml:"placeholder" json:"placeholder,omitempty"`
	Searchable  bool     `yaml:"searchable" json:"searchable,omitempty"`

	// DependsOn names a multi-select in the same step whose selected values
	// decide which OptionGroups are offered.
	DependsOn    string              `yaml:"depends_on" json:"depends_on,omitempty"`
	OptionGroups map[string][]string `yaml:"option_groups" json:"option_groups,omitempty"`

	// Derived fields are computed by the wizard and never edited directly.
	Derived bool `yaml:"derived" json:"derived,omitempty"`
}

// ScoreGroup binds the fields of a step that together form one exam score entry.
type ScoreGroup struct {
	Name       string `yaml:"name" json:"name"`
	Marks      string `yaml:"marks" json:"marks"`
	Total      string `yaml:"total" json:"total"`
	Percentage string `yaml:"percentage" json:"percentage"`
}

// Step is one screen of the wizard, validated as a unit.
type Step struct {
	Index     int         `yaml:"-" json:"index"`
	Name      string      `yaml:"name" json:"name"`
	Title     string      `yaml:"title" json:"title"`
	Skippable bool        `yaml:"skippable" json:"skippable"`
	Submit    bool        `yaml:"submit" json:"submit"`
	Persist   bool        `yaml:"persist" json:"persist"`
	Scores    *ScoreGroup `yaml:"scores" json:"scores,omitempty"`
	Fields    []Field     `yaml:"fields" json:"fields"`
}

// Field returns the field with the given key.
func (s Step) Field(key string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// OfferedOptions returns the options a field currently offers. For dependent
// fields this is the union of the groups of the selected parent values, in
// parent option order.
func (s Step) OfferedOptions(f Field, parentSelection []string) []string {
	if f.DependsOn == "" {
		return f.Options
	}
	parent, ok := s.Field(f.DependsOn)
	if !ok {
		return nil
	}
	selected := make(map[string]bool, len(parentSelection))
	for _, v := range parentSelection {
		selected[v] = true
	}
	var out []string
	for _, p := range parent.Options {
		if selected[p] {
			out = append(out, f.OptionGroups[p]...)
		}
	}
	return out
}

// OutOfRangeError is returned when a step index outside the registry is requested.
type OutOfRangeError struct {
	Index int
	Len   int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("step index %d out of range [0,%d)", e.Index, e.Len)
}

// Registry is the ordered, immutable set of wizard steps.
type Registry struct {
	steps []Step
}

// NewRegistry indexes and checks the given steps.
func NewRegistry(steps []Step) (*Registry, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("schema: no steps defined")
	}
	out := make([]Step, len(steps))
	for i, s := range steps {
		s.Index = i
		if err := checkStep(s); err != nil {
			return nil, err
		}
		out[i] = s
	}
	return &Registry{steps: out}, nil
}

func checkStep(s Step) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("schema: step %d has no name", s.Index)
	}
	seen := map[string]bool{}
	for _, f := range s.Fields {
		if f.Key == "" {
			return fmt.Errorf("schema: step %s has a field without key", s.Name)
		}
		if seen[f.Key] {
			return fmt.Errorf("schema: step %s: duplicate field key %q", s.Name, f.Key)
		}
		seen[f.Key] = true

		if f.Kind.IsSelect() && len(f.Options) == 0 {
			return fmt.Errorf("schema: step %s: field %q has no options", s.Name, f.Key)
		}
		if !f.Kind.IsSelect() && len(f.Options) > 0 {
			return fmt.Errorf("schema: step %s: field %q is %s but declares options", s.Name, f.Key, f.Kind)
		}
		if f.Format == FormatEmail && f.Kind != FreeText {
			return fmt.Errorf("schema: step %s: email format on non-text field %q", s.Name, f.Key)
		}
	}
	for _, f := range s.Fields {
		if f.DependsOn == "" {
			continue
		}
		parent, ok := s.Field(f.DependsOn)
		if !ok || parent.Kind != MultiSelect || f.Kind != MultiSelect {
			return fmt.Errorf("schema: step %s: field %q depends on unknown multiselect %q", s.Name, f.Key, f.DependsOn)
		}
		for group := range f.OptionGroups {
			if !contains(parent.Options, group) {
				return fmt.Errorf("schema: step %s: field %q has group for unknown option %q", s.Name, f.Key, group)
			}
		}
	}
	if sg := s.Scores; sg != nil {
		for _, key := range []string{sg.Name, sg.Marks, sg.Total, sg.Percentage} {
			if !seen[key] {
				return fmt.Errorf("schema: step %s: score group references unknown field %q", s.Name, key)
			}
		}
		if f, _ := s.Field(sg.Marks); f.Kind != Numeric {
			return fmt.Errorf("schema: step %s: score marks field must be a number", s.Name)
		}
		if f, _ := s.Field(sg.Total); f.Kind != Numeric {
			return fmt.Errorf("schema: step %s: score total field must be a number", s.Name)
		}
	}
	return nil
}

// Len returns the number of steps.
func (r *Registry) Len() int { return len(r.steps) }

// Steps returns a copy of all steps in order.
func (r *Registry) Steps() []Step {
	out := make([]Step, len(r.steps))
	copy(out, r.steps)
	return out
}

// Step returns the step at index i.
func (r *Registry) Step(i int) (Step, error) {
	if i < 0 || i >= len(r.steps) {
		return Step{}, &OutOfRangeError{Index: i, Len: len(r.steps)}
	}
	return r.steps[i], nil
}

// Field finds a field by key across all steps.
func (r *Registry) Field(key string) (Field, Step, bool) {
	for _, s := range r.steps {
		if f, ok := s.Field(key); ok {
			return f, s, true
		}
	}
	return Field{}, Step{}, false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
