package wizard

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/zdunecki/onboarding/pkg/schema"
	"github.com/zdunecki/onboarding/pkg/validate"
)

// Phase is the coarse position of a wizard run.
type Phase int

const (
	InProgress Phase = iota
	Submitted
)

func (p Phase) String() string {
	if p == Submitted {
		return "submitted"
	}
	return "in_progress"
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Value is the stored answer of one field. Text carries free text, single
// selections, numbers as typed and dates; Set carries multi-select members.
type Value struct {
	Text string   `json:"text,omitempty"`
	Set  []string `json:"set,omitempty"`
	Bool bool     `json:"bool,omitempty"`
}

// Answers maps field keys to their current values across all steps.
type Answers map[string]Value

func (a Answers) Text(key string) string  { return a[key].Text }
func (a Answers) Set(key string) []string { return a[key].Set }
func (a Answers) Bool(key string) bool    { return a[key].Bool }

// Has reports whether key has an entry.
func (a Answers) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// Clone returns a deep copy.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		if v.Set != nil {
			v.Set = append([]string(nil), v.Set...)
		}
		out[k] = v
	}
	return out
}

func toggle(set []string, v string) []string {
	out := make([]string, 0, len(set)+1)
	found := false
	for _, item := range set {
		if item == v {
			found = true
			continue
		}
		out = append(out, item)
	}
	if !found {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// ExamScore is a committed exam score entry.
type ExamScore struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Marks      string `json:"marks"`
	Total      string `json:"total"`
	Percentage string `json:"percentage"`
}

// State is the complete state of one wizard run. It is passed into and
// returned from every Machine operation; operations never mutate their input.
type State struct {
	Step           int             `json:"step"`
	Phase          Phase           `json:"phase"`
	Answers        Answers         `json:"answers"`
	OpenSelector   string          `json:"open_selector,omitempty"`
	LastValidation validate.Result `json:"last_validation"`
	Scores         []ExamScore     `json:"scores,omitempty"`
	Notice         string          `json:"notice,omitempty"`
	// Passed lists the steps whose latest forward move was a passing Next.
	// Only their answers are submitted.
	Passed []int `json:"passed,omitempty"`
}

func (s State) clone() State {
	out := s
	out.Answers = s.Answers.Clone()
	if s.Scores != nil {
		out.Scores = append([]ExamScore(nil), s.Scores...)
	}
	if s.Passed != nil {
		out.Passed = append([]int(nil), s.Passed...)
	}
	return out
}

// HasPassed reports whether step i was left with a passing Next.
func (s State) HasPassed(i int) bool {
	for _, p := range s.Passed {
		if p == i {
			return true
		}
	}
	return false
}

// markPassed records step i as passed or, when ok is false, forgets it.
// s must already be a clone.
func (s *State) markPassed(i int, ok bool) {
	kept := s.Passed[:0]
	for _, p := range s.Passed {
		if p != i {
			kept = append(kept, p)
		}
	}
	if ok {
		kept = append(kept, i)
		sort.Ints(kept)
	}
	s.Passed = kept
}

// Flatten renders answers as plain values keyed by field key, in the shape
// the submission adapter expects: strings, string slices and booleans.
func Flatten(steps []schema.Step, answers Answers) map[string]interface{} {
	out := map[string]interface{}{}
	for _, s := range steps {
		for _, f := range s.Fields {
			v, ok := answers[f.Key]
			if !ok {
				continue
			}
			switch f.Kind {
			case schema.MultiSelect:
				out[f.Key] = append([]string{}, v.Set...)
			case schema.Boolean:
				out[f.Key] = v.Bool
			default:
				out[f.Key] = v.Text
			}
		}
	}
	return out
}

// AnswersFrom is the inverse of Flatten: it reads plain values keyed by field
// key. Numbers are kept as typed text; unknown keys are ignored.
func AnswersFrom(steps []schema.Step, flat map[string]interface{}) (Answers, error) {
	out := Answers{}
	for _, s := range steps {
		for _, f := range s.Fields {
			raw, ok := flat[f.Key]
			if !ok || raw == nil {
				continue
			}
			switch v := raw.(type) {
			case string:
				out[f.Key] = Value{Text: v}
			case float64:
				out[f.Key] = Value{Text: strconv.FormatFloat(v, 'f', -1, 64)}
			case bool:
				out[f.Key] = Value{Bool: v}
			case []interface{}:
				set := make([]string, 0, len(v))
				for _, item := range v {
					str, ok := item.(string)
					if !ok {
						return nil, &FieldError{Key: f.Key, Reason: fmt.Sprintf("unexpected list member %v", item)}
					}
					set = append(set, str)
				}
				sort.Strings(set)
				out[f.Key] = Value{Set: set}
			default:
				return nil, &FieldError{Key: f.Key, Reason: fmt.Sprintf("unexpected value %v", raw)}
			}
		}
	}
	return out, nil
}
