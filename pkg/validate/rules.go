// Package validate implements the per-step rule set of the onboarding wizard.
// Every function here is pure and total: any answer set, including a partially
// filled one, yields a Result with a slot for every field of the step.
package validate

import (
	"regexp"
	"strings"
	"time"

	"github.com/zdunecki/onboarding/pkg/derive"
	"github.com/zdunecki/onboarding/pkg/schema"
)

const (
	MsgRequired      = "This field is required"
	MsgSelectOne     = "Select at least one option"
	MsgNumber        = "Must be a non-negative number"
	MsgTotalZero     = "Total must be greater than zero"
	MsgInvalidOption = "Select a valid option"
	MsgDate          = "Enter a valid date (YYYY-MM-DD)"
	MsgEmail         = "Invalid email address"
	MsgScoreEntry    = "Add at least one complete exam score"
)

// DateLayout is the storage format of date answers.
const DateLayout = "2006-01-02"

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Answers is the read side of an answer set.
type Answers interface {
	Text(key string) string
	Set(key string) []string
}

// Step validates every field of step against answers. committedScores is the
// number of exam score entries already added for the step.
func Step(step schema.Step, answers Answers, committedScores int) Result {
	keys := make([]string, 0, len(step.Fields))
	for _, f := range step.Fields {
		keys = append(keys, f.Key)
	}
	res := newResult(keys)

	for _, f := range step.Fields {
		if msg := Field(step, f, answers); msg != "" {
			res.fail(f.Key, msg)
		}
	}
	if sg := step.Scores; sg != nil {
		if committedScores == 0 && !PendingScoreComplete(*sg, answers) {
			res.fail(sg.Name, MsgScoreEntry)
		}
	}
	return res
}

// Field returns the first failing rule's message for f, or "".
func Field(step schema.Step, f schema.Field, answers Answers) string {
	if f.Derived {
		return derivedRule(step, f, answers)
	}

	switch f.Kind {
	case schema.Boolean:
		return ""
	case schema.MultiSelect:
		set := answers.Set(f.Key)
		if len(set) == 0 {
			if f.Required {
				return MsgSelectOne
			}
			return ""
		}
		var parent []string
		if f.DependsOn != "" {
			parent = answers.Set(f.DependsOn)
		}
		offered := step.OfferedOptions(f, parent)
		for _, v := range set {
			if !containsString(offered, v) {
				return MsgInvalidOption
			}
		}
		return ""
	}

	value := strings.TrimSpace(answers.Text(f.Key))
	if value == "" {
		if f.Required {
			return MsgRequired
		}
		return ""
	}

	switch f.Kind {
	case schema.Numeric:
		if _, ok := derive.ParseNonNegative(value); !ok {
			return MsgNumber
		}
	case schema.Date:
		if _, err := time.Parse(DateLayout, value); err != nil {
			return MsgDate
		}
	case schema.SingleSelect:
		if !containsString(f.Options, value) {
			return MsgInvalidOption
		}
	case schema.FreeText:
		if f.Format == schema.FormatEmail && !emailPattern.MatchString(value) {
			return MsgEmail
		}
	}
	return ""
}

func derivedRule(step schema.Step, f schema.Field, answers Answers) string {
	sg := step.Scores
	if sg == nil || sg.Percentage != f.Key {
		return ""
	}
	total := strings.TrimSpace(answers.Text(sg.Total))
	if t, ok := derive.ParseNonNegative(total); ok && t == 0 {
		return MsgTotalZero
	}
	return ""
}

// PendingScoreComplete reports whether the in-progress score fields hold a
// complete entry: a name plus valid marks and total.
func PendingScoreComplete(sg schema.ScoreGroup, answers Answers) bool {
	if strings.TrimSpace(answers.Text(sg.Name)) == "" {
		return false
	}
	if _, ok := derive.ParseNonNegative(answers.Text(sg.Marks)); !ok {
		return false
	}
	_, ok := derive.ParseNonNegative(answers.Text(sg.Total))
	return ok
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
