package validate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zdunecki/onboarding/pkg/schema"
)

type fakeAnswers struct {
	text map[string]string
	sets map[string][]string
}

func (f fakeAnswers) Text(key string) string  { return f.text[key] }
func (f fakeAnswers) Set(key string) []string { return f.sets[key] }

func step(t *testing.T, i int) schema.Step {
	t.Helper()
	reg, err := schema.Default()
	require.NoError(t, err)
	s, err := reg.Step(i)
	require.NoError(t, err)
	return s
}

func TestEmptyProfileReportsEveryRequiredField(t *testing.T) {
	res := Step(step(t, 0), fakeAnswers{}, 0)

	want := map[string]string{
		"fullName": MsgRequired,
		"email":    MsgRequired,
		"gender":   MsgRequired,
		"dob":      MsgRequired,
		"location": MsgRequired,
	}
	if diff := cmp.Diff(want, res.Messages()); diff != "" {
		t.Fatalf("Messages() mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, res.Valid())
	assert.Equal(t, []string{"fullName", "email", "gender", "dob", "location"}, res.Keys())
}

func TestProfileFieldRules(t *testing.T) {
	valid := map[string]string{
		"fullName": "Asha Rao",
		"email":    "asha@example.com",
		"gender":   "female",
		"dob":      "2006-04-12",
		"location": "Chicago",
	}

	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{name: "bad email", key: "email", value: "asha@", want: MsgEmail},
		{name: "email without tld", key: "email", value: "asha@example", want: MsgEmail},
		{name: "unknown gender", key: "gender", value: "robot", want: MsgInvalidOption},
		{name: "bad date", key: "dob", value: "12/04/2006", want: MsgDate},
		{name: "impossible date", key: "dob", value: "2006-02-30", want: MsgDate},
		{name: "unknown city", key: "location", value: "Atlantis", want: MsgInvalidOption},
		{name: "whitespace only", key: "fullName", value: "   ", want: MsgRequired},
	}

	res := Step(step(t, 0), fakeAnswers{text: valid}, 0)
	require.True(t, res.Valid(), "baseline should be valid: %v", res.Errors())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := map[string]string{}
			for k, v := range valid {
				text[k] = v
			}
			text[tt.key] = tt.value

			res := Step(step(t, 0), fakeAnswers{text: text}, 0)
			assert.Equal(t, tt.want, res.Err(tt.key))
			assert.Len(t, res.Errors(), 1)
		})
	}
}

func eligibilityAnswers() map[string]string {
	return map[string]string{
		"castCategory": "OBC",
		"examName":     "Boards",
		"marks":        "45",
		"total":        "90",
		"rank":         "1200",
		"cgpa":         "8.2",
		"obtainMark":   "430",
	}
}

func TestEligibilityNumericRules(t *testing.T) {
	s := step(t, 2)

	text := eligibilityAnswers()
	require.True(t, Step(s, fakeAnswers{text: text}, 0).Valid())

	text["rank"] = "-3"
	text["cgpa"] = "eight"
	res := Step(s, fakeAnswers{text: text}, 0)
	assert.Equal(t, MsgNumber, res.Err("rank"))
	assert.Equal(t, MsgNumber, res.Err("cgpa"))
	assert.Empty(t, res.Err("obtainMark"))
}

func TestEligibilityZeroTotal(t *testing.T) {
	text := eligibilityAnswers()
	text["total"] = "0"

	res := Step(step(t, 2), fakeAnswers{text: text}, 0)
	assert.Equal(t, MsgTotalZero, res.Err("percentage"))
	assert.Empty(t, res.Err("total"))
}

func TestEligibilityScoreEntry(t *testing.T) {
	s := step(t, 2)

	text := eligibilityAnswers()
	delete(text, "marks")

	res := Step(s, fakeAnswers{text: text}, 0)
	assert.Equal(t, MsgScoreEntry, res.Err("examName"))

	// A committed entry satisfies the rule even when the pending one is blank.
	res = Step(s, fakeAnswers{text: text}, 1)
	assert.True(t, res.Valid(), "%v", res.Errors())
}

func TestPreferencesRules(t *testing.T) {
	s := step(t, 3)

	res := Step(s, fakeAnswers{}, 0)
	assert.Equal(t, MsgSelectOne, res.Err("eligibleCourses"))
	assert.Equal(t, MsgSelectOne, res.Err("admissionChoices"))

	res = Step(s, fakeAnswers{sets: map[string][]string{
		"eligibleCourses":  {"Science"},
		"admissionChoices": {"MBA"},
	}}, 0)
	assert.Empty(t, res.Err("eligibleCourses"))
	assert.Equal(t, MsgInvalidOption, res.Err("admissionChoices"))

	res = Step(s, fakeAnswers{sets: map[string][]string{
		"eligibleCourses":  {"Science", "Business"},
		"admissionChoices": {"MBA", "M.Sc."},
	}}, 0)
	assert.True(t, res.Valid())
}

func TestResultClear(t *testing.T) {
	res := Step(step(t, 0), fakeAnswers{}, 0)
	cleared := res.Clear("email")

	assert.Empty(t, cleared.Err("email"))
	assert.Equal(t, MsgRequired, res.Err("email"), "original result must not change")
	assert.Equal(t, MsgRequired, cleared.Err("fullName"))

	var zero Result
	assert.False(t, zero.Ran())
	assert.True(t, zero.Valid())
	assert.Empty(t, zero.Errors())
}
