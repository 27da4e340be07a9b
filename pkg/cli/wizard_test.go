package cli

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zdunecki/onboarding/pkg/schema"
	"github.com/zdunecki/onboarding/pkg/validate"
	"github.com/zdunecki/onboarding/pkg/wizard"
)

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyNext  = tea.KeyMsg{Type: tea.KeyCtrlN}
	keyBack  = tea.KeyMsg{Type: tea.KeyCtrlB}
	keySkip  = tea.KeyMsg{Type: tea.KeyCtrlS}
)

func newTestModel(t *testing.T, opts ...wizard.Option) wizardModel {
	t.Helper()
	reg, err := schema.Default()
	require.NoError(t, err)
	machine := wizard.New(reg, opts...)
	st, err := machine.Start(context.Background())
	require.NoError(t, err)
	m := newWizardModel(machine, st)
	return send(t, m, tea.WindowSizeMsg{Width: 120, Height: 60})
}

func send(t *testing.T, m wizardModel, msgs ...tea.Msg) wizardModel {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(wizardModel)
		require.True(t, ok)
	}
	return m
}

func TestTypingEditsFocusedField(t *testing.T) {
	m := newTestModel(t)
	m = send(t, m, runes("Asha"))
	assert.Equal(t, "Asha", m.st.Answers.Text("fullName"))

	m = send(t, m, keyDown, runes("asha@example.com"))
	assert.Equal(t, "asha@example.com", m.st.Answers.Text("email"))
	assert.Equal(t, "Asha", m.st.Answers.Text("fullName"))
}

func TestNextShowsValidationErrors(t *testing.T) {
	m := newTestModel(t)
	m = send(t, m, keyNext)

	assert.Equal(t, 0, m.st.Step)
	assert.Equal(t, validate.MsgRequired, m.st.LastValidation.Err("fullName"))
	view := m.View()
	assert.Contains(t, view, "Validation: 5 field(s) need attention")
	assert.Contains(t, view, validate.MsgRequired)
}

func TestSelectorOpensAndSelects(t *testing.T) {
	m := newTestModel(t)
	m = send(t, m, keyDown, keyDown) // gender
	f, ok := m.focusedField()
	require.True(t, ok)
	require.Equal(t, "gender", f.Key)

	m = send(t, m, keyEnter)
	assert.Equal(t, "gender", m.st.OpenSelector)
	assert.Len(t, m.list.Items(), 3)

	m = send(t, m, keyEnter)
	assert.Equal(t, "male", m.st.Answers.Text("gender"))
	assert.Empty(t, m.st.OpenSelector)

	m = send(t, m, keyEnter, keyEsc)
	assert.Empty(t, m.st.OpenSelector, "esc closes the selector")
}

func TestSearchableSelectorFilters(t *testing.T) {
	m := newTestModel(t)
	m = send(t, m, keyDown, keyDown, keyDown, keyDown) // location
	m = send(t, m, keyEnter)
	require.Equal(t, "location", m.st.OpenSelector)
	assert.Len(t, m.list.Items(), 10)

	m = send(t, m, runes("chi"))
	require.Len(t, m.list.Items(), 1)
	assert.Equal(t, "Chicago", m.list.Items()[0].(optionItem).value)

	m = send(t, m, keyEnter)
	assert.Equal(t, "Chicago", m.st.Answers.Text("location"))
}

func TestMultiSelectStaysOpen(t *testing.T) {
	m := newTestModel(t)
	m.st.Step = 3
	m.focusField(0)

	m = send(t, m, keyEnter, keyEnter)
	assert.Equal(t, []string{"Science"}, m.st.Answers.Set("eligibleCourses"))
	assert.Equal(t, "eligibleCourses", m.st.OpenSelector)
	assert.Equal(t, "selected", m.list.Items()[0].(optionItem).desc)

	m = send(t, m, keyEnter)
	assert.Empty(t, m.st.Answers.Set("eligibleCourses"))
}

func TestSkipAndBack(t *testing.T) {
	m := newTestModel(t)
	m = send(t, m, keySkip)
	assert.Equal(t, 1, m.st.Step)

	m = send(t, m, keySkip)
	assert.Equal(t, 1, m.st.Step, "education cannot be skipped")

	m = send(t, m, keyBack)
	assert.Equal(t, 0, m.st.Step)
}

func TestSubmissionFailureBecomesNotice(t *testing.T) {
	failing := wizard.AdapterFunc(func(ctx context.Context, p wizard.Payload) error {
		return errors.New("backend down")
	})
	m := newTestModel(t, wizard.WithAdapter(failing))

	st := m.st
	var err error
	for key, v := range map[string]string{"fullName": "Asha Rao", "email": "asha@example.com", "dob": "2006-04-12"} {
		st, err = m.machine.SetText(st, key, v)
		require.NoError(t, err)
	}
	st, err = m.machine.Select(st, "gender", "female")
	require.NoError(t, err)
	st, err = m.machine.Select(st, "location", "Chicago")
	require.NoError(t, err)
	m.st = st

	next, cmd := m.Update(keyNext)
	m = next.(wizardModel)
	require.NotNil(t, cmd)
	assert.Equal(t, 1, m.st.Step, "navigation continues while the post is in flight")
	assert.Equal(t, 1, m.pending)

	m = send(t, m, cmd())
	assert.Equal(t, 0, m.pending)
	assert.Equal(t, "Error: submit profile: backend down", m.st.Notice)
	assert.Contains(t, m.View(), "backend down")

	m = send(t, m, keyDown)
	assert.Empty(t, m.st.Notice, "notices are shown once")
}

func TestQuitKeys(t *testing.T) {
	m := newTestModel(t)
	m = send(t, m, runes("q"))
	assert.False(t, m.cancelled, "q types into a text field")

	m = send(t, m, keyDown, keyDown)
	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
