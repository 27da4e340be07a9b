package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zdunecki/onboarding/pkg/schema"
	"github.com/zdunecki/onboarding/pkg/wizard"
)

type optionItem struct {
	title string
	desc  string
	value string
}

func (i optionItem) Title() string       { return i.title }
func (i optionItem) Description() string { return i.desc }
func (i optionItem) FilterValue() string { return i.title }

// submissionMsg reports a finished adapter call.
type submissionMsg struct {
	sub *wizard.Submission
}

type wizardModel struct {
	machine   *wizard.Machine
	st        wizard.State
	review    wizard.State
	focus     int
	list      list.Model
	input     textinput.Model
	filter    textinput.Model
	pending   int
	finished  bool
	cancelled bool
	err       error
	width     int
	height    int
}

var (
	styleTitle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	styleSubtitle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleError     = lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true)
	stylePrompt    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	styleSummary   = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	styleHighlight = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
)

// RunWizard runs the interactive onboarding wizard and returns the final
// state. A quit before submission returns the state as it was left.
func RunWizard(ctx context.Context, machine *wizard.Machine) (wizard.State, error) {
	st, err := machine.Start(ctx)
	if err != nil {
		return st, err
	}
	model := newWizardModel(machine, st)
	prog := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	result, err := prog.Run()
	if err != nil {
		return st, err
	}

	finalModel, ok := result.(wizardModel)
	if !ok {
		return st, fmt.Errorf("wizard failed to return results")
	}
	if finalModel.err != nil {
		return finalModel.st, finalModel.err
	}
	return finalModel.st, nil
}

func newWizardModel(machine *wizard.Machine, st wizard.State) wizardModel {
	m := wizardModel{machine: machine, st: st}
	m.list = newList("", nil)
	m.focusField(0)
	return m
}

func newList(title string, items []list.Item) list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.Styles.NormalTitle = delegate.Styles.NormalTitle.Foreground(lipgloss.Color("252"))
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(lipgloss.Color("205")).Bold(true)
	delegate.Styles.NormalDesc = delegate.Styles.NormalDesc.Foreground(lipgloss.Color("244")).Italic(true)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(lipgloss.Color("212")).Italic(true)
	l := list.New(items, delegate, 0, 0)
	l.Title = styleTitle.Render(title)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowPagination(false)
	return l
}

func (m wizardModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m wizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 4
		m.filter.Width = msg.Width - 4
		m.applyListSize()
		return m, nil
	case submissionMsg:
		m.pending--
		m.st = wizard.Settle(m.st, msg.sub)
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.textFocused() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m wizardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.cancelled = true
		return m, tea.Quit
	}
	m.st = wizard.DismissNotice(m.st)

	if m.st.Phase == wizard.Submitted {
		switch msg.String() {
		case "q", "enter", "esc":
			if m.pending == 0 {
				m.finished = true
				return m, tea.Quit
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+n":
		return m.next()
	case "ctrl+b":
		m.st = m.machine.Back(m.st)
		m.focusField(0)
		return m, nil
	case "ctrl+s":
		if m.machine.CanSkip(m.st) {
			m.st = m.machine.Skip(m.st)
			m.focusField(0)
		}
		return m, nil
	case "ctrl+a":
		return m.addScore()
	case "ctrl+r":
		if n := len(m.st.Scores); n > 0 {
			m.st = m.machine.RemoveScore(m.st, m.st.Scores[n-1].ID)
		}
		return m, nil
	}

	if m.st.OpenSelector != "" {
		return m.handleSelectorKey(msg)
	}

	switch msg.String() {
	case "up", "shift+tab":
		m.focusField(m.focus - 1)
		return m, nil
	case "down", "tab":
		m.focusField(m.focus + 1)
		return m, nil
	case "enter":
		return m.activate()
	case "q":
		if !m.textFocused() {
			m.cancelled = true
			return m, tea.Quit
		}
	}

	if m.textFocused() {
		return m.handleInput(msg)
	}
	return m, nil
}

func (m wizardModel) handleSelectorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		st, err := m.machine.ToggleSelector(m.st, m.st.OpenSelector)
		if err == nil {
			m.st = st
		}
		return m, nil
	case "enter":
		item, ok := m.list.SelectedItem().(optionItem)
		if !ok {
			return m, nil
		}
		st, err := m.machine.Select(m.st, m.st.OpenSelector, item.value)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.st = st
		if m.st.OpenSelector != "" {
			m.refreshOptions()
		}
		return m, nil
	case "up", "down", "pgup", "pgdown", "home", "end":
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	f, ok := m.focusedField()
	if ok && f.Searchable {
		var cmd tea.Cmd
		before := m.filter.Value()
		m.filter, cmd = m.filter.Update(msg)
		if m.filter.Value() != before {
			m.refreshOptions()
		}
		return m, cmd
	}
	return m, nil
}

func (m wizardModel) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f, _ := m.focusedField()
	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if value := m.input.Value(); value != before {
		st, err := m.machine.SetText(m.st, f.Key, value)
		if err != nil {
			m.err = err
			return m, tea.Quit
		}
		m.st = st
	}
	return m, cmd
}

// activate handles enter on the focused field.
func (m wizardModel) activate() (tea.Model, tea.Cmd) {
	f, ok := m.focusedField()
	if !ok {
		return m, nil
	}
	switch {
	case f.Kind.IsSelect():
		st, err := m.machine.ToggleSelector(m.st, f.Key)
		if err != nil {
			m.err = err
			return m, tea.Quit
		}
		m.st = st
		m.filter = newFilter(m.width)
		m.refreshOptions()
	case f.Kind == schema.Boolean:
		st, err := m.machine.SetBool(m.st, f.Key, !m.st.Answers.Bool(f.Key))
		if err != nil {
			m.err = err
			return m, tea.Quit
		}
		m.st = st
	default:
		m.focusField(m.focus + 1)
	}
	return m, nil
}

func (m wizardModel) next() (tea.Model, tea.Cmd) {
	before := m.st
	st, sub, err := m.machine.Next(context.Background(), m.st)
	if err != nil {
		m.err = err
		return m, tea.Quit
	}
	m.st = st
	if m.st.Phase == wizard.Submitted {
		// The submitted state no longer carries answers; keep what was shown.
		m.review = before
	}
	if m.st.Step != before.Step || m.st.Phase == wizard.Submitted {
		m.focusField(0)
	} else {
		m.focusFirstError()
	}
	if sub == nil {
		return m, nil
	}
	m.pending++
	return m, waitForSubmission(sub)
}

func (m wizardModel) addScore() (tea.Model, tea.Cmd) {
	st, err := m.machine.AddScore(m.st)
	if err != nil {
		m.st.Notice = err.Error()
		return m, nil
	}
	m.st = st
	m.syncInput()
	return m, nil
}

func waitForSubmission(sub *wizard.Submission) tea.Cmd {
	return func() tea.Msg {
		_ = sub.Wait()
		return submissionMsg{sub: sub}
	}
}

func (m wizardModel) step() schema.Step {
	step, _ := m.machine.Current(m.st)
	return step
}

// focusable lists the fields that can take focus; derived ones cannot.
func (m wizardModel) focusable() []schema.Field {
	var out []schema.Field
	for _, f := range m.step().Fields {
		if !f.Derived {
			out = append(out, f)
		}
	}
	return out
}

func (m wizardModel) focusedField() (schema.Field, bool) {
	fields := m.focusable()
	if m.focus < 0 || m.focus >= len(fields) {
		return schema.Field{}, false
	}
	return fields[m.focus], true
}

func (m *wizardModel) focusField(i int) {
	n := len(m.focusable())
	switch {
	case n == 0:
		i = 0
	case i < 0:
		i = n - 1
	case i >= n:
		i = 0
	}
	m.focus = i
	m.syncInput()
}

func (m *wizardModel) focusFirstError() {
	for i, f := range m.focusable() {
		if m.st.LastValidation.Err(f.Key) != "" {
			m.focusField(i)
			return
		}
	}
}

func (m wizardModel) textFocused() bool {
	f, ok := m.focusedField()
	if !ok || m.st.Phase == wizard.Submitted {
		return false
	}
	switch f.Kind {
	case schema.FreeText, schema.Numeric, schema.Date:
		return true
	}
	return false
}

// syncInput points the text input at the focused field.
func (m *wizardModel) syncInput() {
	if !m.textFocused() {
		m.input.Blur()
		return
	}
	f, _ := m.focusedField()
	m.setInput(f.Placeholder, m.st.Answers.Text(f.Key))
}

func (m *wizardModel) setInput(placeholder, value string) {
	m.input = textinput.New()
	m.input.Prompt = stylePrompt.Render("> ")
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.Focus()
	if m.width > 0 {
		m.input.Width = m.width - 4
	}
}

func newFilter(width int) textinput.Model {
	in := textinput.New()
	in.Prompt = stylePrompt.Render("Search: ")
	in.Placeholder = "type to filter"
	in.Focus()
	if width > 0 {
		in.Width = width - 4
	}
	return in
}

// refreshOptions fills the list with the open selector's offered options.
func (m *wizardModel) refreshOptions() {
	step := m.step()
	f, ok := step.Field(m.st.OpenSelector)
	if !ok {
		return
	}
	var parent []string
	if f.DependsOn != "" {
		parent = m.st.Answers.Set(f.DependsOn)
	}
	offered := step.OfferedOptions(f, parent)
	if f.Searchable {
		offered = schema.FilterOptions(offered, m.filter.Value())
	}
	title := "Select " + strings.ToLower(f.Label)
	if f.Kind == schema.MultiSelect {
		title += " (enter toggles, esc closes)"
	}
	m.list.Title = styleTitle.Render(title)
	m.list.SetItems(optionItems(f, offered, m.st.Answers))
	m.applyListSize()
}

func optionItems(f schema.Field, offered []string, answers wizard.Answers) []list.Item {
	items := make([]list.Item, 0, len(offered))
	for _, o := range offered {
		desc := ""
		switch f.Kind {
		case schema.MultiSelect:
			for _, v := range answers.Set(f.Key) {
				if v == o {
					desc = "selected"
				}
			}
		case schema.SingleSelect:
			if answers.Text(f.Key) == o {
				desc = "current"
			}
		}
		items = append(items, optionItem{title: o, desc: desc, value: o})
	}
	return items
}

func (m *wizardModel) applyListSize() {
	m.applyListSizeWithOffset(len(m.step().Fields) + 10)
}

func (m *wizardModel) applyListSizeWithOffset(offset int) {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	height := m.height - offset
	if height < 4 {
		height = 4
	}
	m.list.SetSize(m.width, height)
}

func (m wizardModel) View() string {
	if m.finished || m.cancelled {
		return ""
	}
	if m.st.Phase == wizard.Submitted {
		return m.submittedView()
	}

	step := m.step()
	reg := m.machine.Registry()
	var b strings.Builder

	b.WriteString(styleTitle.Render(fmt.Sprintf("Step %d of %d", step.Index+1, reg.Len())))
	b.WriteString(styleSubtitle.Render(fmt.Sprintf("  %.0f%% complete", m.machine.Progress(m.st))))
	b.WriteString("\n")
	b.WriteString(styleSubtitle.Render(step.Title))
	b.WriteString("\n\n")

	if m.st.Notice != "" {
		b.WriteString(styleHighlight.Render(m.st.Notice) + "\n\n")
	}
	if res := m.st.LastValidation; res.Ran() && !res.Valid() {
		b.WriteString(styleError.Render(fmt.Sprintf("Validation: %d field(s) need attention", len(res.Errors()))) + "\n\n")
	}

	focused, _ := m.focusedField()
	for _, f := range step.Fields {
		b.WriteString(m.fieldLine(f, f.Key == focused.Key))
		b.WriteString("\n")
		if msg := m.st.LastValidation.Err(f.Key); msg != "" {
			b.WriteString("    " + styleError.Render(msg) + "\n")
		}
	}

	if step.Scores != nil && len(m.st.Scores) > 0 {
		b.WriteString("\n" + styleSummary.Render("Exam scores") + "\n")
		for i, s := range m.st.Scores {
			b.WriteString(styleSummary.Render(fmt.Sprintf("  %d. %s  %s/%s  (%s%%)", i+1, s.Name, s.Marks, s.Total, s.Percentage)) + "\n")
		}
	}

	b.WriteString("\n")
	switch {
	case m.st.OpenSelector != "":
		if focused.Searchable {
			b.WriteString(m.filter.View() + "\n")
		}
		b.WriteString(m.list.View() + "\n")
	case m.textFocused():
		b.WriteString(m.input.View() + "\n")
	}

	b.WriteString("\n" + stylePrompt.Render(m.helpLine(step)))
	return b.String()
}

func (m wizardModel) fieldLine(f schema.Field, focused bool) string {
	marker := "  "
	if focused {
		marker = styleHighlight.Render("> ")
	}
	label := f.Label
	if f.Required {
		label += "*"
	}

	var value string
	switch f.Kind {
	case schema.MultiSelect:
		value = strings.Join(m.st.Answers.Set(f.Key), ", ")
	case schema.Boolean:
		value = "no"
		if m.st.Answers.Bool(f.Key) {
			value = "yes"
		}
	default:
		value = m.st.Answers.Text(f.Key)
	}
	if value == "" {
		value = styleSubtitle.Render("-")
	}
	if f.Derived {
		label += " (auto)"
	}
	return fmt.Sprintf("%s%-32s %s", marker, label, value)
}

func (m wizardModel) helpLine(step schema.Step) string {
	parts := []string{"↑/↓ move", "enter select", "ctrl+n next"}
	if step.Index > 0 {
		parts = append(parts, "ctrl+b back")
	}
	if m.machine.CanSkip(m.st) {
		parts = append(parts, "ctrl+s skip")
	}
	if step.Scores != nil {
		parts = append(parts, "ctrl+a add score", "ctrl+r remove score")
	}
	parts = append(parts, "ctrl+c quit")
	return strings.Join(parts, " · ")
}

func (m wizardModel) submittedView() string {
	lines := []string{styleHighlight.Render("Review your answers")}
	reg := m.machine.Registry()
	answers := m.review.Answers
	for _, step := range reg.Steps() {
		if step.Index != reg.Len()-1 && !m.review.HasPassed(step.Index) {
			lines = append(lines, "", styleSubtitle.Render(step.Title+" (skipped)"))
			continue
		}
		lines = append(lines, "", styleTitle.Render(step.Title))
		for _, f := range step.Fields {
			var value string
			switch f.Kind {
			case schema.MultiSelect:
				value = strings.Join(answers.Set(f.Key), ", ")
			case schema.Boolean:
				if answers.Has(f.Key) {
					value = fmt.Sprintf("%t", answers.Bool(f.Key))
				}
			default:
				value = answers.Text(f.Key)
			}
			if value == "" {
				continue
			}
			lines = append(lines, styleSummary.Render(fmt.Sprintf("%-32s %s", f.Label+":", value)))
		}
	}

	footer := "Submitting..."
	if m.pending == 0 {
		footer = "Press Enter to exit."
	}
	if m.st.Notice != "" {
		lines = append(lines, "", styleHighlight.Render(m.st.Notice))
	}
	lines = append(lines, "", stylePrompt.Render(footer))
	return strings.Join(lines, "\n")
}
