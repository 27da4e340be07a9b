// Package wizard drives the onboarding wizard: navigation between steps,
// field edits, selector state and the hand-off to the submission adapter.
//
// A Machine holds only immutable collaborators. The run itself is a State
// value that callers pass into each operation and replace with the returned
// one, so several runs can share a Machine.
package wizard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zdunecki/onboarding/pkg/derive"
	"github.com/zdunecki/onboarding/pkg/schema"
	"github.com/zdunecki/onboarding/pkg/session"
	"github.com/zdunecki/onboarding/pkg/validate"
)

// Machine is the step controller.
type Machine struct {
	reg     *schema.Registry
	adapter Adapter
	store   session.Store
	log     *zap.Logger
	now     func() time.Time
	newID   func() string
}

// Option configures a Machine.
type Option func(*Machine)

// WithAdapter sets the submission adapter. Without one submissions succeed
// immediately without leaving the process.
func WithAdapter(a Adapter) Option {
	return func(m *Machine) { m.adapter = a }
}

// WithSessionStore sets the persisted session boundary.
func WithSessionStore(s session.Store) Option {
	return func(m *Machine) { m.store = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.log = l
		}
	}
}

// New returns a Machine over reg.
func New(reg *schema.Registry, opts ...Option) *Machine {
	m := &Machine{
		reg:   reg,
		log:   zap.NewNop(),
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the schema the machine runs over.
func (m *Machine) Registry() *schema.Registry { return m.reg }

// Start returns the initial state of a run. A stored session resumes after
// the steps it already saved; a completed onboarding yields ErrAlreadyOnboarded.
func (m *Machine) Start(ctx context.Context) (State, error) {
	st := State{Answers: Answers{}}
	if m.store == nil {
		return st, nil
	}

	blob, ok, err := m.store.Load(ctx)
	if err != nil {
		m.log.Warn("Session load failed, starting fresh", zap.Error(err))
		return st, nil
	}
	if !ok {
		return st, nil
	}
	if blob.Onboarded {
		return st, ErrAlreadyOnboarded
	}

	for _, s := range m.reg.Steps() {
		saved, ok := blob.Saved[s.Name]
		if !ok || st.Step != s.Index || s.Index == m.reg.Len()-1 {
			break
		}
		for _, f := range s.Fields {
			v, ok := saved[f.Key]
			if !ok {
				continue
			}
			switch f.Kind {
			case schema.MultiSelect, schema.Boolean:
				// Persisted steps carry text values only.
			default:
				st.Answers[f.Key] = Value{Text: v}
			}
		}
		st.markPassed(s.Index, true)
		st.Step = s.Index + 1
	}
	if st.Step > 0 {
		m.log.Info("Resuming onboarding", zap.Int("step", st.Step))
	}
	return st, nil
}

// Current returns the descriptor of the state's step.
func (m *Machine) Current(st State) (schema.Step, error) {
	return m.reg.Step(st.Step)
}

// Validate runs the rule set for the current step without moving.
func (m *Machine) Validate(st State) (validate.Result, error) {
	step, err := m.reg.Step(st.Step)
	if err != nil {
		return validate.Result{}, err
	}
	return validate.Step(step, st.Answers, scoreCount(step, st)), nil
}

// Next validates the current step. An invalid step keeps its position and
// records the result for display. A valid step advances; on the last step
// the run becomes Submitted and the full answer set is handed to the adapter.
// The returned Submission is non-nil whenever the adapter was invoked.
func (m *Machine) Next(ctx context.Context, st State) (State, *Submission, error) {
	if st.Phase == Submitted {
		return st, nil, ErrSubmitted
	}
	step, err := m.reg.Step(st.Step)
	if err != nil {
		return st, nil, err
	}

	st = st.clone()
	st.OpenSelector = ""
	st.LastValidation = validate.Step(step, st.Answers, scoreCount(step, st))
	if !st.LastValidation.Valid() {
		m.log.Debug("Step invalid",
			zap.String("step", step.Name),
			zap.Int("errors", len(st.LastValidation.Errors())))
		return st, nil, nil
	}

	st.markPassed(st.Step, true)
	last := st.Step == m.reg.Len()-1
	if step.Persist || last {
		m.persist(ctx, st, step, last)
	}

	if last {
		payload := m.finalPayload(st, step)
		// The answer set is handed over; the submitted run keeps no copy.
		st.Phase = Submitted
		st.Answers = Answers{}
		st.Scores = nil
		st.Passed = nil
		st.LastValidation = validate.Result{}
		m.log.Info("Onboarding complete, submitting", zap.Int("answers", len(payload.Answers)))
		return st, m.dispatch(ctx, payload), nil
	}

	var sub *Submission
	if step.Submit {
		sub = m.dispatch(ctx, Payload{
			Step:    step.Name,
			Answers: Flatten([]schema.Step{step}, st.Answers),
		})
	}
	st.Step++
	st.LastValidation = validate.Result{}
	m.log.Debug("Step passed", zap.String("step", step.Name), zap.Int("next", st.Step))
	return st, sub, nil
}

// finalPayload assembles the answers of the passed steps. Skipped steps are
// left out entirely, together with their exam scores.
func (m *Machine) finalPayload(st State, last schema.Step) Payload {
	var steps []schema.Step
	var scores []ExamScore
	for _, s := range m.reg.Steps() {
		if !st.HasPassed(s.Index) {
			continue
		}
		steps = append(steps, s)
		if s.Scores != nil {
			scores = append(scores, st.Scores...)
		}
	}
	return Payload{
		Step:    last.Name,
		Final:   true,
		Answers: Flatten(steps, st.Answers),
		Scores:  scores,
	}
}

// Back moves to the previous step, keeping every answer and clearing the
// errors on display. It is a no-op on the first step and after submission.
func (m *Machine) Back(st State) State {
	if st.Phase == Submitted || st.Step <= 0 {
		return st
	}
	st = st.clone()
	st.Step--
	st.OpenSelector = ""
	st.LastValidation = validate.Result{}
	return st
}

// CanSkip reports whether Skip would move the state.
func (m *Machine) CanSkip(st State) bool {
	if st.Phase == Submitted || st.Step >= m.reg.Len()-1 {
		return false
	}
	step, err := m.reg.Step(st.Step)
	return err == nil && step.Skippable
}

// Skip advances past a skippable step without validating it. Values already
// entered on the step are kept in the state but are not submitted. On any
// other step it is a no-op.
func (m *Machine) Skip(st State) State {
	if !m.CanSkip(st) {
		return st
	}
	st = st.clone()
	st.markPassed(st.Step, false)
	st.Step++
	st.OpenSelector = ""
	st.LastValidation = validate.Result{}
	return st
}

// TrySkip is Skip for callers that need to know whether it moved.
func (m *Machine) TrySkip(st State) (State, error) {
	if st.Phase == Submitted {
		return st, ErrSubmitted
	}
	if !m.CanSkip(st) {
		return st, ErrNotSkippable
	}
	return m.Skip(st), nil
}

// ToggleSelector opens key's option list, closing any other, or closes it
// when it is already open.
func (m *Machine) ToggleSelector(st State, key string) (State, error) {
	if st.Phase == Submitted {
		return st, ErrSubmitted
	}
	_, f, err := m.field(st, key)
	if err != nil {
		return st, err
	}
	if !f.Kind.IsSelect() {
		return st, &FieldError{Key: key, Reason: "not a select field"}
	}
	st = st.clone()
	if st.OpenSelector == key {
		st.OpenSelector = ""
	} else {
		st.OpenSelector = key
	}
	return st, nil
}

// Select applies an option to a select field. Single selects overwrite the
// value and close the selector; multi selects toggle membership.
func (m *Machine) Select(st State, key, value string) (State, error) {
	if st.Phase == Submitted {
		return st, ErrSubmitted
	}
	step, f, err := m.field(st, key)
	if err != nil {
		return st, err
	}

	st = st.clone()
	switch f.Kind {
	case schema.SingleSelect:
		if !contains(f.Options, value) {
			return st, &FieldError{Key: key, Reason: "unknown option " + value}
		}
		st.Answers[key] = Value{Text: value}
		st.OpenSelector = ""
	case schema.MultiSelect:
		offered := step.OfferedOptions(f, st.Answers.Set(f.DependsOn))
		if !contains(offered, value) && !contains(st.Answers.Set(key), value) {
			return st, &FieldError{Key: key, Reason: "unknown option " + value}
		}
		st.Answers[key] = Value{Set: toggle(st.Answers.Set(key), value)}
		pruneDependents(step, st.Answers)
	default:
		return st, &FieldError{Key: key, Reason: "not a select field"}
	}
	st.LastValidation = st.LastValidation.Clear(key)
	return st, nil
}

// pruneDependents drops dependent choices whose parent value was deselected.
func pruneDependents(step schema.Step, answers Answers) {
	for _, f := range step.Fields {
		if f.DependsOn == "" || !answers.Has(f.Key) {
			continue
		}
		offered := step.OfferedOptions(f, answers.Set(f.DependsOn))
		kept := make([]string, 0, len(answers.Set(f.Key)))
		for _, v := range answers.Set(f.Key) {
			if contains(offered, v) {
				kept = append(kept, v)
			}
		}
		answers[f.Key] = Value{Set: kept}
	}
}

// SetText edits a free-text, numeric or date field. Edits to the marks or
// total of an exam score recompute its percentage.
func (m *Machine) SetText(st State, key, text string) (State, error) {
	if st.Phase == Submitted {
		return st, ErrSubmitted
	}
	step, f, err := m.field(st, key)
	if err != nil {
		return st, err
	}
	if f.Derived {
		return st, &FieldError{Key: key, Reason: "computed field"}
	}
	switch f.Kind {
	case schema.FreeText, schema.Numeric, schema.Date:
	default:
		return st, &FieldError{Key: key, Reason: "not a text field"}
	}

	st = st.clone()
	st.Answers[key] = Value{Text: text}
	st.LastValidation = st.LastValidation.Clear(key)

	if sg := step.Scores; sg != nil && (key == sg.Marks || key == sg.Total) {
		if p, ok := derive.Percentage(st.Answers.Text(sg.Marks), st.Answers.Text(sg.Total)); ok {
			st.Answers[sg.Percentage] = Value{Text: p}
		} else {
			delete(st.Answers, sg.Percentage)
		}
		st.LastValidation = st.LastValidation.Clear(sg.Percentage)
	}
	return st, nil
}

// SetBool edits a boolean field.
func (m *Machine) SetBool(st State, key string, v bool) (State, error) {
	if st.Phase == Submitted {
		return st, ErrSubmitted
	}
	_, f, err := m.field(st, key)
	if err != nil {
		return st, err
	}
	if f.Kind != schema.Boolean {
		return st, &FieldError{Key: key, Reason: "not a boolean field"}
	}
	st = st.clone()
	st.Answers[key] = Value{Bool: v}
	return st, nil
}

// AddScore commits the pending exam score of the current step and clears
// its input fields.
func (m *Machine) AddScore(st State) (State, error) {
	if st.Phase == Submitted {
		return st, ErrSubmitted
	}
	step, err := m.reg.Step(st.Step)
	if err != nil {
		return st, err
	}
	sg := step.Scores
	if sg == nil {
		return st, &FieldError{Key: step.Name, Reason: "step has no exam scores"}
	}
	name := st.Answers.Text(sg.Name)
	marks := st.Answers.Text(sg.Marks)
	total := st.Answers.Text(sg.Total)
	pct, ok := derive.Percentage(marks, total)
	if !ok || !validate.PendingScoreComplete(*sg, st.Answers) {
		return st, ErrIncompleteScore
	}

	st = st.clone()
	st.Scores = append(st.Scores, ExamScore{
		ID:         m.newID(),
		Name:       name,
		Marks:      marks,
		Total:      total,
		Percentage: pct,
	})
	for _, k := range []string{sg.Name, sg.Marks, sg.Total, sg.Percentage} {
		delete(st.Answers, k)
	}
	st.LastValidation = st.LastValidation.Clear(sg.Name)
	return st, nil
}

// RemoveScore drops the committed exam score with the given id.
func (m *Machine) RemoveScore(st State, id string) State {
	if st.Phase == Submitted {
		return st
	}
	st = st.clone()
	kept := st.Scores[:0]
	for _, s := range st.Scores {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	st.Scores = kept
	return st
}

// Progress returns the share of steps behind the run, in percent.
func (m *Machine) Progress(st State) float64 {
	if st.Phase == Submitted {
		return 100
	}
	return float64(st.Step) / float64(m.reg.Len()) * 100
}

func (m *Machine) field(st State, key string) (schema.Step, schema.Field, error) {
	step, err := m.reg.Step(st.Step)
	if err != nil {
		return schema.Step{}, schema.Field{}, err
	}
	f, ok := step.Field(key)
	if !ok {
		return step, schema.Field{}, &FieldError{Key: key, Reason: "not on step " + step.Name}
	}
	return step, f, nil
}

// persist writes the step's answers to the session store. Failures are
// logged and never block navigation.
func (m *Machine) persist(ctx context.Context, st State, step schema.Step, done bool) {
	if m.store == nil {
		return
	}
	blob, _, err := m.store.Load(ctx)
	if err != nil {
		m.log.Warn("Session load failed", zap.Error(err))
	}
	if step.Persist {
		if blob.Saved == nil {
			blob.Saved = map[string]map[string]string{}
		}
		saved := map[string]string{}
		for _, f := range step.Fields {
			if v, ok := st.Answers[f.Key]; ok && v.Text != "" {
				saved[f.Key] = v.Text
			}
		}
		blob.Saved[step.Name] = saved
	}
	if done {
		blob.Onboarded = true
	}
	blob.UpdatedAt = m.now()
	if err := m.store.Save(ctx, blob); err != nil {
		m.log.Warn("Session save failed", zap.String("step", step.Name), zap.Error(err))
	}
}

func scoreCount(step schema.Step, st State) int {
	if step.Scores == nil {
		return 0
	}
	return len(st.Scores)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
