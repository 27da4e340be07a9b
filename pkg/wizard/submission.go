package wizard

import (
	"context"

	"go.uber.org/zap"
)

// Payload is what the wizard hands to the submission adapter.
type Payload struct {
	Step    string                 `json:"step"`
	Final   bool                   `json:"final"`
	Answers map[string]interface{} `json:"answers"`
	Scores  []ExamScore            `json:"scores,omitempty"`
}

// Adapter transmits completed answers. Retries, if any, are its own business.
type Adapter interface {
	Submit(ctx context.Context, p Payload) error
}

// AdapterFunc adapts a function to Adapter.
type AdapterFunc func(ctx context.Context, p Payload) error

func (f AdapterFunc) Submit(ctx context.Context, p Payload) error { return f(ctx, p) }

// Submission is the pending outcome of one adapter call. The wizard state has
// already moved on when it is returned; the outcome is reported, never rolled back.
type Submission struct {
	Step  string
	Final bool
	done  chan struct{}
	err   error
}

// Done is closed once the adapter returned.
func (s *Submission) Done() <-chan struct{} { return s.done }

// Wait blocks until the adapter returned and reports its outcome as a
// *SubmissionError on failure.
func (s *Submission) Wait() error {
	<-s.done
	return s.err
}

// Err returns the outcome without blocking; nil while still pending.
func (s *Submission) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (m *Machine) dispatch(ctx context.Context, p Payload) *Submission {
	sub := &Submission{Step: p.Step, Final: p.Final, done: make(chan struct{})}
	if m.adapter == nil {
		close(sub.done)
		return sub
	}
	// Navigation must not cancel an in-flight submission.
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer close(sub.done)
		if err := m.adapter.Submit(ctx, p); err != nil {
			sub.err = &SubmissionError{Step: p.Step, Err: err}
			m.log.Warn("Submission failed", zap.String("step", p.Step), zap.Error(err))
			return
		}
		m.log.Info("Submission delivered", zap.String("step", p.Step), zap.Bool("final", p.Final))
	}()
	return sub
}

// Settle records the outcome of a finished submission as a one-shot notice on
// st. Pending submissions leave st unchanged.
func Settle(st State, sub *Submission) State {
	if sub == nil {
		return st
	}
	select {
	case <-sub.done:
	default:
		return st
	}
	st = st.clone()
	switch {
	case sub.err != nil:
		st.Notice = "Error: " + sub.err.Error()
	case sub.Final:
		st.Notice = "Onboarding submitted"
	}
	return st
}

// DismissNotice clears the one-shot notice.
func DismissNotice(st State) State {
	if st.Notice == "" {
		return st
	}
	st = st.clone()
	st.Notice = ""
	return st
}
