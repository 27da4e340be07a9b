package wizard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmissionFailureStillAdvances(t *testing.T) {
	boom := errors.New("connection refused")
	m := newMachine(t, WithAdapter(&recordingAdapter{err: boom}))

	st := fillProfile(t, m, start(t, m))
	next, sub := mustNext(t, m, st)
	require.NotNil(t, sub)
	assert.Equal(t, 1, next.Step)

	err := sub.Wait()
	var se *SubmissionError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "profile", se.Step)
	assert.ErrorIs(t, err, boom)

	settled := Settle(next, sub)
	assert.Equal(t, "Error: submit profile: connection refused", settled.Notice)
	assert.Equal(t, 1, settled.Step)
	assert.Empty(t, next.Notice, "input state must not change")

	assert.Empty(t, DismissNotice(settled).Notice)
}

func TestSubmissionPayloadCarriesStepAnswers(t *testing.T) {
	adapter := &recordingAdapter{}
	m := newMachine(t, WithAdapter(adapter))

	st := fillProfile(t, m, start(t, m))
	_, sub := mustNext(t, m, st)
	require.NoError(t, sub.Wait())

	p := adapter.last()
	assert.Equal(t, "profile", p.Step)
	assert.False(t, p.Final)
	assert.Equal(t, map[string]interface{}{
		"fullName": "Asha Rao",
		"email":    "asha@example.com",
		"gender":   "female",
		"dob":      "2006-04-12",
		"location": "Chicago",
	}, p.Answers)
}

func TestSubmissionIgnoresCallerCancellation(t *testing.T) {
	release := make(chan struct{})
	var sawErr error
	m := newMachine(t, WithAdapter(AdapterFunc(func(ctx context.Context, p Payload) error {
		<-release
		sawErr = ctx.Err()
		return nil
	})))

	ctx, cancel := context.WithCancel(context.Background())
	st := fillProfile(t, m, start(t, m))
	_, sub, err := m.Next(ctx, st)
	require.NoError(t, err)
	cancel()

	assert.Nil(t, sub.Err(), "pending submission has no outcome yet")
	assert.Equal(t, st.Notice, Settle(st, sub).Notice)

	close(release)
	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("submission did not finish")
	}
	assert.NoError(t, sub.Err())
	assert.NoError(t, sawErr)
}

func TestSubmissionWithoutAdapterCompletes(t *testing.T) {
	m := newMachine(t)

	st := fillProfile(t, m, start(t, m))
	_, sub := mustNext(t, m, st)
	require.NotNil(t, sub)
	assert.NoError(t, sub.Wait())
	assert.Empty(t, Settle(st, sub).Notice)
	assert.Equal(t, st, Settle(st, nil))
}

func TestFinalSubmissionNotice(t *testing.T) {
	m := newMachine(t)
	st := start(t, m)
	for _, fill := range []func(*testing.T, *Machine, State) State{fillProfile, fillEducation, fillEligibility, fillPreferences} {
		st = fill(t, m, st)
		var sub *Submission
		st, sub = mustNext(t, m, st)
		if st.Phase == Submitted {
			require.NoError(t, sub.Wait())
			st = Settle(st, sub)
		}
	}
	assert.Equal(t, "Onboarding submitted", st.Notice)
}
