package submit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zdunecki/onboarding/pkg/wizard"
)

func TestHTTPPostsStepAnswers(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	h, err := NewHTTP(srv.URL+"/", "tok-123", Options{})
	require.NoError(t, err)

	err = h.Submit(context.Background(), wizard.Payload{
		Step:    "profile",
		Answers: map[string]interface{}{"fullName": "Asha Rao"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/api/user/profileDetails", gotPath)
	assert.Equal(t, "tok-123", gotAuth)
	assert.Equal(t, map[string]interface{}{"fullName": "Asha Rao"}, gotBody)
}

func TestHTTPFinalPayload(t *testing.T) {
	var gotPath string
	var got wizard.Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	h, err := NewHTTP(srv.URL, "", Options{})
	require.NoError(t, err)

	p := wizard.Payload{
		Step:    "preferences",
		Final:   true,
		Answers: map[string]interface{}{"eligibleCourses": []interface{}{"Science"}},
		Scores:  []wizard.ExamScore{{ID: "a", Name: "JEE", Marks: "45", Total: "90", Percentage: "50.00"}},
	}
	require.NoError(t, h.Submit(context.Background(), p))
	assert.Equal(t, "/api/user/onboarding", gotPath)
	assert.True(t, got.Final)
	assert.Equal(t, p.Scores, got.Scores)
}

func TestHTTPRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h, err := NewHTTP(srv.URL, "", Options{Retries: 2, RetryWait: time.Millisecond})
	require.NoError(t, err)

	require.NoError(t, h.Submit(context.Background(), wizard.Payload{Step: "profile"}))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPReportsBackendMessage(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"Profile Data Already added."}`))
	}))
	defer srv.Close()

	h, err := NewHTTP(srv.URL, "", Options{Retries: 3, RetryWait: time.Millisecond})
	require.NoError(t, err)

	err = h.Submit(context.Background(), wizard.Payload{Step: "profile"})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusConflict, se.Code)
	assert.Equal(t, "Profile Data Already added.", se.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "client errors are not retried")
}

func TestHTTPGivesUpAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	h, err := NewHTTP(srv.URL, "", Options{Retries: 1, RetryWait: time.Millisecond})
	require.NoError(t, err)

	err = h.Submit(context.Background(), wizard.Payload{Step: "education"})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestNewHTTPRequiresBaseURL(t *testing.T) {
	_, err := NewHTTP("", "tok", Options{})
	assert.Error(t, err)
}

func TestNopAcceptsEverything(t *testing.T) {
	assert.NoError(t, Nop{}.Submit(context.Background(), wizard.Payload{Step: "profile", Final: true}))
}
