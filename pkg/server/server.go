// Package server hosts onboarding wizard runs behind a JSON HTTP API so a
// thin client can drive them.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/zdunecki/onboarding/pkg/schema"
	"github.com/zdunecki/onboarding/pkg/session"
	"github.com/zdunecki/onboarding/pkg/wizard"
)

// Options configure a Server.
type Options struct {
	Registry *schema.Registry
	// CatalogDir is watched for changes when Watch is set.
	CatalogDir string
	Watch      bool
	// NewAdapter builds the submission adapter of a run from the token its
	// client presented. Nil keeps submissions in process.
	NewAdapter func(token string) wizard.Adapter
	// SessionTTL drops runs idle for longer. Zero keeps them until deleted.
	SessionTTL time.Duration
	// KeyBits sizes the token encryption key; 2048 when zero.
	KeyBits int
	Logger  *zap.Logger
}

// Server is the onboarding HTTP API.
type Server struct {
	opts     Options
	reg      atomic.Pointer[schema.Registry]
	sessions *sessionTable
	keys     keyring
	log      *zap.Logger
}

// New creates a Server over opts.Registry.
func New(opts Options) (*Server, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("server: registry is required")
	}
	if opts.KeyBits == 0 {
		opts.KeyBits = 2048
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{opts: opts, sessions: newSessionTable(), log: log}
	s.reg.Store(opts.Registry)
	if err := s.keys.init(opts.KeyBits); err != nil {
		return nil, fmt.Errorf("init secure keypair: %w", err)
	}
	return s, nil
}

// Registry returns the registry new runs start with.
func (s *Server) Registry() *schema.Registry { return s.reg.Load() }

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/steps", s.handleSteps)
	mux.HandleFunc("GET /api/options", s.handleOptions)
	mux.HandleFunc("GET /api/crypto/public-key", s.handlePublicKey)

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.session(func(h *hosted, r *http.Request) error { return nil }))
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/answers", s.session(s.answer))
	mux.HandleFunc("POST /api/sessions/{id}/select", s.session(s.selectOption))
	mux.HandleFunc("POST /api/sessions/{id}/toggle", s.session(s.toggle))
	mux.HandleFunc("POST /api/sessions/{id}/next", s.session(s.next))
	mux.HandleFunc("POST /api/sessions/{id}/back", s.session(func(h *hosted, r *http.Request) error {
		h.st = h.machine.Back(h.st)
		return nil
	}))
	mux.HandleFunc("POST /api/sessions/{id}/skip", s.session(func(h *hosted, r *http.Request) error {
		st, err := h.machine.TrySkip(h.st)
		h.st = st
		return err
	}))
	mux.HandleFunc("POST /api/sessions/{id}/scores", s.session(func(h *hosted, r *http.Request) error {
		st, err := h.machine.AddScore(h.st)
		h.st = st
		return err
	}))
	mux.HandleFunc("DELETE /api/sessions/{id}/scores/{scoreID}", s.session(s.removeScore))
	return mux
}

// Run serves the API on port until ctx is done.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.opts.Watch && s.opts.CatalogDir != "" {
		go func() {
			if err := watchCatalog(ctx, s.opts.CatalogDir, s.log, s.reg.Store); err != nil {
				s.log.Warn("Catalog watch stopped", zap.Error(err))
			}
		}()
	}
	if s.opts.SessionTTL > 0 {
		go s.expireLoop(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting onboarding API", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) expireLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.sessions.expire(now.Add(-s.opts.SessionTTL)); n > 0 {
				s.log.Info("Expired idle sessions", zap.Int("count", n))
			}
		}
	}
}

func (s *Server) handleSteps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"steps": s.Registry().Steps()})
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := q.Get("field")
	if key == "" {
		writeError(w, http.StatusBadRequest, errors.New("field is required"))
		return
	}
	f, step, ok := s.Registry().Field(key)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown field: %s", key))
		return
	}
	if !f.Kind.IsSelect() {
		writeError(w, http.StatusBadRequest, fmt.Errorf("field %s has no options", key))
		return
	}
	options := schema.FilterOptions(step.OfferedOptions(f, q["parent"]), q.Get("q"))
	writeJSON(w, http.StatusOK, map[string]any{
		"field":   key,
		"options": options,
	})
}

func (s *Server) handlePublicKey(w http.ResponseWriter, r *http.Request) {
	keyID, spkiB64, err := s.keys.publicKeySPKIB64()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alg":     "RSA-OAEP-256",
		"keyId":   keyID,
		"spkiB64": spkiB64,
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token" secure:"rsa_oaep_b64" secure_key:"KeyID"`
		KeyID string `json:"keyId"`
		// Plain is set when the client sends an unencrypted token.
		Plain bool `json:"plain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !req.Plain {
		if err := s.keys.decryptFields(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	opts := []wizard.Option{
		wizard.WithSessionStore(session.NewMemory()),
		wizard.WithLogger(s.log),
	}
	if s.opts.NewAdapter != nil {
		opts = append(opts, wizard.WithAdapter(s.opts.NewAdapter(req.Token)))
	}
	machine := wizard.New(s.Registry(), opts...)
	st, err := machine.Start(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	h := s.sessions.add(machine, st)
	s.log.Info("Session started", zap.String("session", h.id), zap.Int("active", s.sessions.len()))

	h.mu.Lock()
	defer h.mu.Unlock()
	writeJSON(w, http.StatusCreated, h.view())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.remove(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown session: %s", r.PathValue("id")))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// session wraps an operation on one hosted run: it resolves the run, holds
// its lock, folds finished submissions in and answers with the run's view.
func (s *Server) session(op func(h *hosted, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, err := s.sessions.get(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}

		h.mu.Lock()
		defer h.mu.Unlock()
		h.touched = time.Now()
		h.settle()
		if err := op(h, r); err != nil {
			s.log.Debug("Session operation rejected", zap.String("session", h.id), zap.Error(err))
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, h.view())
		h.st = wizard.DismissNotice(h.st)
	}
}

type fieldRequest struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
	Bool  *bool   `json:"bool"`
}

func decodeField(r *http.Request) (fieldRequest, error) {
	var req fieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, &wizard.FieldError{Key: "body", Reason: err.Error()}
	}
	if req.Key == "" {
		return req, &wizard.FieldError{Key: "key", Reason: "is required"}
	}
	return req, nil
}

func (s *Server) answer(h *hosted, r *http.Request) error {
	req, err := decodeField(r)
	if err != nil {
		return err
	}
	var st wizard.State
	switch {
	case req.Bool != nil:
		st, err = h.machine.SetBool(h.st, req.Key, *req.Bool)
	case req.Value != nil:
		st, err = h.machine.SetText(h.st, req.Key, *req.Value)
	default:
		return &wizard.FieldError{Key: req.Key, Reason: "value or bool is required"}
	}
	if err != nil {
		return err
	}
	h.st = st
	return nil
}

func (s *Server) selectOption(h *hosted, r *http.Request) error {
	req, err := decodeField(r)
	if err != nil {
		return err
	}
	if req.Value == nil {
		return &wizard.FieldError{Key: req.Key, Reason: "value is required"}
	}
	st, err := h.machine.Select(h.st, req.Key, *req.Value)
	if err != nil {
		return err
	}
	h.st = st
	return nil
}

func (s *Server) toggle(h *hosted, r *http.Request) error {
	req, err := decodeField(r)
	if err != nil {
		return err
	}
	st, err := h.machine.ToggleSelector(h.st, req.Key)
	if err != nil {
		return err
	}
	h.st = st
	return nil
}

func (s *Server) next(h *hosted, r *http.Request) error {
	st, sub, err := h.machine.Next(r.Context(), h.st)
	if err != nil {
		return err
	}
	h.st = st
	if sub != nil {
		h.subs = append(h.subs, sub)
	}
	return nil
}

func (s *Server) removeScore(h *hosted, r *http.Request) error {
	id := r.PathValue("scoreID")
	before := len(h.st.Scores)
	st := h.machine.RemoveScore(h.st, id)
	if len(st.Scores) == before {
		return errUnknownScore
	}
	h.st = st
	return nil
}

var errUnknownScore = errors.New("unknown exam score")

// sessionView is the JSON rendering of a hosted run.
type sessionView struct {
	ID           string             `json:"id"`
	Step         int                `json:"step"`
	StepName     string             `json:"step_name"`
	Phase        wizard.Phase       `json:"phase"`
	Progress     float64            `json:"progress"`
	Skippable    bool               `json:"skippable"`
	Answers      wizard.Answers     `json:"answers"`
	OpenSelector string             `json:"open_selector,omitempty"`
	Errors       map[string]string  `json:"errors,omitempty"`
	Scores       []wizard.ExamScore `json:"scores,omitempty"`
	Notice       string             `json:"notice,omitempty"`
	Pending      int                `json:"pending_submissions,omitempty"`
}

// view renders the run. Caller holds h.mu.
func (h *hosted) view() sessionView {
	v := sessionView{
		ID:           h.id,
		Step:         h.st.Step,
		Phase:        h.st.Phase,
		Progress:     h.machine.Progress(h.st),
		Skippable:    h.machine.CanSkip(h.st),
		Answers:      h.st.Answers,
		OpenSelector: h.st.OpenSelector,
		Scores:       h.st.Scores,
		Notice:       h.st.Notice,
		Pending:      len(h.subs),
	}
	if step, err := h.machine.Current(h.st); err == nil {
		v.StepName = step.Name
	}
	for _, fe := range h.st.LastValidation.Errors() {
		if v.Errors == nil {
			v.Errors = map[string]string{}
		}
		v.Errors[fe.Key] = fe.Message
	}
	return v
}

func statusFor(err error) int {
	var fe *wizard.FieldError
	switch {
	case errors.As(err, &fe):
		return http.StatusBadRequest
	case errors.Is(err, wizard.ErrSubmitted), errors.Is(err, wizard.ErrNotSkippable):
		return http.StatusConflict
	case errors.Is(err, wizard.ErrIncompleteScore):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errUnknownScore):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
