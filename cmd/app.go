package cmd

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/zdunecki/onboarding/pkg/schema"
	"github.com/zdunecki/onboarding/pkg/session"
	"github.com/zdunecki/onboarding/pkg/submit"
	"github.com/zdunecki/onboarding/pkg/wizard"
)

// catalogPath is the configured catalog directory, falling back to a
// catalog/ directory found next to the working directory or the binary.
func catalogPath() string {
	if cfg.Catalog.Dir != "" {
		return cfg.Catalog.Dir
	}
	return schema.FindCatalogDir()
}

func loadRegistry() (*schema.Registry, error) {
	return schema.Load(catalogPath())
}

func openStore() (session.Store, error) {
	return session.Open(cfg.Session.Driver, cfg.Session.Path)
}

func closeStore(store session.Store) {
	if c, ok := store.(io.Closer); ok {
		_ = c.Close()
	}
}

// newAdapter builds the submission adapter for token. Without a backend URL
// answers stay local.
func newAdapter(log *zap.Logger, token string) wizard.Adapter {
	if cfg.API.URL == "" || cfg.API.Offline {
		return submit.Nop{Log: log}
	}
	a, err := submit.NewHTTP(cfg.API.URL, token, submit.Options{
		Timeout: cfg.API.Timeout,
		Retries: cfg.API.Retries,
		Logger:  log,
	})
	if err != nil {
		log.Warn("Falling back to offline submissions", zap.Error(err))
		return submit.Nop{Log: log}
	}
	return a
}

// sessionToken prefers the token stored in the session over the configured one.
func sessionToken(ctx context.Context, store session.Store) string {
	blob, ok, err := store.Load(ctx)
	if err == nil && ok && blob.Token != "" {
		return blob.Token
	}
	return cfg.API.Token
}

func newMachine(ctx context.Context, log *zap.Logger, store session.Store) (*wizard.Machine, error) {
	reg, err := loadRegistry()
	if err != nil {
		return nil, err
	}
	return wizard.New(reg,
		wizard.WithAdapter(newAdapter(log, sessionToken(ctx, store))),
		wizard.WithSessionStore(store),
		wizard.WithLogger(log),
	), nil
}
