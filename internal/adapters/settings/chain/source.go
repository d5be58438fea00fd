// Package chain composes settings sources with fallback.
package chain

import (
	"context"
	"errors"
	"fmt"

	tomlsource "github.com/medpipe/pump-history-cli/internal/adapters/settings/tomlfile"
	"github.com/medpipe/pump-history-cli/internal/domain"
	"github.com/medpipe/pump-history-cli/internal/ports"
)

// Source tries a primary settings source and falls back only when the
// primary reports it has nothing. Any other primary failure surfaces
// unchanged; silently reconciling against fallback settings would hide a
// corrupt declared file.
type Source struct {
	primary  ports.SettingsSource
	fallback ports.SettingsSource
}

var _ ports.SettingsSource = (*Source)(nil)

var (
	errNilPrimarySource  = errors.New("primary settings source is nil")
	errNilFallbackSource = errors.New("fallback settings source is nil")
)

func NewSource(primary ports.SettingsSource, fallback ports.SettingsSource) *Source {
	source, err := NewSourceChecked(primary, fallback)
	if err != nil {
		panic(err)
	}

	return source
}

func NewSourceChecked(primary ports.SettingsSource, fallback ports.SettingsSource) (*Source, error) {
	if primary == nil {
		return nil, errNilPrimarySource
	}
	if fallback == nil {
		return nil, errNilFallbackSource
	}

	return &Source{primary: primary, fallback: fallback}, nil
}

// NewDeclaredFirstWithRepoFallback builds the usual CLI arrangement: a
// declared settings file takes precedence over the managed registry.
func NewDeclaredFirstWithRepoFallback(path string, repo ports.SettingsRepository) (*Source, error) {
	declared, err := tomlsource.NewSource(path)
	if err != nil {
		return nil, err
	}

	return NewSourceChecked(declared, NewRepositorySource(repo))
}

func (s *Source) Resolve(ctx context.Context) (domain.Settings, error) {
	settings, err := s.primary.Resolve(ctx)
	if err == nil {
		return settings, nil
	}
	if shouldSkipFallback(err) {
		return domain.Settings{}, err
	}

	fallbackSettings, fallbackErr := s.fallback.Resolve(ctx)
	if fallbackErr == nil {
		return fallbackSettings, nil
	}
	if errors.Is(fallbackErr, domain.ErrNoSettings) {
		return domain.Settings{}, domain.ErrNoSettings
	}

	return domain.Settings{}, fmt.Errorf("fallback settings source failed: %w", fallbackErr)
}

// Only an empty primary falls through. Context errors and real failures
// (unreadable file, bad TOML) stop the chain.
func shouldSkipFallback(err error) bool {
	return !errors.Is(err, domain.ErrNoSettings) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// RepositorySource adapts the managed settings repository to the source
// interface so it can terminate a chain.
type RepositorySource struct {
	repo ports.SettingsRepository
}

var _ ports.SettingsSource = (*RepositorySource)(nil)

func NewRepositorySource(repo ports.SettingsRepository) *RepositorySource {
	return &RepositorySource{repo: repo}
}

func (s *RepositorySource) Resolve(ctx context.Context) (domain.Settings, error) {
	return s.repo.Get(ctx)
}
