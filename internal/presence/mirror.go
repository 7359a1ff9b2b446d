package presence

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Mirror publishes presence changes to a store shared by every relay process.
type Mirror interface {
	PublishPresence(ctx context.Context, identity, handleID string) error
	ClearPresence(ctx context.Context, identity, handleID string) error
}

// Mirrored wraps a Registry and writes every change through to a Mirror.
// Mirror failures are logged; the local registry stays authoritative.
type Mirrored struct {
	Registry
	mirror  Mirror
	logger  zerolog.Logger
	timeout time.Duration
}

// NewMirrored wraps reg so that changes are published to mirror.
func NewMirrored(reg Registry, mirror Mirror, logger zerolog.Logger) *Mirrored {
	return &Mirrored{
		Registry: reg,
		mirror:   mirror,
		logger:   logger.With().Str("component", "presence_mirror").Logger(),
		timeout:  2 * time.Second,
	}
}

func (m *Mirrored) Set(identity string, h Handle) (Handle, bool) {
	prev, replaced := m.Registry.Set(identity, h)

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if err := m.mirror.PublishPresence(ctx, identity, h.HandleID()); err != nil {
		m.logger.Warn().Err(err).Str("user_id", identity).Msg("failed to publish presence")
	}

	return prev, replaced
}

func (m *Mirrored) Remove(identity string, expected Handle) bool {
	if !m.Registry.Remove(identity, expected) {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if err := m.mirror.ClearPresence(ctx, identity, expected.HandleID()); err != nil {
		m.logger.Warn().Err(err).Str("user_id", identity).Msg("failed to clear presence")
	}

	return true
}
