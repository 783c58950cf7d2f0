// Package services implements credential recovery: admin-issued reset
// codes, the secret-question recovery flow, the first-access flow, login
// verification with transparent rehashing, and the migration audit.
package services

import (
	"context"
	"crypto/rand"
	"io"

	"github.com/dmitrijs2005/credkeeper/internal/clockx"
	"github.com/dmitrijs2005/credkeeper/internal/cryptox"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/metrics"
	"github.com/dmitrijs2005/credkeeper/internal/server/events"
)

// Deps are the collaborators shared by every service. Only Hasher is
// required; the rest fall back to production defaults.
type Deps struct {
	Hasher  *cryptox.Hasher
	Policy  *PasswordPolicy
	Clock   clockx.Clock
	Random  io.Reader
	Events  events.Publisher
	Metrics *metrics.Metrics
	Logger  logging.Logger

	// WriteFastPathSecret keeps the clear-text login shortcut column in
	// sync on password changes. Compatibility only; off by default.
	WriteFastPathSecret bool
}

func (d Deps) withDefaults(module string) Deps {
	if d.Policy == nil {
		d.Policy = DefaultPasswordPolicy()
	}
	if d.Clock == nil {
		d.Clock = clockx.System{}
	}
	if d.Random == nil {
		d.Random = rand.Reader
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	d.Logger = d.Logger.With("module", module)
	return d
}

// publish is best-effort: a broker failure is logged and swallowed.
func (d Deps) publish(ctx context.Context, eventType string, attrs map[string]string) {
	e := events.New(eventType, d.Clock.Now(), attrs)
	if err := d.Events.Publish(ctx, e); err != nil {
		d.Logger.Warn(ctx, "event publish failed", "type", eventType, "error", err)
	}
}
