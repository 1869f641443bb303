// internal/notification/preferences.go
package notification

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type PreferencesStore interface {
	// GetPreferences returns nil, nil when the user has no row.
	GetPreferences(ctx context.Context, userID string) (*Preferences, error)
	UpsertPreferences(ctx context.Context, userID string, patch PreferencesPatch) (*Preferences, error)
}

type UserDirectory interface {
	// GetUserEmail returns nil, nil when the user does not exist.
	GetUserEmail(ctx context.Context, userID string) (*string, error)
}

// ResolvedPreferences merges the stored preferences with the user's address.
type ResolvedPreferences struct {
	EmailEnabled bool      `json:"email_enabled"`
	PushEnabled  bool      `json:"push_enabled"`
	SMSEnabled   bool      `json:"sms_enabled"`
	Frequency    Frequency `json:"frequency"`
	EmailAddress *string   `json:"email_address"`
}

// Allows reports whether ch may be used. Email also needs a known address.
func (p *ResolvedPreferences) Allows(ch Channel) bool {
	switch ch {
	case ChannelInApp:
		return true
	case ChannelEmail:
		return p.EmailEnabled && p.EmailAddress != nil && *p.EmailAddress != ""
	case ChannelPush:
		return p.PushEnabled
	case ChannelSMS:
		return p.SMSEnabled
	default:
		return false
	}
}

type PreferenceResolver struct {
	prefs PreferencesStore
	users UserDirectory
}

func NewPreferenceResolver(prefs PreferencesStore, users UserDirectory) *PreferenceResolver {
	return &PreferenceResolver{prefs: prefs, users: users}
}

// Resolve runs the preferences and email lookups concurrently. A missing
// preferences row yields the defaults.
func (r *PreferenceResolver) Resolve(ctx context.Context, userID string) (*ResolvedPreferences, error) {
	var (
		stored *Preferences
		email  *string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := r.prefs.GetPreferences(gctx, userID)
		stored = p
		return err
	})
	g.Go(func() error {
		e, err := r.users.GetUserEmail(gctx, userID)
		email = e
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p := DefaultPreferences(userID)
	if stored != nil {
		p = *stored
	}
	return &ResolvedPreferences{
		EmailEnabled: p.EmailEnabled,
		PushEnabled:  p.PushEnabled,
		SMSEnabled:   false,
		Frequency:    p.Frequency,
		EmailAddress: email,
	}, nil
}
