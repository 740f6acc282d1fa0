package notifications

import (
	"fmt"
	"time"
)

// Preferences holds a user's delivery configuration. At most one record
// exists per user; absence of a record means DefaultPreferences applies.
type Preferences struct {
	UserID       string        `json:"user_id" db:"user_id"`
	EmailEnabled bool          `json:"email_enabled" db:"email_enabled"`
	PushEnabled  bool          `json:"push_enabled" db:"push_enabled"`
	Kinds        map[Kind]bool `json:"kinds" db:"-"` // per-kind opt-out; a kind mapped to false is suppressed entirely

	// Quiet hours are local-time-of-day markers in "HH:MM" 24-hour format.
	// Both empty means no quiet hours. The window may wrap past midnight
	// (start > end). Interpreted against wall-clock time in Timezone.
	QuietHoursStart string `json:"quiet_hours_start,omitempty" db:"quiet_hours_start"`
	QuietHoursEnd   string `json:"quiet_hours_end,omitempty" db:"quiet_hours_end"`

	// Timezone is an IANA zone identifier, e.g. "Europe/Kyiv". Empty means UTC.
	Timezone string `json:"timezone,omitempty" db:"timezone"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultPreferences returns the baseline applied when a user has never
// written preferences: every channel and kind enabled, no quiet hours, UTC.
func DefaultPreferences(userID string) Preferences {
	kinds := make(map[Kind]bool, len(Kinds()))
	for _, k := range Kinds() {
		kinds[k] = true
	}
	return Preferences{
		UserID:       userID,
		EmailEnabled: true,
		PushEnabled:  true,
		Kinds:        kinds,
	}
}

// KindEnabled reports whether the given kind is enabled. Kinds missing from
// the map default to enabled so newly added kinds are delivered until the
// user opts out.
func (p Preferences) KindEnabled(k Kind) bool {
	if p.Kinds == nil {
		return true
	}
	enabled, ok := p.Kinds[k]
	if !ok {
		return true
	}
	return enabled
}

// EmailAllowed reports whether an external email dispatcher may send for the
// given kind. The core itself never dispatches email.
func (p Preferences) EmailAllowed(k Kind) bool {
	return p.EmailEnabled && p.KindEnabled(k)
}

// PushAllowed reports whether an external push dispatcher may send for the
// given kind. The core itself never dispatches push.
func (p Preferences) PushAllowed(k Kind) bool {
	return p.PushEnabled && p.KindEnabled(k)
}

// HasQuietHours reports whether a quiet-hours window is configured.
func (p Preferences) HasQuietHours() bool {
	return p.QuietHoursStart != "" && p.QuietHoursEnd != ""
}

// Location resolves the preference timezone, falling back to UTC when unset.
// An unresolvable zone is reported so callers can decide between failing and
// degrading to UTC.
func (p Preferences) Location() (*time.Location, error) {
	if p.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, p.Timezone)
	}
	return loc, nil
}

// Validate checks quiet-hours markers and the timezone.
func (p Preferences) Validate() error {
	if p.UserID == "" {
		return ErrEmptyUserID
	}
	if (p.QuietHoursStart == "") != (p.QuietHoursEnd == "") {
		return fmt.Errorf("%w: start and end must be set together", ErrInvalidQuietHours)
	}
	if p.HasQuietHours() {
		if _, err := parseClock(p.QuietHoursStart); err != nil {
			return err
		}
		if _, err := parseClock(p.QuietHoursEnd); err != nil {
			return err
		}
	}
	if _, err := p.Location(); err != nil {
		return err
	}
	for k := range p.Kinds {
		if !k.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownKind, k)
		}
	}
	return nil
}

// parseClock parses a "HH:MM" marker into minutes since midnight.
func parseClock(s string) (int, error) {
	// Byte-exact HH:MM; Sscanf is too lenient here, it would accept trailing
	// garbage like "22:0x".
	if len(s) != 5 || s[2] != ':' ||
		!isDigit(s[0]) || !isDigit(s[1]) || !isDigit(s[3]) || !isDigit(s[4]) {
		return 0, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidQuietHours, s)
	}
	hh := int(s[0]-'0')*10 + int(s[1]-'0')
	mm := int(s[3]-'0')*10 + int(s[4]-'0')
	if hh > 23 || mm > 59 {
		return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidQuietHours, s)
	}
	return hh*60 + mm, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// PreferencesUpdate is a partial preferences change. Nil fields keep their
// previous values; quiet-hours markers can be cleared by setting them to the
// empty string.
type PreferencesUpdate struct {
	EmailEnabled    *bool          `json:"email_enabled,omitempty"`
	PushEnabled     *bool          `json:"push_enabled,omitempty"`
	Kinds           map[Kind]*bool `json:"kinds,omitempty"`
	QuietHoursStart *string        `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd   *string        `json:"quiet_hours_end,omitempty"`
	Timezone        *string        `json:"timezone,omitempty"`
}

// Apply merges the update into p, bumping UpdatedAt. Only non-nil fields are
// written so concurrent updates to disjoint fields do not clobber each other
// when the store serializes the read-modify-write per user.
func (u PreferencesUpdate) Apply(p *Preferences, now time.Time) {
	if u.EmailEnabled != nil {
		p.EmailEnabled = *u.EmailEnabled
	}
	if u.PushEnabled != nil {
		p.PushEnabled = *u.PushEnabled
	}
	if len(u.Kinds) > 0 {
		if p.Kinds == nil {
			p.Kinds = make(map[Kind]bool, len(u.Kinds))
		}
		for k, v := range u.Kinds {
			if v != nil {
				p.Kinds[k] = *v
			}
		}
	}
	if u.QuietHoursStart != nil {
		p.QuietHoursStart = *u.QuietHoursStart
	}
	if u.QuietHoursEnd != nil {
		p.QuietHoursEnd = *u.QuietHoursEnd
	}
	if u.Timezone != nil {
		p.Timezone = *u.Timezone
	}
	p.UpdatedAt = now
}
