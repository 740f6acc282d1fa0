package notifications

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }

func TestDefaultPreferences(t *testing.T) {
	p := DefaultPreferences("user-1")

	assert.Equal(t, "user-1", p.UserID)
	assert.True(t, p.EmailEnabled)
	assert.True(t, p.PushEnabled)
	assert.False(t, p.HasQuietHours())
	for _, k := range Kinds() {
		assert.True(t, p.KindEnabled(k))
	}

	loc, err := p.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestPreferences_KindEnabled(t *testing.T) {
	p := Preferences{UserID: "user-1"}
	assert.True(t, p.KindEnabled(KindReminder), "nil map defaults to enabled")

	p.Kinds = map[Kind]bool{KindReminder: false}
	assert.False(t, p.KindEnabled(KindReminder))
	assert.True(t, p.KindEnabled(KindSystem), "unlisted kinds default to enabled")
}

func TestPreferences_ChannelHelpers(t *testing.T) {
	p := DefaultPreferences("user-1")
	assert.True(t, p.EmailAllowed(KindReminder))
	assert.True(t, p.PushAllowed(KindReminder))

	p.EmailEnabled = false
	assert.False(t, p.EmailAllowed(KindReminder))
	assert.True(t, p.PushAllowed(KindReminder))

	p.Kinds[KindReminder] = false
	assert.False(t, p.PushAllowed(KindReminder), "kind opt-out gates every channel")
}

func TestPreferences_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Preferences)
		wantErr error
	}{
		{name: "defaults are valid", mutate: func(p *Preferences) {}},
		{name: "valid quiet hours", mutate: func(p *Preferences) {
			p.QuietHoursStart, p.QuietHoursEnd = "22:00", "06:00"
		}},
		{name: "start without end", mutate: func(p *Preferences) {
			p.QuietHoursStart = "22:00"
		}, wantErr: ErrInvalidQuietHours},
		{name: "malformed marker", mutate: func(p *Preferences) {
			p.QuietHoursStart, p.QuietHoursEnd = "9pm", "06:00"
		}, wantErr: ErrInvalidQuietHours},
		{name: "out of range marker", mutate: func(p *Preferences) {
			p.QuietHoursStart, p.QuietHoursEnd = "25:00", "06:00"
		}, wantErr: ErrInvalidQuietHours},
		{name: "trailing garbage in marker", mutate: func(p *Preferences) {
			p.QuietHoursStart, p.QuietHoursEnd = "22:0x", "06:00"
		}, wantErr: ErrInvalidQuietHours},
		{name: "signed marker", mutate: func(p *Preferences) {
			p.QuietHoursStart, p.QuietHoursEnd = "+2:30", "06:00"
		}, wantErr: ErrInvalidQuietHours},
		{name: "space padded marker", mutate: func(p *Preferences) {
			p.QuietHoursStart, p.QuietHoursEnd = " 2:30", "06:00"
		}, wantErr: ErrInvalidQuietHours},
		{name: "bad timezone", mutate: func(p *Preferences) {
			p.Timezone = "Nowhere/Impossible"
		}, wantErr: ErrInvalidTimezone},
		{name: "valid timezone", mutate: func(p *Preferences) {
			p.Timezone = "Europe/Berlin"
		}},
		{name: "unknown kind key", mutate: func(p *Preferences) {
			p.Kinds["spam"] = true
		}, wantErr: ErrUnknownKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPreferences("user-1")
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestPreferencesUpdate_Apply(t *testing.T) {
	p := DefaultPreferences("user-1")
	created := time.Now().Add(-time.Hour)
	p.CreatedAt = created
	now := time.Now()

	update := PreferencesUpdate{
		EmailEnabled:    boolPtr(false),
		Kinds:           map[Kind]*bool{KindReminder: boolPtr(false)},
		QuietHoursStart: strPtr("22:00"),
		QuietHoursEnd:   strPtr("06:00"),
		Timezone:        strPtr("Europe/Kyiv"),
	}
	update.Apply(&p, now)

	assert.False(t, p.EmailEnabled)
	assert.True(t, p.PushEnabled, "omitted fields keep prior values")
	assert.False(t, p.Kinds[KindReminder])
	assert.True(t, p.Kinds[KindSystem])
	assert.Equal(t, "22:00", p.QuietHoursStart)
	assert.Equal(t, "Europe/Kyiv", p.Timezone)
	assert.Equal(t, created, p.CreatedAt)
	assert.Equal(t, now, p.UpdatedAt)

	// Clearing quiet hours with empty strings.
	reset := PreferencesUpdate{QuietHoursStart: strPtr(""), QuietHoursEnd: strPtr("")}
	reset.Apply(&p, now.Add(time.Minute))
	assert.False(t, p.HasQuietHours())
}

func TestMemoryPreferenceStorage_GetAbsent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPreferenceStorage()

	_, err := s.Get(ctx, "user-1")
	assert.ErrorIs(t, err, ErrPreferencesNotFound)

	// A read never creates the record.
	_, err = s.Get(ctx, "user-1")
	assert.ErrorIs(t, err, ErrPreferencesNotFound)

	_, err = s.Get(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyUserID)
}

func TestMemoryPreferenceStorage_UpsertCreatesFromDefaults(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPreferenceStorage()

	got, err := s.Upsert(ctx, "user-1", PreferencesUpdate{PushEnabled: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, got.PushEnabled)
	assert.True(t, got.EmailEnabled, "untouched fields come from the default baseline")
	assert.False(t, got.CreatedAt.IsZero())

	stored, err := s.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, stored.PushEnabled)
}

func TestMemoryPreferenceStorage_UpsertMergesFields(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPreferenceStorage()

	_, err := s.Upsert(ctx, "user-1", PreferencesUpdate{EmailEnabled: boolPtr(false)})
	require.NoError(t, err)

	_, err = s.Upsert(ctx, "user-1", PreferencesUpdate{
		QuietHoursStart: strPtr("23:00"),
		QuietHoursEnd:   strPtr("07:00"),
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, got.EmailEnabled, "earlier update survives later disjoint update")
	assert.Equal(t, "23:00", got.QuietHoursStart)
}

func TestMemoryPreferenceStorage_UpsertRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPreferenceStorage()

	_, err := s.Upsert(ctx, "user-1", PreferencesUpdate{QuietHoursStart: strPtr("22:00")})
	assert.ErrorIs(t, err, ErrInvalidQuietHours)

	// The failed update left nothing behind.
	_, err = s.Get(ctx, "user-1")
	assert.ErrorIs(t, err, ErrPreferencesNotFound)
}

func TestMemoryPreferenceStorage_ConcurrentDisjointUpserts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPreferenceStorage()

	var wg sync.WaitGroup
	updates := []PreferencesUpdate{
		{EmailEnabled: boolPtr(false)},
		{PushEnabled: boolPtr(false)},
		{Timezone: strPtr("Europe/London")},
		{Kinds: map[Kind]*bool{KindProgress: boolPtr(false)}},
	}
	for _, u := range updates {
		wg.Add(1)
		go func(u PreferencesUpdate) {
			defer wg.Done()
			_, err := s.Upsert(ctx, "user-1", u)
			assert.NoError(t, err)
		}(u)
	}
	wg.Wait()

	got, err := s.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, got.EmailEnabled)
	assert.False(t, got.PushEnabled)
	assert.Equal(t, "Europe/London", got.Timezone)
	assert.False(t, got.Kinds[KindProgress])
}

func TestMemoryPreferenceStorage_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPreferenceStorage()

	_, err := s.Upsert(ctx, "user-1", PreferencesUpdate{})
	require.NoError(t, err)

	got, err := s.Get(ctx, "user-1")
	require.NoError(t, err)
	got.Kinds[KindReminder] = false

	fresh, err := s.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, fresh.Kinds[KindReminder], fmt.Sprintf("mutating a returned copy must not leak: %v", fresh.Kinds))
}
