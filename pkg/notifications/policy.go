package notifications

import (
	"time"
)

// Decision is the outcome of the delivery policy for a candidate notification.
type Decision int

const (
	// DecisionDeliver means the notification should be pushed to live
	// subscribers immediately after it is stored.
	DecisionDeliver Decision = iota
	// DecisionSuppress means real-time push is skipped. The record is still
	// persisted and counts as unread; quiet hours gate disturbance, not
	// visibility, and a suppressed notification is never re-pushed later.
	DecisionSuppress
)

func (d Decision) String() string {
	if d == DecisionSuppress {
		return "suppress"
	}
	return "deliver"
}

// SuppressReason explains a DecisionSuppress outcome, mostly for logging.
type SuppressReason string

const (
	SuppressReasonNone         SuppressReason = ""
	SuppressReasonKindDisabled SuppressReason = "kind_disabled"
	SuppressReasonQuietHours   SuppressReason = "quiet_hours"
)

// Decide evaluates whether a candidate notification should be pushed in real
// time. It is a pure function of its inputs and has no side effects.
//
// Rules, in order:
//  1. A kind the user opted out of is suppressed unconditionally; not even
//     urgent priority overrides an explicit opt-out.
//  2. Inside the user's quiet-hours window (interpreted in their timezone,
//     wrapping past midnight when start > end) everything but urgent is
//     suppressed. Urgent bypasses quiet hours.
//  3. Everything else is delivered.
//
// A timezone that fails to load degrades to UTC rather than blocking
// delivery on user misconfiguration.
func Decide(kind Kind, priority Priority, prefs Preferences, now time.Time) (Decision, SuppressReason) {
	if !prefs.KindEnabled(kind) {
		return DecisionSuppress, SuppressReasonKindDisabled
	}

	if prefs.HasQuietHours() && priority != PriorityUrgent {
		loc, err := prefs.Location()
		if err != nil {
			loc = time.UTC
		}
		if inQuietWindow(prefs.QuietHoursStart, prefs.QuietHoursEnd, now.In(loc)) {
			return DecisionSuppress, SuppressReasonQuietHours
		}
	}

	return DecisionDeliver, SuppressReasonNone
}

// inQuietWindow reports whether local falls inside [start, end). When the
// window wraps past midnight (start > end) it covers the evening of one day
// and the morning of the next.
func inQuietWindow(start, end string, local time.Time) bool {
	startMin, err := parseClock(start)
	if err != nil {
		return false
	}
	endMin, err := parseClock(end)
	if err != nil {
		return false
	}

	nowMin := local.Hour()*60 + local.Minute()
	if startMin <= endMin {
		return nowMin >= startMin && nowMin < endMin
	}
	return nowMin >= startMin || nowMin < endMin
}
