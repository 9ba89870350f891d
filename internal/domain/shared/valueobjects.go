// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID represents a unique user identifier (UUID format).
type UserID string

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValid checks if the user ID is a valid UUID.
func (u UserID) IsValid() bool {
	return uuidRegex.MatchString(string(u))
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// IsEmpty checks if the ID is empty.
func (u UserID) IsEmpty() bool {
	return u == ""
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.ToLower(strings.TrimSpace(id)))
	if !uid.IsValid() {
		return "", NewDomainError("shared", "NewUserID", ErrInvalidID, "invalid user ID format")
	}
	return uid, nil
}

// TemplateID represents a quest template identifier.
// Format: category-name (e.g. "steps-daily", "sleep-weekly-02").
type TemplateID string

var templateIDRegex = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)

// IsValid checks if the template ID format is valid.
func (t TemplateID) IsValid() bool {
	s := string(t)
	return len(s) >= 3 && len(s) <= 50 && templateIDRegex.MatchString(s)
}

// String returns the string representation.
func (t TemplateID) String() string {
	return string(t)
}

// Category extracts the category prefix from the template ID.
func (t TemplateID) Category() string {
	parts := strings.Split(string(t), "-")
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}

// NewTemplateID creates a new TemplateID with validation.
func NewTemplateID(id string) (TemplateID, error) {
	tid := TemplateID(strings.ToLower(strings.TrimSpace(id)))
	if !tid.IsValid() {
		return "", NewDomainError("shared", "NewTemplateID", ErrInvalidID, "invalid template ID format")
	}
	return tid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// XP Value Object (Experience Points)
// ═══════════════════════════════════════════════════════════════════════════

// XP represents accumulated experience points. Always non-negative.
// int64 on purpose: totals are unbounded and must never pass through floats.
type XP int64

// MinXP is the lower bound for an XP total.
const MinXP XP = 0

// IsValid checks if the XP value is within valid range.
func (x XP) IsValid() bool {
	return x >= MinXP
}

// Int64 returns the underlying int64 value.
func (x XP) Int64() int64 {
	return int64(x)
}

// Add applies a signed delta and returns the result, floored at MinXP.
// The floor is the documented ledger behavior: removals beyond the current
// total clamp to zero rather than going negative.
func (x XP) Add(delta int64) XP {
	result := XP(int64(x) + delta)
	if result < MinXP {
		return MinXP
	}
	return result
}

// NewXP creates a new XP value with validation.
func NewXP(amount int64) (XP, error) {
	if amount < int64(MinXP) {
		return 0, NewDomainError("shared", "NewXP", ErrNegativeValue, "XP cannot be negative")
	}
	return XP(amount), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Level represents a user's progression level.
type Level int

// MinLevel is the lowest possible level. Zero XP maps to level 1.
const MinLevel Level = 1

// IsValid checks if the level is within valid range.
func (l Level) IsValid() bool {
	return l >= MinLevel
}

// Int returns the underlying int value.
func (l Level) Int() int {
	return int(l)
}

// Title returns a human-readable title for the level.
func (l Level) Title() string {
	switch {
	case l < 5:
		return "Novice"
	case l < 10:
		return "Apprentice"
	case l < 20:
		return "Adept"
	case l < 35:
		return "Veteran"
	case l < 50:
		return "Champion"
	default:
		return "Legend"
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Period Value Object
// ═══════════════════════════════════════════════════════════════════════════

// PeriodType distinguishes daily and weekly quest periods.
type PeriodType string

const (
	PeriodDaily  PeriodType = "daily"
	PeriodWeekly PeriodType = "weekly"
)

// IsValid checks if the period type is known.
func (p PeriodType) IsValid() bool {
	return p == PeriodDaily || p == PeriodWeekly
}

// Period identifies one quest period for one user: a local day or ISO week.
type Period struct {
	Type PeriodType

	// Key is the canonical period key: "2006-01-02" for daily,
	// "2006-W02" for weekly. Day boundaries are resolved in the user's
	// timezone by the clock collaborator, never here.
	Key string
}

// IsValid checks if the period is well-formed.
func (p Period) IsValid() bool {
	return p.Type.IsValid() && p.Key != ""
}

// String returns a "daily/2026-08-31" style representation.
func (p Period) String() string {
	return fmt.Sprintf("%s/%s", p.Type, p.Key)
}

// DailyPeriod builds a daily period from a resolved local day key.
func DailyPeriod(dayKey string) Period {
	return Period{Type: PeriodDaily, Key: dayKey}
}

// WeeklyPeriod builds a weekly period from a resolved ISO week key.
func WeeklyPeriod(weekKey string) Period {
	return Period{Type: PeriodWeekly, Key: weekKey}
}

// ═══════════════════════════════════════════════════════════════════════════
// TimeRange Value Object
// ═══════════════════════════════════════════════════════════════════════════

// TimeRange represents a time period.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// IsValid checks if the time range is valid.
func (t TimeRange) IsValid() bool {
	return !t.From.IsZero() && !t.To.IsZero() && !t.From.After(t.To)
}

// Duration returns the duration of the time range.
func (t TimeRange) Duration() time.Duration {
	return t.To.Sub(t.From)
}

// Contains checks if a time is within the range.
func (t TimeRange) Contains(tm time.Time) bool {
	return (tm.Equal(t.From) || tm.After(t.From)) && (tm.Equal(t.To) || tm.Before(t.To))
}

// NewTimeRange creates a new TimeRange with validation.
func NewTimeRange(from, to time.Time) (TimeRange, error) {
	tr := TimeRange{From: from, To: to}
	if !tr.IsValid() {
		return TimeRange{}, NewDomainError("shared", "NewTimeRange", ErrInvalidInput, "'from' must be before 'to'")
	}
	return tr, nil
}

// TrailingDays returns a TimeRange covering the last n days ending at now.
func TrailingDays(now time.Time, n int) TimeRange {
	return TimeRange{
		From: now.AddDate(0, 0, -n),
		To:   now,
	}
}
