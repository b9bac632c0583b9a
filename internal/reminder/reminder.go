// Package reminder holds the reminder entity and its persistence.
package reminder

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// Reminder is one scheduled notification.
type Reminder struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Message string `json:"message"` // may embed {{key}} placeholders

	Recipients   Recipients `json:"chatIds"`
	Schedule     string     `json:"when"`             // cron | ISO instant | P<N><D|M|Y>@<date>[T<HH:MM>]
	ConditionRef string     `json:"apiUrl,omitempty"` // internal path or http(s) URL
	Ring         bool       `json:"ring"`
	Active       bool       `json:"active"`

	TriggerCount int       `json:"count"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UnmarshalJSON also accepts the snake_case keys that reminders.json files
// from earlier releases were written with.
func (r *Reminder) UnmarshalJSON(data []byte) error {
	type plain Reminder
	if err := sonic.Unmarshal(data, (*plain)(r)); err != nil {
		return err
	}

	var old struct {
		Recipients   *Recipients `json:"chat_ids"`
		ConditionRef *string     `json:"api_url"`
		CreatedAt    *time.Time  `json:"created_at"`
	}
	if err := sonic.Unmarshal(data, &old); err != nil {
		return err
	}
	if r.Recipients == nil && old.Recipients != nil {
		r.Recipients = *old.Recipients
	}
	if r.ConditionRef == "" && old.ConditionRef != nil {
		r.ConditionRef = *old.ConditionRef
	}
	if r.CreatedAt.IsZero() && old.CreatedAt != nil {
		r.CreatedAt = *old.CreatedAt
	}
	return nil
}

// NewID returns a fresh reminder id.
func NewID() string {
	return uuid.NewString()
}

// Recipients is an ordered list of recipient addresses. It is persisted as a
// comma-joined string.
type Recipients []string

// EncodeRecipients joins recipients for storage, dropping blanks.
func EncodeRecipients(rs []string) string {
	return strings.Join(cleanRecipients(rs), ",")
}

// DecodeRecipients reads the stored form. A JSON array string is accepted as
// well, since older records were written that way.
func DecodeRecipients(s string) Recipients {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "[") {
		if rs, err := decodeArray([]byte(s)); err == nil {
			return rs
		}
	}
	return cleanRecipients(strings.Split(s, ","))
}

func (r Recipients) String() string {
	return EncodeRecipients(r)
}

// Clean trims every entry and drops blanks.
func (r Recipients) Clean() Recipients {
	return cleanRecipients(r)
}

// UnmarshalJSON accepts either an array of strings or numbers, or a single
// string in the stored form.
func (r *Recipients) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null":
		*r = nil
		return nil
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if err := sonic.UnmarshalString(trimmed, &s); err != nil {
			return fmt.Errorf("decode recipients: %w", err)
		}
		*r = DecodeRecipients(s)
		return nil
	default:
		rs, err := decodeArray(data)
		if err != nil {
			return fmt.Errorf("decode recipients: %w", err)
		}
		*r = rs
		return nil
	}
}

// decodeArray keeps numeric ids as written, so large chat ids survive.
func decodeArray(data []byte) (Recipients, error) {
	var raw []json.RawMessage
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s := strings.TrimSpace(string(item))
		if strings.HasPrefix(s, `"`) {
			if err := sonic.UnmarshalString(s, &s); err != nil {
				return nil, err
			}
		}
		out = append(out, s)
	}
	return cleanRecipients(out), nil
}

func cleanRecipients(rs []string) Recipients {
	out := make(Recipients, 0, len(rs))
	for _, r := range rs {
		if r = strings.TrimSpace(r); r != "" && r != "null" {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Name         *string     `json:"name,omitempty"`
	Message      *string     `json:"message,omitempty"`
	Recipients   *Recipients `json:"chatIds,omitempty"`
	Schedule     *string     `json:"when,omitempty"`
	ConditionRef *string     `json:"apiUrl,omitempty"`
	Ring         *bool       `json:"ring,omitempty"`
	Active       *bool       `json:"active,omitempty"`
	// TriggerCount lets an operator re-arm a fired one-shot.
	TriggerCount *int `json:"count,omitempty"`
}

func (p Patch) Empty() bool {
	return p.Name == nil && p.Message == nil && p.Recipients == nil && p.Schedule == nil &&
		p.ConditionRef == nil && p.Ring == nil && p.Active == nil && p.TriggerCount == nil
}

// Apply copies the set fields onto r.
func (p Patch) Apply(r *Reminder) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Message != nil {
		r.Message = *p.Message
	}
	if p.Recipients != nil {
		r.Recipients = cleanRecipients(*p.Recipients)
	}
	if p.Schedule != nil {
		r.Schedule = strings.TrimSpace(*p.Schedule)
	}
	if p.ConditionRef != nil {
		r.ConditionRef = strings.TrimSpace(*p.ConditionRef)
	}
	if p.Ring != nil {
		r.Ring = *p.Ring
	}
	if p.Active != nil {
		r.Active = *p.Active
	}
	if p.TriggerCount != nil && *p.TriggerCount >= 0 {
		r.TriggerCount = *p.TriggerCount
	}
}
