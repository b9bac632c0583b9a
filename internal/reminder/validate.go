package reminder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tgifai/teleworker/internal/schedule"
)

var ErrInvalid = errors.New("invalid reminder")

// RefChecker validates a condition ref without evaluating it.
type RefChecker func(ref string) error

// Validate checks the fields CRUD surfaces accept. The schedule must classify
// under m and a non-empty condition ref must pass checkRef.
func Validate(r Reminder, m *schedule.Matcher, checkRef RefChecker) error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalid)
	case strings.TrimSpace(r.Message) == "":
		return fmt.Errorf("%w: message is required", ErrInvalid)
	case len(r.Recipients) == 0:
		return fmt.Errorf("%w: at least one recipient is required", ErrInvalid)
	}

	if m == nil {
		m = schedule.NewMatcher()
	}
	if _, err := m.Parse(r.Schedule); err != nil {
		return fmt.Errorf("%w: schedule: %v", ErrInvalid, err)
	}
	if r.ConditionRef != "" && checkRef != nil {
		if err := checkRef(r.ConditionRef); err != nil {
			return fmt.Errorf("%w: condition: %v", ErrInvalid, err)
		}
	}
	return nil
}
