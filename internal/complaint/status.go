package complaint

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "complaintdesk/internal/errors"
)

// Status is the lifecycle state of a complaint. The string value is the
// exact form the service sends and accepts on the wire.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
	StatusRejected   Status = "Rejected"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusResolved, StatusRejected}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// Key returns a compact identifier for s, safe for metric labels and
// Telegram callback data.
func (s Status) Key() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in_progress"
	case StatusResolved:
		return "resolved"
	case StatusRejected:
		return "rejected"
	}
	return "unknown"
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus accepts the wire form and the common spellings seen from
// older clients ("InProgress", "in_progress", "in-progress"), ignoring case.
func ParseStatus(raw string) (Status, error) {
	norm := strings.ToLower(strings.TrimSpace(raw))
	norm = strings.NewReplacer("_", "", "-", "", " ", "").Replace(norm)

	switch norm {
	case "pending":
		return StatusPending, nil
	case "inprogress":
		return StatusInProgress, nil
	case "resolved":
		return StatusResolved, nil
	case "rejected":
		return StatusRejected, nil
	}
	return "", apperrors.NewValidationError("status", fmt.Sprintf("unknown status %q", raw))
}

// UnmarshalJSON normalizes alternate spellings. An unknown status fails the
// decode so a bad record never enters a snapshot.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
