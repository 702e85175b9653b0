// Package complaint defines the complaint entity, its status lifecycle and
// the per-status aggregation used by both dashboards.
//
// A complaint is created by a student in the Pending state with an empty
// response. Only an administrator changes its status, and every status
// change carries a response text. Any status may move to any other status;
// there is no terminal state and complaints are never deleted.
package complaint

import (
	"strings"

	apperrors "complaintdesk/internal/errors"
	"complaintdesk/internal/validate"
)

// Complaint is a single complaint as returned by the service.
//
// Fields:
//   - ID: Server-assigned identifier, immutable
//   - Title, Subject, Description: Student-authored text, never edited
//   - Status: Current lifecycle state
//   - Response: Administrator's latest response, empty until first update
type Complaint struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Status      Status `json:"status"`
	Response    string `json:"response"`
}

// Validate checks that the text fields are present and the status is known.
func (c Complaint) Validate() error {
	if err := (NewComplaint{Title: c.Title, Subject: c.Subject, Description: c.Description}).Validate(); err != nil {
		return err
	}
	if !c.Status.Valid() {
		return apperrors.NewValidationError("status", "unknown status "+string(c.Status))
	}
	return nil
}

// NewComplaint is the payload a student submits. It deliberately has no
// status or response field.
type NewComplaint struct {
	Title       string `json:"title" validate:"required"`
	Subject     string `json:"subject" validate:"required"`
	Description string `json:"description" validate:"required"`
}

// Normalize trims surrounding whitespace from every field.
func (n NewComplaint) Normalize() NewComplaint {
	return NewComplaint{
		Title:       strings.TrimSpace(n.Title),
		Subject:     strings.TrimSpace(n.Subject),
		Description: strings.TrimSpace(n.Description),
	}
}

// Validate rejects any field that is empty after trimming.
func (n NewComplaint) Validate() error {
	return validate.Struct(n.Normalize())
}

// Created returns the complaint as it must look right after creation.
func (n NewComplaint) Created(id int) Complaint {
	n = n.Normalize()
	return Complaint{
		ID:          id,
		Title:       n.Title,
		Subject:     n.Subject,
		Description: n.Description,
		Status:      StatusPending,
	}
}

// Update is an administrator's status change. Status and Response always
// travel together.
type Update struct {
	ID       int    `json:"id" validate:"gt=0"`
	Status   Status `json:"status" validate:"required"`
	Response string `json:"response" validate:"required"`
}

// Validate checks the id, that the status is one of the four known values and
// that the response is not blank.
func (u Update) Validate() error {
	u.Response = strings.TrimSpace(u.Response)
	if err := validate.Struct(u); err != nil {
		return err
	}
	if !u.Status.Valid() {
		return apperrors.NewValidationError("status", "unknown status "+string(u.Status))
	}
	return nil
}
