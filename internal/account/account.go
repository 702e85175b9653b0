// Package account holds the identity-side payloads: roles, profiles,
// signup and login requests, and password changes.
package account

import (
	"strings"

	apperrors "complaintdesk/internal/errors"
	"complaintdesk/internal/validate"
)

// Role selects which dashboard and which endpoint family a session uses.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// ParseRole accepts "student" or "admin" in any case.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleStudent:
		return RoleStudent, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", apperrors.NewValidationError("role", "must be student or admin")
}

func (r Role) String() string {
	return string(r)
}

// IsAdmin reports whether r is the administrator role.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Profile is the signed-in user's own record.
type Profile struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	RegNo    string `json:"regNo" validate:"required"`
}

// Normalize trims surrounding whitespace from every field.
func (p Profile) Normalize() Profile {
	return Profile{
		FullName: strings.TrimSpace(p.FullName),
		Email:    strings.TrimSpace(p.Email),
		RegNo:    strings.TrimSpace(p.RegNo),
	}
}

// Validate checks required fields and the email format.
func (p Profile) Validate() error {
	return validate.Struct(p.Normalize())
}

// User is a registered account as listed to administrators.
type User struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	RegNo    string `json:"regNo"`
}

// SignupRequest is the body of the signup call. The registration number
// travels as "regiNo".
type SignupRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	RegNo    string `json:"regiNo" validate:"required"`
	Role     Role   `json:"role" validate:"oneof=student admin"`
}

// Normalize trims every field except the password, which is sent as typed
// so that it matches what the user enters at login.
func (s SignupRequest) Normalize() SignupRequest {
	return SignupRequest{
		Username: strings.TrimSpace(s.Username),
		Email:    strings.TrimSpace(s.Email),
		Password: s.Password,
		RegNo:    strings.TrimSpace(s.RegNo),
		Role:     s.Role,
	}
}

// Validate checks required fields, the email format and the role. A
// password of only spaces counts as empty.
func (s SignupRequest) Validate() error {
	if err := validate.Struct(s.Normalize()); err != nil {
		return err
	}
	if strings.TrimSpace(s.Password) == "" {
		return apperrors.NewValidationError("password", "is required")
	}
	return nil
}

// Credentials is the body of the login call.
type Credentials struct {
	Mail     string `json:"mail" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Validate checks both fields are present.
func (c Credentials) Validate() error {
	return validate.Struct(Credentials{Mail: strings.TrimSpace(c.Mail), Password: c.Password})
}

// PasswordChange is the body of the change-password call. Confirm is only
// checked locally and never sent.
type PasswordChange struct {
	Current string `json:"currentPassword"`
	New     string `json:"newPassword"`
	Confirm string `json:"-"`
}

// Validate requires a non-empty new password that matches its confirmation.
func (p PasswordChange) Validate() error {
	if p.New == "" || p.New != p.Confirm {
		return apperrors.NewValidationError("newPassword", "Passwords do not match or empty.")
	}
	return nil
}
