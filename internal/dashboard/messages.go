package dashboard

import (
	"time"

	"complaintdesk/internal/account"
)

// Kind names a mutating operation.
type Kind string

const (
	KindSubmit   Kind = "submit"
	KindUpdate   Kind = "update"
	KindProfile  Kind = "profile"
	KindPassword Kind = "password"
	KindDelete   Kind = "delete"
)

// texts are the three messages a mutation can show.
type texts struct {
	pending string
	success string
	failure string
}

var mutationTexts = map[Kind]texts{
	KindSubmit:   {"Submitting complaint...", "Complaint submitted successfully!", "Failed to submit complaint."},
	KindUpdate:   {"Updating complaint...", "Complaint updated successfully!", "Failed to update complaint."},
	KindProfile:  {"Updating profile...", "Profile updated successfully!", "Failed to update profile."},
	KindPassword: {"Changing password...", "Password changed successfully!", "Failed to change password."},
	KindDelete:   {"Deleting user...", "User deleted.", "Failed to delete user."},
}

func textsFor(role account.Role, kind Kind) texts {
	t := mutationTexts[kind]
	if kind == KindProfile && role.IsAdmin() {
		t.success = "Profile updated!"
	}
	return t
}

func (t Timing) dismissFor(kind Kind) time.Duration {
	switch kind {
	case KindSubmit:
		return t.SubmitDismiss
	case KindUpdate:
		return t.UpdateDismiss
	case KindProfile:
		return t.ProfileDismiss
	case KindPassword:
		return t.PasswordDismiss
	case KindDelete:
		return t.DeleteDismiss
	}
	return 0
}
