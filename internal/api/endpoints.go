package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"complaintdesk/internal/account"
	"complaintdesk/internal/complaint"
	apperrors "complaintdesk/internal/errors"
)

// Signup registers a new account. It does not sign the account in.
func (c *Client) Signup(ctx context.Context, req account.SignupRequest) error {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, c.signupPath, req, nil)
}

// Login signs in and returns the advisory role from the "role" cookie.
//
// The session itself lives in the jar. An empty role means the server did
// not set the cookie; callers fall back to asking the user.
//
// Returns:
//   - account.Role: Role hint, "" when absent or unrecognized
//   - error: LoginFailedError wrapping the underlying request error
func (c *Client) Login(ctx context.Context, creds account.Credentials) (account.Role, error) {
	if err := creds.Validate(); err != nil {
		return "", err
	}
	if err := c.do(ctx, http.MethodPost, c.loginPath, creds, nil); err != nil {
		return "", apperrors.NewLoginFailedError("credentials rejected or service unreachable", err)
	}

	role, err := account.ParseRole(c.RoleHint())
	if err != nil {
		c.log.Warn().Str("role_cookie", c.RoleHint()).Msg("login succeeded without a usable role cookie")
		return "", nil
	}
	return role, nil
}

// Logout ends the server session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/user/logout", nil, nil)
}

// Profile fetches the signed-in user's profile.
func (c *Client) Profile(ctx context.Context) (account.Profile, error) {
	var p account.Profile
	err := c.do(ctx, http.MethodGet, "/user/profile", nil, &p)
	return p, err
}

// UpdateProfile replaces the signed-in user's profile.
func (c *Client) UpdateProfile(ctx context.Context, p account.Profile) error {
	return c.do(ctx, http.MethodPut, "/user/profile", p.Normalize(), nil)
}

// ChangePassword changes the signed-in user's password. Confirmation is
// checked by the caller and never sent.
func (c *Client) ChangePassword(ctx context.Context, change account.PasswordChange) error {
	return c.do(ctx, http.MethodPut, "/user/changePassword", change, nil)
}

// MyComplaints lists the student's own complaints.
func (c *Client) MyComplaints(ctx context.Context) ([]complaint.Complaint, error) {
	var out []complaint.Complaint
	err := c.do(ctx, http.MethodGet, "/user/complaints", nil, &out)
	return out, err
}

// SubmitComplaint creates a complaint and returns it as created.
//
// Whatever the server echoes, the result is Pending with an empty response.
// When the server answers without a body the complaint is built from the
// request with a zero ID; the next list refresh supplies the real one.
func (c *Client) SubmitComplaint(ctx context.Context, n complaint.NewComplaint) (complaint.Complaint, error) {
	n = n.Normalize()
	if err := n.Validate(); err != nil {
		return complaint.Complaint{}, err
	}

	var raw []byte
	if err := c.do(ctx, http.MethodPost, "/user/complaints", n, &raw); err != nil {
		return complaint.Complaint{}, err
	}

	// Some deployments answer with plain text; only a JSON object carries an id.
	var echoed struct {
		ID int `json:"id"`
	}
	_ = json.Unmarshal(raw, &echoed)
	return n.Created(echoed.ID), nil
}

// MyStats fetches the student's own per-status counts.
func (c *Client) MyStats(ctx context.Context) (complaint.Stats, error) {
	var s complaint.Stats
	err := c.do(ctx, http.MethodGet, "/user/stats", nil, &s)
	return s, err
}

// AllStats fetches the global per-status counts.
func (c *Client) AllStats(ctx context.Context) (complaint.Stats, error) {
	var s complaint.Stats
	err := c.do(ctx, http.MethodGet, "/admin/stats", nil, &s)
	return s, err
}

// AllComplaints lists every complaint.
func (c *Client) AllComplaints(ctx context.Context) ([]complaint.Complaint, error) {
	var out []complaint.Complaint
	err := c.do(ctx, http.MethodGet, "/admin/complaints", nil, &out)
	return out, err
}

// UpdateComplaint sets a complaint's status and response.
func (c *Client) UpdateComplaint(ctx context.Context, u complaint.Update) error {
	return c.do(ctx, http.MethodPut, "/admin/complaints/update", u, nil)
}

// Users lists every registered account.
func (c *Client) Users(ctx context.Context) ([]account.User, error) {
	var out []account.User
	err := c.do(ctx, http.MethodGet, "/admin/users", nil, &out)
	return out, err
}

// DeleteUser removes the account with the given registration number.
func (c *Client) DeleteUser(ctx context.Context, regNo string) error {
	if regNo == "" {
		return apperrors.NewValidationError("regNo", "must not be empty")
	}
	return c.do(ctx, http.MethodDelete, "/admin/users/"+url.PathEscape(regNo), nil, nil)
}
