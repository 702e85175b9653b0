package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"complaintdesk/internal/account"
	"complaintdesk/internal/api"
	"complaintdesk/internal/auth"
	"complaintdesk/internal/config"
	apperrors "complaintdesk/internal/errors"
	"complaintdesk/internal/storage"

	"github.com/charmbracelet/huh"
	"github.com/rs/zerolog"
)

// app bundles what every subcommand needs: config, logger, the API client,
// the local state database and the session manager built on them.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	client  *api.Client
	state   *storage.Storage
	session *auth.Manager
}

// stateDirInteractive and stateDirWatch keep the dashboard and the daemon
// in separate databases so both can run at once.
const (
	stateDirInteractive = "session"
	stateDirWatch       = "watch"
)

// newApp opens the state database under cfg.StateDir/sub and wires the
// client and session manager.
func newApp(cfg *config.Config, log zerolog.Logger, sub string, creds account.Credentials) (*app, error) {
	dir := filepath.Join(cfg.StateDir, sub)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	state, err := storage.Open(storage.Options{Path: dir, Logger: log})
	if err != nil {
		return nil, err
	}

	client, err := api.New(api.Options{
		BaseURL:    cfg.BaseURL,
		SignupPath: cfg.SignupPath,
		LoginPath:  cfg.LoginPath,
		Timeout:    cfg.HTTPTimeout,
		MaxConns:   cfg.HTTPMaxConns,
		Logger:     log,
	})
	if err != nil {
		state.Close()
		return nil, err
	}

	session := auth.NewManager(client, state, auth.Options{
		Credentials: creds,
		MaxRetries:  cfg.MaxLoginRetries,
		RetryDelay:  cfg.LoginRetryDelay,
	}, log)

	return &app{cfg: cfg, log: log, client: client, state: state, session: session}, nil
}

func (a *app) Close() {
	if err := a.state.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close state database")
	}
}

// interactiveSession returns the role of a usable session, restoring a saved
// one when the service still accepts it and prompting for credentials
// otherwise.
func (a *app) interactiveSession(ctx context.Context) (account.Role, error) {
	role, ok, err := a.session.Restore()
	if err != nil {
		a.log.Warn().Err(err).Msg("could not read saved session")
	}
	if ok {
		_, err := a.client.Profile(ctx)
		switch {
		case err == nil:
			return role, nil
		case apperrors.IsUnauthorized(err):
			fmt.Fprintln(os.Stderr, "Your session has expired. Please log in again.")
		default:
			return "", err
		}
	}

	creds, err := promptCredentials(account.Credentials{})
	if err != nil {
		return "", err
	}
	return a.session.Login(ctx, creds)
}

// promptCredentials asks for whatever part of creds is missing.
func promptCredentials(creds account.Credentials) (account.Credentials, error) {
	if creds.Mail != "" && creds.Password != "" {
		return creds, nil
	}

	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Email or registration number").Value(&creds.Mail).Validate(notBlank("email")),
		huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&creds.Password).Validate(notBlank("password")),
	))
	if err := form.Run(); err != nil {
		return creds, err
	}
	return creds, nil
}

// promptSignup asks for the signup fields left empty on the command line.
func promptSignup(req account.SignupRequest) (account.SignupRequest, error) {
	var fields []huh.Field
	if req.Username == "" {
		fields = append(fields, huh.NewInput().Title("Full name").Value(&req.Username).Validate(notBlank("name")))
	}
	if req.Email == "" {
		fields = append(fields, huh.NewInput().Title("Email").Value(&req.Email).Validate(notBlank("email")))
	}
	if req.RegNo == "" {
		fields = append(fields, huh.NewInput().Title("Registration number").Value(&req.RegNo).Validate(notBlank("registration number")))
	}
	if req.Password == "" {
		fields = append(fields, huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&req.Password).Validate(notBlank("password")))
	}
	if len(fields) == 0 {
		return req, nil
	}
	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return req, err
	}
	return req, nil
}

func notBlank(name string) func(string) error {
	return func(s string) error {
		if len(s) == 0 {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

// sessionAPI routes dashboard logouts through the session manager so the
// saved session is forgotten too.
type sessionAPI struct {
	*api.Client
	session *auth.Manager
}

func (s sessionAPI) Logout(ctx context.Context) error {
	return s.session.Logout(ctx)
}
