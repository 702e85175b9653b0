package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"complaintdesk/internal/account"
	"complaintdesk/internal/config"
	"complaintdesk/internal/dashboard"
	"complaintdesk/internal/health"
	"complaintdesk/internal/logger"
	"complaintdesk/internal/notify"
	"complaintdesk/internal/store"
	"complaintdesk/internal/summary"
	"complaintdesk/internal/transition"
	"complaintdesk/internal/tui"
	"complaintdesk/internal/watch"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	cfg *config.Config
	log zerolog.Logger

	signupReq   account.SignupRequest
	signupRole  string
	loginCreds  account.Credentials
	summaryPath string

	rootCmd = &cobra.Command{
		Use:          "complaintdesk",
		Short:        "Terminal client for the campus complaint service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.LoadConfig()
			if err != nil {
				return err
			}
			log = logger.New(cfg.LogLevel, cfg.LogPretty)
			return nil
		},
	}

	signupCmd = &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE:  runSignup,
	}

	loginCmd = &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		RunE:  runLogin,
	}

	logoutCmd = &cobra.Command{
		Use:   "logout",
		Short: "End the saved session",
		RunE:  runLogout,
	}

	dashboardCmd = &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"ui"},
		Short:   "Open the student or admin dashboard",
		RunE:    runDashboard,
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Print complaint counts per status",
		RunE:  runStats,
	}

	summaryCmd = &cobra.Command{
		Use:   "summary",
		Short: "Render the complaint summary as a PNG image",
		RunE:  runSummary,
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Watch for complaint changes and mirror them to Telegram (admin)",
		RunE:  runWatch,
	}
)

func init() {
	rootCmd.AddCommand(signupCmd)
	signupCmd.Flags().StringVar(&signupReq.Username, "name", "", "Full name")
	signupCmd.Flags().StringVar(&signupReq.Email, "email", "", "Email address")
	signupCmd.Flags().StringVar(&signupReq.RegNo, "regno", "", "Registration number")
	signupCmd.Flags().StringVar(&signupReq.Password, "password", "", "Password (prompted when empty)")
	signupCmd.Flags().StringVar(&signupRole, "role", string(account.RoleStudent), "Account role: student or admin")

	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVar(&loginCreds.Mail, "email", "", "Email or registration number")
	loginCmd.Flags().StringVar(&loginCreds.Password, "password", "", "Password (prompted when empty)")

	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(statsCmd)

	rootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().StringVarP(&summaryPath, "output", "o", "summary.png", "Where to write the image")

	rootCmd.AddCommand(watchCmd)
}

func runSignup(cmd *cobra.Command, args []string) error {
	role, err := account.ParseRole(signupRole)
	if err != nil {
		return err
	}
	signupReq.Role = role

	req, err := promptSignup(signupReq)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, log, stateDirInteractive, account.Credentials{})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.client.Signup(cmd.Context(), req); err != nil {
		return err
	}
	fmt.Println("Signup successful. You can now log in.")
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	creds, err := promptCredentials(loginCreds)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, log, stateDirInteractive, account.Credentials{})
	if err != nil {
		return err
	}
	defer a.Close()

	role, err := a.session.Login(cmd.Context(), creds)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s.\n", role)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, log, stateDirInteractive, account.Credentials{})
	if err != nil {
		return err
	}
	defer a.Close()

	if _, ok, err := a.session.Restore(); err != nil || !ok {
		fmt.Println("Not logged in.")
		return err
	}
	if err := a.session.Logout(cmd.Context()); err != nil {
		log.Warn().Err(err).Msg("server logout failed, local session cleared")
	}
	fmt.Println("Logged out.")
	return nil
}

func runDashboard(cmd *cobra.Command, args []string) error {
	// The screen belongs to the dashboard; logs go to a file.
	if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
		return err
	}
	fileLog, closer, err := logger.NewFile(filepath.Join(cfg.StateDir, "dashboard.log"), cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer closer.Close()

	a, err := newApp(cfg, fileLog, stateDirInteractive, account.Credentials{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	role, err := a.interactiveSession(ctx)
	if err != nil {
		return err
	}

	cache := store.New(role, a.client, fileLog)
	trans := transition.New(a.client, cache, fileLog)
	ctrl := dashboard.New(role, sessionAPI{Client: a.client, session: a.session}, cache, trans, dashboard.DefaultTiming(role), fileLog)

	model := tui.New(ctx, ctrl, cache, fileLog)
	final, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if m, ok := final.(tui.Model); ok && !m.LoggedIn() {
		fmt.Println("Logged out.")
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, log, stateDirInteractive, account.Credentials{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	role, err := a.interactiveSession(ctx)
	if err != nil {
		return err
	}
	cache := store.New(role, a.client, log)
	if err := cache.RefreshAll(ctx); err != nil {
		log.Warn().Err(err).Msg("some data could not be loaded")
	}

	s := cache.DisplayStats()
	fmt.Printf("Total:       %d\n", s.Total)
	fmt.Printf("Pending:     %d\n", s.Pending)
	fmt.Printf("In Progress: %d\n", s.InProgress)
	fmt.Printf("Resolved:    %d\n", s.Resolved)
	fmt.Printf("Rejected:    %d\n", s.Rejected)
	return nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, log, stateDirInteractive, account.Credentials{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	role, err := a.interactiveSession(ctx)
	if err != nil {
		return err
	}
	cache := store.New(role, a.client, log)
	if err := cache.RefreshComplaints(ctx); err != nil {
		return err
	}
	if err := cache.RefreshStats(ctx); err != nil {
		log.Warn().Err(err).Msg("stats unavailable, counting from the list")
	}

	png, err := summary.Render(cache.DisplayStats(), cache.Complaints())
	if err != nil {
		return err
	}
	if err := os.WriteFile(summaryPath, png, 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	fmt.Printf("Summary written to %s\n", summaryPath)
	return nil
}

// runWatch runs the admin watch daemon until SIGINT or SIGTERM.
//
// Components:
//   - watch.Watcher polls complaints and keeps Telegram announcements in step
//   - notify.Notifier handles status buttons and commands from the chat
//   - health server exposes /health and /metrics
func runWatch(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateDaemon(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, log, stateDirWatch, account.Credentials{Mail: cfg.Email, Password: cfg.Password})
	if err != nil {
		return err
	}
	defer a.Close()

	role, err := a.session.EnsureSession(ctx)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if !role.IsAdmin() {
		return fmt.Errorf("watch needs an admin account, logged in as %s", role)
	}

	cache := store.New(role, a.client, log)
	trans := transition.New(a.client, cache, log)

	notifier, err := notify.Connect(cfg.TelegramBotToken, notify.Options{
		ChatID: cfg.TelegramChatID,
		Debug:  cfg.DebugMode,
		Rate:   cfg.TelegramRate,
	}, log)
	if err != nil {
		return err
	}

	monitor := health.NewMonitor()
	srv := health.StartServer(monitor, cfg.HealthCheckPort, log)

	watcher := watch.New(cache, a.state, notifier, a.session, monitor, watch.Options{
		Interval:      cfg.WatchInterval,
		Workers:       cfg.WorkerPoolSize,
		LoginAttempts: cfg.MaxLoginRetries,
	}, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watcher.Run(gctx)
	})
	if notifier != nil {
		g.Go(func() error {
			notifier.HandleUpdates(gctx, notify.Deps{
				Transitions: trans,
				Snapshots:   cache,
				Ledger:      a.state,
				Render:      summary.Render,
			})
			return nil
		})
	}

	err = g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Warn().Err(serr).Msg("health server shutdown failed")
	}
	log.Info().Msg("watch stopped")
	return err
}
