package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	goSession "github.com/MrEthical07/goSession"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	memory     bool
	// environ overrides the process environment; tests set it.
	environ map[string]string
}

// newRootCmd builds the command tree. Every command loads the
// configuration, builds the controller and reconciles it with the provider
// before doing its own work.
func newRootCmd(environ map[string]string) *cobra.Command {
	opts := &rootOptions{environ: environ}

	root := &cobra.Command{
		Use:           "gosession",
		Short:         "Sign in, sign up and sign out against an identity provider",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a TOML config file")
	root.PersistentFlags().BoolVar(&opts.memory, "memory", false, "run the local provider on an in-process redis")

	root.AddCommand(
		newCredentialsCmd(opts, "signin", "Sign in with email and password", (*goSession.Controller).SignIn),
		newCredentialsCmd(opts, "signup", "Create an account and sign in", (*goSession.Controller).SignUp),
		newSignOutCmd(opts),
		newStatusCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// withApp runs fn against a fresh app that has already been refreshed from
// the provider.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	cfg, err := LoadConfig(opts.configPath, opts.environ)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, logger, appOptions{memory: opts.memory, auditWriter: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := a.refresh(ctx); err != nil {
		return err
	}
	return fn(ctx, a)
}

type credentialsFunc func(*goSession.Controller, context.Context, string, string) error

func newCredentialsCmd(opts *rootOptions, use, short string, call credentialsFunc) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := call(a.controller, ctx, email, password); err != nil {
					return err
				}
				return printState(cmd.OutOrStdout(), a.controller.State())
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func newSignOutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out locally and at the provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.controller.SignOut(ctx); err != nil {
					return err
				}
				return printState(cmd.OutOrStdout(), a.controller.State())
			})
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a user is signed in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(_ context.Context, a *app) error {
				return printState(cmd.OutOrStdout(), a.controller.State())
			})
		},
	}
}

// stateView is the JSON rendering of a session state.
type stateView struct {
	SignedIn   bool                `json:"signed_in"`
	Screen     string              `json:"screen"`
	UserID     string              `json:"user_id,omitempty"`
	Email      string              `json:"email,omitempty"`
	Provider   string              `json:"provider,omitempty"`
	LastError  goSession.ErrorKind `json:"last_error"`
	Generation uint64              `json:"generation"`
}

func viewOf(s goSession.State) stateView {
	return stateView{
		SignedIn:   s.SignedIn,
		Screen:     s.Screen(),
		UserID:     s.User.ID,
		Email:      s.User.Email,
		Provider:   s.User.Provider,
		LastError:  s.LastError,
		Generation: s.Generation,
	}
}

func printState(w io.Writer, s goSession.State) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(viewOf(s)); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}
