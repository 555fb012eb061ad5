// Package cli is the command-line front end. Every invocation opens the
// configured medium, so the session carries over between commands the way
// it does between page loads in the browser.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"ecocivic/api/internal/app"
	"ecocivic/api/internal/config"
	"ecocivic/api/internal/identity"
	"ecocivic/api/internal/kv"
	"ecocivic/api/internal/media"
	"ecocivic/api/internal/session"
	"ecocivic/api/internal/store"
)

// RootOptions holds global flags for all commands. Empty storage flags
// fall back to the environment and config file.
type RootOptions struct {
	Verbose     bool
	Format      string // "text" | "json" | "yaml"
	Storage     string
	DataPath    string
	DatabaseURL string
	RedisURL    string
	KeyPrefix   string
}

var ValidFormats = []string{"text", "json", "yaml"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ecocivic",
		Short: "EcoCivic - plant trees, report issues, climb the leaderboard",
		Long: `EcoCivic is a community civic-engagement tool: register, plant trees and
log their growth, report civic issues, join challenges and compete on the
points leaderboard.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return WrapExitError(ExitCommandError, "invalid format",
					fmt.Errorf("%q must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.Storage, "storage", "", "storage medium (memory|file|sqlite|postgres|redis)")
	cmd.PersistentFlags().StringVar(&opts.DataPath, "data", "", "path of the file or sqlite medium")
	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", "", "postgres connection string")
	cmd.PersistentFlags().StringVar(&opts.RedisURL, "redis-url", "", "redis connection string")
	cmd.PersistentFlags().StringVar(&opts.KeyPrefix, "key-prefix", "", "namespace for every stored key")

	cmd.AddCommand(NewRegisterCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoAmICommand(opts))
	cmd.AddCommand(NewTreeCommand(opts))
	cmd.AddCommand(NewIssueCommand(opts))
	cmd.AddCommand(NewChallengeCommand(opts))
	cmd.AddCommand(NewLeaderboardCommand(opts))
	cmd.AddCommand(NewBadgesCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))

	return cmd
}

// runtime is the set of services one command runs against.
type runtime struct {
	store    *store.Store
	sessions *session.Context
	accounts *identity.Service
	service  *app.Service
}

func (r *runtime) Close() error {
	return r.store.Close()
}

func (o *RootOptions) config() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if o.Storage != "" {
		cfg.Storage = o.Storage
	}
	if o.DataPath != "" {
		cfg.DataPath = o.DataPath
	}
	if o.DatabaseURL != "" {
		cfg.DatabaseURL = o.DatabaseURL
	}
	if o.RedisURL != "" {
		cfg.RedisURL = o.RedisURL
	}
	if o.KeyPrefix != "" {
		cfg.KeyPrefix = o.KeyPrefix
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	} else if cfg.LogLevel == "info" {
		cfg.LogLevel = "warn"
	}
	return cfg, nil
}

func (o *RootOptions) open(ctx context.Context, stderr io.Writer) (*runtime, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	logger := cfg.NewLogger(stderr)

	backend, err := kv.Open(ctx, kv.Options{
		Driver:      cfg.Storage,
		Path:        cfg.DataPath,
		DatabaseURL: cfg.DatabaseURL,
		RedisURL:    cfg.RedisURL,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open storage", err)
	}
	photos, err := media.New(media.MinIOConfig(cfg.MinIO))
	if err != nil {
		_ = backend.Close()
		return nil, WrapExitError(ExitCommandError, "configure photo storage", err)
	}

	st := store.New(backend, store.WithKeyPrefix(cfg.KeyPrefix))
	sessions := session.New()
	accounts := identity.NewService(st, identity.WithPublisher(sessions), identity.WithLogger(logger))
	service := app.New(st, accounts, app.WithMediaStore(photos), app.WithLogger(logger))

	if err := service.Bootstrap(ctx); err != nil {
		_ = st.Close()
		return nil, WrapExitError(ExitCommandError, "initialize storage", err)
	}
	if err := sessions.Refresh(ctx, accounts); err != nil {
		_ = st.Close()
		return nil, WrapExitError(ExitCommandError, "load session", err)
	}
	logger.Debug("storage opened", "storage", cfg.Storage)

	return &runtime{store: st, sessions: sessions, accounts: accounts, service: service}, nil
}

// run opens the runtime, calls fn and reports a failure in the requested
// format before returning it.
func (o *RootOptions) run(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime, out *OutputFormatter) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}

	rt, err := o.open(ctx, cmd.ErrOrStderr())
	if err != nil {
		_ = out.Error(err)
		return err
	}
	defer rt.Close()

	if err := fn(ctx, rt, out); err != nil {
		var exitErr *ExitError
		if !errors.As(err, &exitErr) {
			_ = out.Error(err)
		}
		return err
	}
	return nil
}
