package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/meucuidador/care-api/internal/client/api"
	"github.com/meucuidador/care-api/internal/client/notifpanel"
	"github.com/meucuidador/care-api/internal/client/patientctx"
	"github.com/meucuidador/care-api/internal/client/querycache"
	"github.com/meucuidador/care-api/internal/client/selector"
	"github.com/meucuidador/care-api/internal/model"
	"github.com/meucuidador/care-api/pkg/logger"
)

// session is the client-side state shared by every command.
type session struct {
	cfg    *Config
	logger zerolog.Logger
	client *api.Client
	cache  *querycache.Cache
	viewer model.Viewer
	store  *patientctx.Store
}

func newSession(ctx context.Context, needAuth bool) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	color.NoColor = color.NoColor || cfg.NoColor

	zl := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Output: os.Stderr,
	}).Zerolog()

	s := &session{
		cfg:    cfg,
		logger: zl,
		client: api.New(cfg.APIURL, api.WithToken(cfg.Token), api.WithLogger(zl)),
		cache:  querycache.New(querycache.DefaultTTL, zl),
	}
	if !needAuth {
		return s, nil
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("CARECTL_TOKEN is not set, run carectl login first")
	}

	current, err := s.client.CurrentContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	s.viewer = current.Viewer
	s.store = patientctx.NewStore(s.viewer, s.client, s.cache, zl)
	if err := s.store.Sync(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *session) newSelector() (*selector.Selector, error) {
	return selector.New(s.viewer, s.client, s.store,
		selector.WithDebounce(s.cfg.Debounce),
		selector.WithLogger(s.logger),
	)
}

func (s *session) panel() *notifpanel.Panel {
	return notifpanel.New(s.client, s.cache, s.store, s.logger)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:           "carectl",
		Short:         "Meu Cuidador command line client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(contextCmd())
	rootCmd.AddCommand(patientsCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(switchCmd())
	rootCmd.AddCommand(clearCmd())
	rootCmd.AddCommand(notificationsCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print an access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			resp, err := s.client.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			okColor.Fprintf(cmd.ErrOrStderr(), "logged in as %s (%s)\n", resp.User.Name, resp.User.ProfileType)
			fmt.Fprintf(cmd.OutOrStdout(), "export CARECTL_TOKEN=%s\n", resp.AccessToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account e-mail")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func contextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "context",
		Short: "Show whose records are being viewed",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			renderContext(cmd.OutOrStdout(), s.viewer, s.store.Selected())
			return nil
		},
	}
}

func patientsCmd() *cobra.Command {
	var basic bool
	cmd := &cobra.Command{
		Use:   "patients",
		Short: "List accessible patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			if basic {
				sel, err := s.newSelector()
				if err != nil {
					return err
				}
				patients, err := sel.Accessible(cmd.Context())
				if err != nil {
					return err
				}
				renderBasic(cmd.OutOrStdout(), patients)
				return nil
			}
			patients, err := s.client.ListPatients(cmd.Context())
			if err != nil {
				return err
			}
			renderPatients(cmd.OutOrStdout(), patients)
			return nil
		},
	}
	cmd.Flags().BoolVar(&basic, "basic", false, "only id, name and e-mail")
	return cmd
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search accessible patients by name or e-mail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			sel, err := s.newSelector()
			if err != nil {
				return err
			}
			patients, err := sel.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderPatients(cmd.OutOrStdout(), patients)
			return nil
		},
	}
}

func switchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch <patient-id>",
		Short: "View another patient's records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return patientctx.ErrInvalidPatientID
			}
			s, err := newSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			sel, err := s.newSelector()
			if err != nil {
				return err
			}
			nav, err := sel.Select(cmd.Context(), id)
			if err != nil {
				return err
			}
			renderContext(cmd.OutOrStdout(), s.viewer, s.store.Selected())
			s.logger.Debug().Str("route", string(nav.Route)).Msg("navigate")
			return nil
		},
	}
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Return to your own records",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			sel, err := s.newSelector()
			if err != nil {
				return err
			}
			nav := sel.Dismiss(cmd.Context())
			renderContext(cmd.OutOrStdout(), s.viewer, s.store.Selected())
			s.logger.Debug().Str("route", string(nav.Route)).Msg("navigate")
			return nil
		},
	}
}

func notificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notif"},
		Short:   "List and manage notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			p := s.panel()
			if err := p.Refresh(cmd.Context()); err != nil {
				return err
			}
			renderNotifications(cmd.OutOrStdout(), p.UnreadCount(), p.Notifications())
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "read <id>",
		Short: "Mark a notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: withPanel(func(ctx context.Context, cmd *cobra.Command, p *notifpanel.Panel, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid notification id %q", args[0])
			}
			return p.MarkRead(ctx, id)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "read-all",
		Short: "Mark every loaded notification as read",
		RunE: withPanel(func(ctx context.Context, cmd *cobra.Command, p *notifpanel.Panel, args []string) error {
			n, err := p.MarkAllRead(ctx)
			okColor.Fprintf(cmd.OutOrStdout(), "%d marked as read\n", n)
			return err
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a notification",
		Args:  cobra.ExactArgs(1),
		RunE: withPanel(func(ctx context.Context, cmd *cobra.Command, p *notifpanel.Panel, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid notification id %q", args[0])
			}
			return p.Delete(ctx, id)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear-read",
		Short: "Delete every read notification",
		RunE: withPanel(func(ctx context.Context, cmd *cobra.Command, p *notifpanel.Panel, args []string) error {
			return p.ClearRead(ctx)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Follow new notifications as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := newSession(ctx, true)
			if err != nil {
				return err
			}
			p := s.panel()
			if err := p.Refresh(ctx); err != nil {
				return err
			}
			stream, err := s.client.StreamNotifications(ctx)
			if err != nil {
				return err
			}

			echo := make(chan *model.Notification)
			go func() {
				defer close(echo)
				for n := range stream {
					renderNotification(cmd.OutOrStdout(), *n)
					select {
					case echo <- n:
					case <-ctx.Done():
						return
					}
				}
			}()
			go p.Watch(ctx)
			p.Listen(ctx, echo)
			return nil
		},
	})
	return cmd
}

// withPanel loads the panel before running fn.
func withPanel(fn func(ctx context.Context, cmd *cobra.Command, p *notifpanel.Panel, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := newSession(ctx, true)
		if err != nil {
			return err
		}
		p := s.panel()
		if err := p.Refresh(ctx); err != nil {
			return err
		}
		return fn(ctx, cmd, p, args)
	}
}
