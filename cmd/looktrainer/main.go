package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"LookTrainer/internal/app"
	"LookTrainer/internal/config"
	"LookTrainer/internal/logging"
	"LookTrainer/internal/usecase"
)

const closeTimeout = 15 * time.Second

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "looktrainer",
		Short:         "Review feedback and rule compilation for crawled fashion images",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (defaults to $LOOKTRAINER_CONFIG)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(openSessionCmd())
	rootCmd.AddCommand(feedbackCmd())
	rootCmd.AddCommand(compileCmd())
	rootCmd.AddCommand(queueCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withApp builds the application for one command and releases it afterwards.
// One-shot commands exit right after their call, so rejected items are mined
// inline instead of through the topic.
func withApp(ctx context.Context, fn func(*app.Application) error) error {
	cfg := config.LoadFrom(configPath)
	cfg.Mining.Async = false
	return runApp(ctx, cfg, fn)
}

func runApp(ctx context.Context, cfg config.Config, fn func(*app.Application) error) error {
	logger := logging.New(cfg.Logging.Level, cfg.Logging.File)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			logger.Warn("close application", "error", err)
		}
	}()
	return fn(a)
}

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reviewer HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runApp(ctx, config.LoadFrom(configPath), func(a *app.Application) error {
				if migrate {
					if err := a.Migrate(ctx); err != nil {
						return err
					}
				}
				return a.Serve(ctx)
			})
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before serving")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.Application) error {
				if err := a.Migrate(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
				return nil
			})
		},
	}
}

func openSessionCmd() *cobra.Command {
	var req usecase.OpenRequest

	cmd := &cobra.Command{
		Use:   "open-session",
		Short: "Queue unreviewed images into a new review session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.Application) error {
				res, err := a.Sessions.Open(cmd.Context(), req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Session:  %s\n", res.SessionID)
				fmt.Fprintf(out, "Queued:   %d of %d\n", res.ItemsQueued, res.TotalItems)
				fmt.Fprintf(out, "Expires:  %s\n", res.ExpiresAt.Format("2006-01-02 15:04 MST"))
				fmt.Fprintf(out, "Review:   %s\n", res.ReviewURL)
				if res.Warning != nil {
					fmt.Fprintf(out, "Warning:  %s\n", res.Warning.Msg)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&req.ReviewType, "type", "manual", "review type label")
	cmd.Flags().StringVar(&req.SyncTimestamp, "sync", "", "crawler sync timestamp this batch belongs to")
	return cmd
}

func feedbackCmd() *cobra.Command {
	var (
		approve bool
		reject  bool
		reason  string
	)

	cmd := &cobra.Command{
		Use:   "feedback [image-id]",
		Short: "Record an approve or reject decision for one image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if approve == reject {
				return fmt.Errorf("exactly one of --approve or --reject is required")
			}
			return withApp(cmd.Context(), func(a *app.Application) error {
				approved := approve
				if err := a.Feedback.Record(cmd.Context(), usecase.FeedbackRequest{
					ItemID:   args[0],
					Approved: &approved,
					Reason:   reason,
				}); err != nil {
					return err
				}
				verdict := "rejection"
				if approved {
					verdict = "approval"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s for %s\n", verdict, args[0])
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&approve, "approve", false, "approve the image")
	cmd.Flags().BoolVar(&reject, "reject", false, "reject the image")
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	return cmd
}

func compileCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile the ruleset and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.Application) error {
				rules, err := a.Compiler.Compile(cmd.Context())
				if err != nil {
					return err
				}

				var w io.Writer = cmd.OutOrStdout()
				if output != "" {
					f, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("create %s: %w", output, err)
					}
					defer f.Close()
					w = f
				}
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(rules)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func queueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "List images in review order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.Application) error {
				items, err := a.Sessions.ListQueue(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSTATUS\tNEEDS TRAINING\tURL")
				for _, item := range items {
					status := string(item.ReviewStatus)
					if status == "" {
						status = "-"
					}
					fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", item.ID, status, item.NeedsTraining, truncate(item.SourceURL, 60))
				}
				return tw.Flush()
			})
		},
	}
}

func statusCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show progress of a review session (latest active by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.Application) error {
				res, err := a.Sessions.Status(cmd.Context(), sessionID)
				if err != nil {
					return err
				}
				s := res.Session
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Session:   %s (%s)\n", s.ID, res.Status)
				fmt.Fprintf(out, "Reviewed:  %d/%d (%d%%)\n", s.ItemsReviewed, s.ItemsQueued, res.CompletionPercent)
				fmt.Fprintf(out, "Approved:  %d\n", s.ItemsApproved)
				fmt.Fprintf(out, "Rejected:  %d\n", s.ItemsRejected)
				fmt.Fprintf(out, "Expires:   %s\n", s.ExpiresAt.Format("2006-01-02 15:04 MST"))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	return cmd
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
