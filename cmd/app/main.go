package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/audithound/saptrail/internal/app"
)

func main() {
	cmd := &cli.Command{
		Name:  "saptrail",
		Usage: "SAP security-audit correlation and risk analysis",
		Commands: []*cli.Command{
			runCommand(),
			serveCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Analyze SM20/CDHDR/CDPOS exports and write the review report",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "sm20",
				Required: true,
				Usage:    "Security-audit log CSV export",
			},
			&cli.StringFlag{
				Name:     "cdhdr",
				Required: true,
				Usage:    "Change-document header CSV export",
			},
			&cli.StringFlag{
				Name:     "cdpos",
				Required: true,
				Usage:    "Change-document item CSV export",
			},
			&cli.StringFlag{
				Name:  "report",
				Value: "./saptrail-report.xlsx",
				Usage: "Excel report output path",
			},
			&cli.StringFlag{
				Name:  "db-path",
				Usage: "Run archive SQLite file; omit to skip archiving",
			},
			&cli.StringFlag{
				Name:    "reference-data",
				Sources: cli.EnvVars("SAPTRAIL_REFERENCE_DATA"),
				Usage:   "Risk catalog YAML override",
			},
			&cli.DurationFlag{
				Name:  "tolerance",
				Value: 15 * time.Minute,
				Usage: "Correlation time window",
			},
			&cli.StringFlag{
				Name:    "webhook-url",
				Sources: cli.EnvVars("SAPTRAIL_WEBHOOK_URL"),
				Usage:   "Run-completion webhook target URL",
			},
			&cli.StringFlag{
				Name:    "webhook-secret",
				Sources: cli.EnvVars("SAPTRAIL_WEBHOOK_SECRET"),
				Usage:   "HMAC-SHA256 signing secret for webhook requests",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			run, err := app.RunAnalysis(ctx, app.RunConfig{
				AccessLogPath: c.String("sm20"),
				HeaderPath:    c.String("cdhdr"),
				ItemPath:      c.String("cdpos"),
				ReportPath:    c.String("report"),
				DBPath:        c.String("db-path"),
				RefDataPath:   c.String("reference-data"),
				Tolerance:     c.Duration("tolerance"),
				WebhookURL:    c.String("webhook-url"),
				WebhookSecret: c.String("webhook-secret"),
			})
			if err != nil {
				return err
			}

			log.Printf("run %s complete: %d correlated, %d unmatched changes, %d unmatched events (high=%d medium=%d low=%d unknown=%d)",
				run.ID, run.Stats.Matched, run.Stats.UnmatchedChanges, run.Stats.UnmatchedAccess,
				run.Stats.HighRisk, run.Stats.MediumRisk, run.Stats.LowRisk, run.Stats.UnknownRisk)
			if run.Approximate {
				log.Printf("warning: correlation ran in approximate mode; review matches manually")
			}
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the review API over the run archive",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: ":8080",
				Usage: "HTTP listen address",
			},
			&cli.StringFlag{
				Name:  "db-path",
				Value: "./saptrail.sqlite",
				Usage: "Run archive SQLite file",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := app.ServerConfig{
				Addr:   c.String("addr"),
				DBPath: c.String("db-path"),
			}

			server, closer, err := app.NewServer(ctx, cfg)
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}
			defer func() {
				if closeErr := closer.Close(); closeErr != nil {
					log.Printf("close resources: %v", closeErr)
				}
			}()

			errCh := make(chan error, 1)
			go func() {
				log.Printf("listening on %s", cfg.Addr)
				errCh <- server.ListenAndServe()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case sig := <-sigCh:
				log.Printf("received signal %s", sig)
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}
}
