// Package app wires the adapters to the core services for the two entry
// points: one-shot analysis runs and the review API server.
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/audithound/saptrail/internal/adapters/csvfile"
	"github.com/audithound/saptrail/internal/adapters/httpapi"
	"github.com/audithound/saptrail/internal/adapters/notify"
	sqliteadapter "github.com/audithound/saptrail/internal/adapters/sqlite"
	"github.com/audithound/saptrail/internal/adapters/sqlite/gormsqlite"
	"github.com/audithound/saptrail/internal/adapters/xlsxreport"
	"github.com/audithound/saptrail/internal/core/domain"
	"github.com/audithound/saptrail/internal/core/usecase"
	"github.com/audithound/saptrail/internal/metrics"
	"github.com/audithound/saptrail/internal/refdata"
	"github.com/audithound/saptrail/migrations"
)

// RunConfig configures one analysis run.
type RunConfig struct {
	AccessLogPath string
	HeaderPath    string
	ItemPath      string

	ReportPath  string
	DBPath      string // persist the run to the archive when set
	RefDataPath string // catalog override; empty uses the embedded defaults
	Tolerance   time.Duration

	WebhookURL    string
	WebhookSecret string
}

// ServerConfig configures the review API server.
type ServerConfig struct {
	Addr   string
	DBPath string
}

// RunAnalysis executes the full batch: load, normalize, assemble, correlate,
// classify, then write the report and optionally archive and announce the run.
func RunAnalysis(ctx context.Context, cfg RunConfig) (domain.Run, error) {
	ref, err := loadRefData(cfg.RefDataPath)
	if err != nil {
		return domain.Run{}, err
	}

	pipeline := usecase.NewPipeline(
		csvfile.NewAccessLog(cfg.AccessLogPath),
		csvfile.NewChangeDocuments(cfg.HeaderPath, cfg.ItemPath),
		ref,
		cfg.Tolerance,
	)

	res, err := pipeline.Run(ctx)
	if err != nil {
		return domain.Run{}, err
	}
	metrics.ObserveRun(res.Run)

	if cfg.ReportPath != "" {
		if err := xlsxreport.NewReporter(cfg.ReportPath).Write(ctx, res); err != nil {
			return domain.Run{}, fmt.Errorf("write report: %w", err)
		}
		log.Printf("report written to %s", cfg.ReportPath)
	}

	if cfg.DBPath != "" {
		if err := archiveRun(ctx, cfg.DBPath, res); err != nil {
			return domain.Run{}, err
		}
		log.Printf("run %s archived to %s", res.Run.ID, cfg.DBPath)
	}

	// High-risk findings page the compliance intake; notification failures do
	// not invalidate a finished run.
	if cfg.WebhookURL != "" && res.Run.Stats.HighRisk > 0 {
		notifier := notify.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookSecret, 0)
		if err := notifier.RunCompleted(ctx, res.Run); err != nil {
			log.Printf("warning: run notification failed: %v", err)
		}
	}

	return res.Run, nil
}

// archiveReplayLimit caps how many archived runs seed the counters on start.
const archiveReplayLimit = 10000

// NewServer builds the review API server over an existing run archive.
func NewServer(ctx context.Context, cfg ServerConfig) (*http.Server, io.Closer, error) {
	db, err := openArchive(ctx, cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}

	repo := sqliteadapter.NewRunRepository(db)
	if err := replayArchivedRuns(ctx, repo); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	review := usecase.NewReviewService(repo)
	handler := httpapi.NewHandler(review)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server, db, nil
}

// replayArchivedRuns seeds the pipeline counters from the archive so the
// /metrics endpoint reports runs recorded before this process started.
func replayArchivedRuns(ctx context.Context, repo *sqliteadapter.RunRepository) error {
	runs, err := repo.ListRuns(ctx, archiveReplayLimit)
	if err != nil {
		return fmt.Errorf("replay archived runs: %w", err)
	}
	for _, run := range runs {
		metrics.ObserveRun(run)
	}
	if len(runs) > 0 {
		log.Printf("replayed %d archived runs into metrics", len(runs))
	}
	return nil
}

func loadRefData(path string) (domain.ReferenceData, error) {
	if path == "" {
		ref, err := refdata.Default()
		if err != nil {
			return domain.ReferenceData{}, fmt.Errorf("load embedded catalog: %w", err)
		}
		return ref, nil
	}
	return refdata.Load(path)
}

func archiveRun(ctx context.Context, dbPath string, res domain.AnalysisResult) error {
	db, err := openArchive(ctx, dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := sqliteadapter.NewRunRepository(db)
	if err := repo.SaveRun(ctx, res.Run, res.Timeline); err != nil {
		return err
	}
	return nil
}

func openArchive(ctx context.Context, dbPath string) (*gormsqlite.DB, error) {
	db, err := gormsqlite.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open archive sqlite: %w", err)
	}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("resolve writer sql db: %w", err)
	}

	migCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := migrations.Up(migCtx, writeSQLDB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
