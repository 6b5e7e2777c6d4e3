package cli

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	configfile "github.com/custodia-labs/optiply-target/internal/adapters/driven/config/file"
	"github.com/custodia-labs/optiply-target/internal/adapters/driven/optiply"
	"github.com/custodia-labs/optiply-target/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/optiply-target/internal/adapters/driving/singer"
	"github.com/custodia-labs/optiply-target/internal/core/ports/driven"
	"github.com/custodia-labs/optiply-target/internal/core/services"
	"github.com/custodia-labs/optiply-target/internal/logger"
	"github.com/custodia-labs/optiply-target/internal/streams"
	"github.com/custodia-labs/optiply-target/internal/summary"
)

var (
	configPath     string
	statePath      string
	jobDetailsPath string
	resumeFrom     string
	stateEvery     int
)

func registerRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.json",
		"path to the JSON configuration file")
	cmd.Flags().StringVar(&statePath, "state", "target-state.json",
		"path the final state artifact is written to")
	cmd.Flags().StringVar(&jobDetailsPath, "job-details", "job-details.json",
		"job details file to patch with run metrics, if it exists")
	cmd.Flags().StringVar(&resumeFrom, "resume-from", "",
		"state artifact of a prior run; its successful records are skipped as existing")
	cmd.Flags().IntVar(&stateEvery, "state-every", 0,
		"records per stream between incremental state emissions (0 = default)")
}

func runTarget(cmd *cobra.Command, _ []string) error {
	cfg, err := configfile.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	registry, err := streams.Load()
	if err != nil {
		return err
	}

	tokens := optiply.NewTokenStore(cfg.TokenURL(), optiply.Credentials{
		Username:     cfg.Username,
		Password:     cfg.Password,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	}, &http.Client{Timeout: 30 * time.Second})

	dispatcher := optiply.NewClient(optiply.ClientConfig{
		BaseURL:    cfg.BaseURL,
		AccountID:  cfg.Account(),
		CouplingID: cfg.Coupling(),
	}, tokens)

	var store driven.LedgerStore
	if cfg.LedgerDB != "" {
		store, err = sqlite.NewLedgerStore(cfg.LedgerDB)
		if err != nil {
			return fmt.Errorf("opening ledger store: %w", err)
		}
		defer store.Close()
	}

	runID := uuid.NewString()
	logger.Info("starting run %s against %s", runID, cfg.BaseURL)

	ledger := services.NewLedger(runID, store)
	if resumeFrom != "" {
		prior, err := singer.ReadSnapshot(resumeFrom)
		if err != nil {
			return fmt.Errorf("loading resume state: %w", err)
		}
		ledger.Seed(prior)
		logger.Info("seeded ledger from %s", resumeFrom)
	}

	reader := singer.NewReader(cmd.InOrStdin())
	writer := singer.NewStateWriter(cmd.OutOrStdout(), statePath)
	if _, err := os.Stat(jobDetailsPath); err == nil {
		writer.JobDetailsPath = jobDetailsPath
	}

	router := services.NewSinkRouter(
		registry,
		services.NewFieldMapper(),
		dispatcher,
		ledger,
		reader,
		writer,
		stateEvery,
	)

	snap, runErr := router.Run(cmd.Context())
	if snap != nil {
		fmt.Fprint(cmd.ErrOrStderr(), summary.Render(snap.Summary))
	}
	if runErr != nil {
		return fmt.Errorf("run aborted: %w", runErr)
	}
	return nil
}
