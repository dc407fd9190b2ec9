package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ngmaloney/park-terminal/internal/config"
	"github.com/ngmaloney/park-terminal/internal/database"
	"github.com/ngmaloney/park-terminal/internal/journal"
	"github.com/ngmaloney/park-terminal/internal/logging"
	"github.com/ngmaloney/park-terminal/internal/models"
	"github.com/ngmaloney/park-terminal/internal/parklist"
	"github.com/ngmaloney/park-terminal/internal/parksapi"
	"github.com/ngmaloney/park-terminal/internal/platform"
	"github.com/ngmaloney/park-terminal/internal/ui"
)

var (
	// Global flags
	configPath string
	verbose    bool
	search     string
	city       string
	sortBy     string

	// Wired in PersistentPreRunE
	cfg      config.Config
	logger   = zap.NewNop()
	db       *sql.DB
	client   *parksapi.HTTPClient
	caps     platform.Capabilities
	recorder journal.Recorder = journal.Discard{}
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "park-terminal",
	Short: "Browse and manage park records from the terminal",
	Long: `park-terminal lists, creates, edits and deletes park records stored
behind a REST API.

Run without arguments to start the interactive interface. Every
notification is kept in a local journal, see 'park-terminal history'.

Configuration is read from .env, the file given with --config and
PARKS_* environment variables (PARKS_API_URL, PARKS_API_KEY,
PARKS_API_TOKEN, PARKS_STORAGE_URL, PARKS_TIMEOUT, PARKS_MAX_ATTEMPTS,
PARKS_DB_PATH, PARKS_LOG_PATH).`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			_ = db.Close()
		}
		_ = logger.Sync()
	},
	RunE: runInteractive,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output")

	for _, cmd := range []*cobra.Command{rootCmd, listCmd} {
		cmd.Flags().StringVarP(&search, "search", "s", "", "only show parks matching this text")
		cmd.Flags().StringVar(&city, "city", "", "only show parks in this city")
		cmd.Flags().StringVar(&sortBy, "sort", "name", "sort by name, city or recent")
	}

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries to show")

	rootCmd.AddCommand(listCmd, showCmd, createCmd, editCmd, deleteCmd, historyCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errShown) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// setup loads configuration and wires the shared collaborators
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err = logging.New(cfg.LogPath, verbose)
	if err != nil {
		return err
	}

	needsAPI := cmd.Name() != historyCmd.Name()
	if needsAPI {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	db, err = database.Open(cfg.DBPath)
	if err != nil {
		if !needsAPI {
			return err
		}
		logger.Warn("journal unavailable", zap.String("path", cfg.DBPath), zap.Error(err))
		db = nil
	} else {
		recorder = journal.NewRepository(db)
	}

	client = parksapi.NewClient(parksapi.Options{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Token:   cfg.Token,
		Timeout: cfg.Timeout,
		Logger:  logger,
	})
	caps = platform.NewSystem(cfg.BaseURL)
	return nil
}

func runInteractive(cmd *cobra.Command, args []string) error {
	q, err := buildQuery()
	if err != nil {
		return err
	}

	model := ui.NewModel(ui.Options{
		Client:         client,
		Caps:           caps,
		Prober:         client,
		Recorder:       recorder,
		StorageBaseURL: cfg.StorageBaseURL,
		MaxAttempts:    cfg.MaxAttempts,
		Query:          q,
		Logger:         logger,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running interface: %w", err)
	}
	return nil
}

// buildQuery turns the list flags into a query
func buildQuery() (parklist.Query, error) {
	sortKey, err := parklist.ParseSortKey(sortBy)
	if err != nil {
		return parklist.Query{}, err
	}

	c := strings.TrimSpace(city)
	if c != "" && !models.IsAllowedCity(c) {
		names := make([]string, 0, len(models.Cities()))
		for _, allowed := range models.Cities() {
			names = append(names, string(allowed))
		}
		return parklist.Query{}, fmt.Errorf("unknown city %q (want one of %s)", c, strings.Join(names, ", "))
	}

	return parklist.Query{Search: search, City: models.City(c), Sort: sortKey}, nil
}

// friendly replaces classified API errors with their user-facing message
func friendly(err error) error {
	var apiErr *parksapi.Error
	if errors.As(err, &apiErr) {
		return errors.New(apiErr.UserMessage())
	}
	return err
}
