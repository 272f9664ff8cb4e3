package main

import (
	"medintake.com/intake/api"
	"medintake.com/intake/catalog"
	"medintake.com/intake/flow"
	"medintake.com/intake/logger"
	"medintake.com/intake/review"
	"medintake.com/intake/rules"
	"medintake.com/intake/s3client"
	"medintake.com/intake/sessions"
	"medintake.com/intake/worker"
	"context"
	"errors"
	"fmt"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

type Config struct {
	CatalogPath            string `envconfig:"INTAKE_CATALOG_PATH" default:""`
	Store                  string `envconfig:"INTAKE_STORE" default:"memory"`
	EventsActive           bool   `envconfig:"INTAKE_EVENTS_ACTIVE" default:"false"`
	ArchiveActive          bool   `envconfig:"INTAKE_ARCHIVE_ACTIVE" default:"false"`
	RestAPIPort            string `envconfig:"INTAKE_REST_API_PORT" default:"10000"`
	AutoAdvanceMs          int    `envconfig:"INTAKE_AUTO_ADVANCE_MS" default:"300"`
	CancelStaleAutoAdvance bool   `envconfig:"INTAKE_CANCEL_STALE_AUTO_ADVANCE" default:"false"`
}

const (
	storeMemory = "memory"
	storeRedis  = "redis"
)

const (
	dispatcherRestartDelay = 5 * time.Second
	shutdownTimeout        = 10 * time.Second
)

func main() {
	logger.SetupLogging()
	mainLogger := logger.NewLogger("Main")
	if err := newRootCommand().Execute(); err != nil {
		mainLogger.Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "intake",
		Short:         "Medical intake flow service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(), newCatalogCommand(), newArchiveCommand())
	return root
}

func readConfig() (Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return config, fmt.Errorf("failed to read environment: %w", err)
	}
	if config.Store != storeMemory && config.Store != storeRedis {
		return config, fmt.Errorf("unknown INTAKE_STORE %q", config.Store)
	}
	return config, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(path)
}

// autoAdvanceDelay maps the env setting onto flow options: 0 disables auto-advance.
func autoAdvanceDelay(ms int) time.Duration {
	if ms <= 0 {
		return -1
	}
	return time.Duration(ms) * time.Millisecond
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST adapter",
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := readConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, config)
		},
	}
}

func serve(ctx context.Context, config Config) error {
	mainLogger := logger.NewLogger("Main")

	c, err := loadCatalog(config.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	mainLogger.Info().Str("fingerprint", c.Fingerprint()).Int("questions", len(c.All())).Msg("Catalog loaded")

	store, closeStore, err := openStore(config.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	var sink flow.EventSink
	if config.EventsActive {
		dispatcher, err := worker.New()
		if err != nil {
			return fmt.Errorf("could not initialize event dispatcher: %w", err)
		}
		defer dispatcher.Close()
		go runDispatcher(ctx, dispatcher, &mainLogger)
		sink = dispatcher
	}

	var archiver review.Archiver
	if config.ArchiveActive {
		s3, err := s3client.New()
		if err != nil {
			return fmt.Errorf("could not initialize S3 client: %w", err)
		}
		defer s3.Close()
		archiver = s3
	}

	engineLogger := logger.NewLogger("flow")
	registry := api.NewRegistry(store, func(ctx context.Context, sessionID string) (*flow.Engine, error) {
		return flow.New(ctx, flow.Options{
			SessionID:              sessionID,
			Catalog:                c,
			Persister:              store,
			Events:                 sink,
			AutoAdvanceDelay:       autoAdvanceDelay(config.AutoAdvanceMs),
			CancelStaleAutoAdvance: config.CancelStaleAutoAdvance,
			Logger:                 &engineLogger,
		})
	})
	defer registry.Close()

	ruleSet := rules.Default()
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", config.RestAPIPort),
		Handler:           api.NewServer(registry, review.NewSubmitter(ruleSet, archiver), ruleSet).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		mainLogger.Info().Msgf("REST API on %s", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("REST API stopped with error: %w", err)
	case <-ctx.Done():
	}
	mainLogger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func openStore(kind string) (api.Store, func(), error) {
	if kind == storeRedis {
		store, err := sessions.NewRedisStore()
		if err != nil {
			return nil, nil, fmt.Errorf("could not initialize Redis session store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	}
	store := sessions.NewMemoryStore()
	return store, func() { _ = store.Close() }, nil
}

func runDispatcher(ctx context.Context, dispatcher *worker.Dispatcher, mainLogger *zerolog.Logger) {
	for {
		err := dispatcher.Start(ctx)
		if ctx.Err() != nil || errors.Is(err, worker.ErrClosed) {
			return
		}
		mainLogger.Err(err).Msg("Event dispatcher returned with error. Restarting in 5 seconds")
		select {
		case <-ctx.Done():
			return
		case <-time.After(dispatcherRestartDelay):
		}
	}
}

func newCatalogCommand() *cobra.Command {
	var path string
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Catalog tools",
	}
	check := &cobra.Command{
		Use:   "check",
		Short: "Load and validate the question catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				path = os.Getenv("INTAKE_CATALOG_PATH")
			}
			c, err := loadCatalog(path)
			if err != nil {
				return err
			}
			printCatalogStats(cmd, c)
			return nil
		},
	}
	check.Flags().StringVarP(&path, "file", "f", "", "catalog YAML file (defaults to the embedded catalog)")
	catalogCmd.AddCommand(check)
	return catalogCmd
}

func printCatalogStats(cmd *cobra.Command, c *catalog.Catalog) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "version:      %d\n", c.Version())
	fmt.Fprintf(out, "fingerprint:  %s\n", c.Fingerprint())
	fmt.Fprintf(out, "categories:   %d\n", len(c.Categories()))
	fmt.Fprintf(out, "demographics: %d\n", len(c.Demographics()))
	fmt.Fprintf(out, "conditions:   %d\n", len(c.Conditions()))
	fmt.Fprintf(out, "medications:  %d\n", len(c.Medications()))
	fmt.Fprintf(out, "documents:    %d\n", len(c.Documents()))
}

func newArchiveCommand() *cobra.Command {
	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "Archived submissions",
	}
	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print an archived submission export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s3, err := s3client.New()
			if err != nil {
				return err
			}
			defer s3.Close()
			body, err := s3.Download(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		},
	}
	archiveCmd.AddCommand(get)
	return archiveCmd
}
