package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"remotebuild/internal/api"
	"remotebuild/internal/config"
	"remotebuild/internal/engine"
	"remotebuild/internal/jenkins"
	"remotebuild/internal/logger"
	"remotebuild/internal/storage"
	"remotebuild/internal/storage/models"
	"remotebuild/internal/summary"
)

var (
	flagConfigPath string

	// trigger flags
	flagURL        string
	flagJob        string
	flagParams     []string
	flagBuildToken string
	flagUser       string
	flagAPIToken   string
	flagInsecure   bool
	flagWait       bool
	flagPersist    bool
	flagPropsFile  string
	flagRecord     bool
	flagTimeout    int
	flagInterval   int
)

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Config file to load (optional; flags and environment override it)")

	triggerCmd.Flags().StringVar(&flagURL, "url", "", "Remote Jenkins server base URL")
	triggerCmd.Flags().StringVar(&flagJob, "job", "", "Job name to trigger")
	triggerCmd.Flags().StringArrayVar(&flagParams, "param", nil, "Build parameter as KEY=VALUE (repeatable, order preserved)")
	triggerCmd.Flags().StringVar(&flagBuildToken, "build-token", "", "Build token required by the remote job")
	triggerCmd.Flags().StringVar(&flagUser, "user", "", "Jenkins username")
	triggerCmd.Flags().StringVar(&flagAPIToken, "api-token", "", "Jenkins API token")
	triggerCmd.Flags().BoolVar(&flagInsecure, "insecure", false, "Skip TLS certificate verification")
	triggerCmd.Flags().BoolVar(&flagWait, "wait", false, "Wait for the build to finish and judge its result")
	triggerCmd.Flags().BoolVar(&flagPersist, "persist", false, "Append summary fields to the properties file")
	triggerCmd.Flags().StringVar(&flagPropsFile, "props-file", "", "Properties file path (default remote_build.properties)")
	triggerCmd.Flags().BoolVar(&flagRecord, "record", false, "Record the outcome in the build-record database")
	triggerCmd.Flags().IntVar(&flagTimeout, "timeout", 0, "Total polling budget in seconds (default 3600)")
	triggerCmd.Flags().IntVar(&flagInterval, "interval", 0, "Delay between status checks in seconds (default 10)")

	rootCmd.SilenceErrors = true
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Error("remotebuild failed", "error", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "remotebuild",
	Short:        "Trigger a parameterized build on a remote CI server and track it to completion",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(config.GetLogLevel())
	},
}

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Submit a build and follow it queued, scheduled, building, finished",
	RunE:  doTrigger,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API that accepts trigger-and-track requests",
	RunE:  doServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("remotebuild: version info not available")
			return
		}
		fmt.Printf("remotebuild: %s\n", info.Main.Version)
		fmt.Printf("go:          %s\n", info.GoVersion)
	},
}

func doTrigger(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyTriggerFlags(cfg)

	// Everything below must be validated before the first network call
	if flagJob == "" {
		return errors.New("job name is required (--job)")
	}
	for _, p := range flagParams {
		if !strings.Contains(p, "=") {
			return fmt.Errorf("parameter %q is not a KEY=VALUE entry", p)
		}
	}
	if err := cfg.ValidateJenkins(); err != nil {
		return err
	}

	client := jenkins.NewClient(cfg.Jenkins)
	tracker := jenkins.NewTracker(client, cfg)

	var sink summary.Sink
	if cfg.Output.Persist {
		sink = summary.NewFileSink(cfg.Output.PropsFile)
	}
	rec := summary.NewRecorder(sink)

	req := engine.TrackRequest{
		Job:        flagJob,
		Parameters: flagParams,
		Wait:       flagWait,
	}

	outcome, trackErr := tracker.TriggerAndTrack(cmd.Context(), req, rec)

	if flagRecord {
		recordOutcome(cfg, req, outcome, trackErr)
	}

	if trackErr != nil {
		return trackErr
	}
	if !outcome.Success() {
		return errors.New(outcome.Message)
	}

	logger.Info("Build tracking finished",
		"state", string(outcome.State),
		"result", outcome.Result,
		"build_url", outcome.BuildURL,
		"queue_number", outcome.QueueNumber)
	return nil
}

// applyTriggerFlags lets command-line flags override file and environment
// configuration
func applyTriggerFlags(cfg *config.Config) {
	if flagURL != "" {
		cfg.Jenkins.URL = flagURL
	}
	if flagUser != "" {
		cfg.Jenkins.Username = flagUser
	}
	if flagAPIToken != "" {
		cfg.Jenkins.Token = flagAPIToken
		if cfg.Jenkins.Username == "" {
			cfg.Jenkins.Username = flagAPIToken
		}
	}
	if flagBuildToken != "" {
		cfg.Jenkins.BuildToken = flagBuildToken
	}
	if flagInsecure {
		cfg.Jenkins.Insecure = true
	}
	if flagPersist {
		cfg.Output.Persist = true
	}
	if flagPropsFile != "" {
		cfg.Output.PropsFile = flagPropsFile
	}
	if flagTimeout > 0 {
		cfg.Poll.TimeoutSeconds = flagTimeout
	}
	if flagInterval > 0 {
		cfg.Poll.IntervalSeconds = flagInterval
	}
}

// recordOutcome persists the terminal state of one tracked submission.
// Best effort: a storage failure must not change the exit disposition.
func recordOutcome(cfg *config.Config, req engine.TrackRequest, outcome engine.Outcome, trackErr error) {
	if err := storage.Init(cfg.Database.Path); err != nil {
		logger.Error("Failed to open build-record database", "error", err)
		return
	}
	defer storage.Close()

	record := models.BuildRecord{
		Timestamp:   time.Now(),
		JobName:     req.Job,
		Params:      strings.Join(req.Parameters, "&"),
		QueueNumber: outcome.QueueNumber,
		BuildURL:    outcome.BuildURL,
		State:       string(outcome.State),
		Result:      outcome.Result,
	}
	if trackErr != nil {
		record.Error = trackErr.Error()
	}
	if err := storage.InsertBuildRecord(record); err != nil {
		logger.Error("Failed to record build outcome", "error", err)
	}
}

func doServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	logger.Info("Starting remotebuild service", "log_level", config.GetLogLevel())

	if err := storage.Init(cfg.Database.Path); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer storage.Close()

	client := jenkins.NewClient(cfg.Jenkins)
	tracker := jenkins.NewTracker(client, cfg)
	router := api.NewRouter(*cfg, tracker)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}

	logger.Info("Shutting down server...")

	// Allow in-flight requests to complete; tracked builds keep running
	// in their goroutines until their polling budget expires.
	shutdownTimeout := 30 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err, "timeout", shutdownTimeout.String())
	} else {
		logger.Info("Server shutdown gracefully")
	}

	logger.Info("Server stopped")
	return nil
}
