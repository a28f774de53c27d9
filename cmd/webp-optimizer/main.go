package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"webp-optimizer-go/internal/config"
	"webp-optimizer-go/internal/converter"
	"webp-optimizer-go/internal/inspector"
	"webp-optimizer-go/internal/logger"
	"webp-optimizer-go/internal/statistics"
	"webp-optimizer-go/internal/web"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	sourceDir string
	quality   int
	maxWidth  int
	dryRun    bool
	verbose   bool
	quiet     bool
	port      int
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "webp-optimizer",
	Short: "Batch-convert JPEG/PNG images to WebP",
	Long: `WebP Optimizer converts every JPEG and PNG image in a directory to
lossy WebP, downscaling oversized images along the way, and reports the
size savings per file.

Features:
- Lossy WebP encoding at configurable quality (default 80)
- Downscales images wider than a maximum width (default 1920px) with
  Lanczos resampling
- Per-file error reporting; one bad file never aborts the batch
- Dry-run mode for safe testing
- Batch summary with total bytes saved`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConvert(cmd, args)
	},
}

// scanCmd lists candidate files and what conversion would do to them.
var scanCmd = &cobra.Command{
	Use:   "scan [directory]",
	Short: "List candidate images without converting them",
	Long: `Scan the specified directory (or the configured source directory) and
display each candidate image with its dimensions, byte size, whether it
would be downscaled, and its EXIF capture date when present. No file is
written.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(args)
	},
}

// serveCmd starts the web interface server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start web interface server",
	Long: `Starts an HTTP server exposing the converter. The API allows you to:
- Start and stop conversion runs
- Watch per-file progress over a WebSocket
- Query batch statistics

Endpoints are served under /api on the configured port (default: 8080).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&sourceDir, "source", "", "directory containing images to convert")

	rootCmd.Flags().IntVar(&quality, "quality", 0, "WebP quality 1-100 (default from config: 80)")
	rootCmd.Flags().IntVar(&maxWidth, "max-width", 0, "downscale images wider than this (default from config: 1920)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be converted without writing files")

	serveCmd.Flags().IntVar(&port, "port", 8080, "port to run web server on")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(serveCmd)
}

// initConfig loads configuration file and environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.webp-optimizer")
		viper.AddConfigPath("/etc/webp-optimizer")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// runConvert executes the batch conversion.
func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if dryRun {
		cfg.Security.DryRun = true
	}

	log := setupLogger(cfg)
	stats := statistics.NewStatistics()

	params := converter.ConversionParams{
		SourceDir:  cfg.SourceDirectory,
		Extensions: cfg.SupportedExtensions,
		MaxWidth:   cfg.Conversion.MaxWidth,
		Quality:    cfg.Conversion.Quality,
		Method:     cfg.Conversion.Method,
		AutoOrient: cfg.Conversion.AutoOrient,
		DryRun:     cfg.Security.DryRun,
	}

	conv := converter.NewDefaultConverterWithHook(func(res converter.ConversionResult) {
		if res.Resized && res.Action != "error" {
			fmt.Printf("Resized %s to %dpx width.\n", filepath.Base(res.InputPath), params.MaxWidth)
		}
		fmt.Println(res.ReportLine())
		recordResult(stats, log, res)
	})

	fmt.Printf("Scanning %s...\n", cfg.SourceDirectory)
	log.WithField("directory", cfg.SourceDirectory).Info("Starting batch conversion")

	results, err := conv.Convert(context.Background(), params)
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}

	stats.SetFilesFound(int64(len(results)))
	stats.Finalize()

	if !quiet {
		fmt.Println("\n" + stats.GetSummary())
	}
	log.WithFields(logrus.Fields{
		"converted": stats.GetFilesConverted(),
		"failed":    stats.GetFilesFailed(),
	}).Info("Batch conversion finished")

	return nil
}

// runScan lists candidates and what a conversion run would do with them.
func runScan(args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	scanDir := cfg.SourceDirectory
	if sourceDir != "" {
		scanDir = sourceDir
	}
	if len(args) > 0 {
		scanDir = args[0]
	}
	if scanDir == "" {
		scanDir = "."
	}

	log := setupLogger(cfg)
	insp := inspector.NewInspector(log)

	candidates, err := converter.ListCandidates(scanDir, cfg.SupportedExtensions)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	fmt.Printf("Scanning %s...\n", scanDir)
	if len(candidates) == 0 {
		fmt.Println("No candidate images found.")
		return nil
	}

	for _, name := range candidates {
		path := filepath.Join(scanDir, name)
		info, err := insp.Inspect(path)
		if err != nil {
			fmt.Printf("%s: unreadable (%v)\n", name, err)
			continue
		}

		line := fmt.Sprintf("%s: %dx%d, %.1fKB", name, info.Width, info.Height, float64(info.Size)/1024)
		if info.Width > cfg.Conversion.MaxWidth {
			newHeight := info.Height * cfg.Conversion.MaxWidth / info.Width
			line += fmt.Sprintf(", would resize to %dx%d", cfg.Conversion.MaxWidth, newHeight)
		}
		if info.TakenAt != nil {
			line += fmt.Sprintf(", taken %s", info.TakenAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Println(line)
	}

	fmt.Printf("\n%d candidate file(s).\n", len(candidates))
	return nil
}

// runServe starts the web server and handles graceful shutdown.
func runServe() error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if sourceDir != "" {
		cfg.SourceDirectory = sourceDir
	}

	log := setupLogger(cfg)
	server := web.NewServer(cfg, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	fmt.Printf("WebP Optimizer web interface started on http://localhost:%d\n", port)
	fmt.Println("Press Ctrl+C to stop the server")

	<-sigChan
	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	fmt.Println("Server stopped")
	return nil
}

// recordResult applies a per-file result to the batch statistics.
func recordResult(stats *statistics.Statistics, log *logrus.Logger, res converter.ConversionResult) {
	switch res.Action {
	case "converted":
		stats.IncrementFilesConverted()
		stats.AddBytes(res.OriginalSize, res.ConvertedSize)
		if res.Resized {
			stats.IncrementFilesResized()
		}
		logger.WithFileOperation(log, res.InputPath, "convert").
			Debugf("Converted to %s (%.1f%% saved)", res.OutputPath, res.PercentageSaved)
	case "planned":
		stats.IncrementFilesPlanned()
	default:
		stats.IncrementFilesFailed()
		stats.AddError(res.InputPath, string(res.Kind), res.Message)
		logger.WithFileOperation(log, res.InputPath, string(res.Kind)).
			Warnf("Conversion failed: %s", res.Message)
	}
}

// loadConfig loads configuration and applies CLI overrides.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	if sourceDir != "" {
		cfg.SourceDirectory = sourceDir
	}

	if cfg.SourceDirectory == "" && len(args) > 0 {
		cfg.SourceDirectory = args[0]
	}

	if cfg.SourceDirectory == "" {
		cfg.SourceDirectory = "."
	}

	if cmd.Flags().Changed("quality") {
		cfg.Conversion.Quality = quality
	}
	if cmd.Flags().Changed("max-width") {
		cfg.Conversion.MaxWidth = maxWidth
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.LoggerConfig{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    !quiet,
	}

	if verbose {
		loggerCfg.Level = "debug"
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
