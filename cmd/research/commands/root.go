// Package commands implements the research CLI (spec §6): a
// subcommand-less program that runs one evidence-gathering pass for a
// topic and writes its artifacts to a timestamped run directory.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dlevien/research-agent/internal/config"
	"github.com/dlevien/research-agent/internal/intent"
	"github.com/dlevien/research-agent/internal/intent/oracle"
	"github.com/dlevien/research-agent/internal/logging"
	"github.com/dlevien/research-agent/internal/model"
	"github.com/dlevien/research-agent/internal/pipeline"
	"github.com/dlevien/research-agent/internal/providers"
	"github.com/dlevien/research-agent/internal/providers/breaker"
	"github.com/dlevien/research-agent/internal/providers/search"
	"github.com/dlevien/research-agent/internal/providers/vertical"
	"github.com/dlevien/research-agent/internal/tracing"
	"github.com/dlevien/research-agent/internal/triangulate"
)

// Exit codes (spec §6).
const (
	exitSuccess   = 0
	exitUserError = 1
	exitTimeout   = 2
)

const version = "0.1.0"

var (
	topic     string
	depthFlag string
	outputDir string
	maxCost   float64
	strict    bool
	resume    bool
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:     "research",
	Short:   "Run an evidence-gathering research pass for a topic",
	Version: version,
	RunE:    run,
}

func init() {
	rootCmd.Flags().StringVar(&topic, "topic", "", "research topic (required)")
	rootCmd.Flags().StringVar(&depthFlag, "depth", "standard", "research depth: rapid, standard, deep")
	rootCmd.Flags().StringVar(&outputDir, "output-dir", "outputs", "directory to write run artifacts under")
	rootCmd.Flags().Float64Var(&maxCost, "max-cost", 0, "optional cost ceiling (0 = unbounded)")
	rootCmd.Flags().BoolVar(&strict, "strict", false, "disable backfill retries regardless of gate outcome")
	rootCmd.Flags().BoolVar(&resume, "resume", false, "reuse the most recent run directory for this topic instead of creating a new one")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	_ = rootCmd.MarkFlagRequired("topic")
}

// Execute runs the CLI and returns the process exit code (spec §6: 0
// success, 1 user error, 2 wall-clock timeout with partial artifacts).
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if err == errTimeout {
			return exitTimeout
		}
		return exitUserError
	}
	return exitSuccess
}

var errTimeout = fmt.Errorf("wall-clock timeout")

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	if err := logging.Initialize(level); err != nil {
		return err
	}
	logger := logging.GetLogger("cli")

	depth, err := parseDepth(depthFlag)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	tp, err := tracing.NewTracingProvider(tracing.Config{
		Enabled:  cfg.TracingEnabled,
		Endpoint: cfg.TracingEndpoint,
	})
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer func() {
		_ = tp.Stop(context.Background())
	}()

	runDir, err := resolveRunDir(outputDir, topic, resume)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("create run directory: %w", err)
	}
	logger.Info("run directory: %s", runDir)

	runner := buildRunner(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := model.ResearchRequest{
		Topic:       topic,
		Depth:       depth,
		OutputDir:   outputDir,
		Strict:      strict,
		WallTimeout: cfg.WallTimeout,
		MaxCost:     maxCost,
		Resume:      resume,
	}

	start := time.Now()
	result, err := runner.Run(ctx, req, runDir)
	// Runner.Run applies the wall-clock deadline to its own context, so a
	// timeout is visible here only as elapsed time.
	timedOut := time.Since(start) >= cfg.WallTimeout
	if err != nil {
		if ctx.Err() != nil || timedOut {
			logger.Warn("run interrupted, partial report (if any) already written")
			return errTimeout
		}
		return err
	}
	if timedOut {
		logger.Warn("wall-clock timeout reached, partial artifacts written to %s", runDir)
		return errTimeout
	}

	logger.Info("run complete: intent=%s allow_final_report=%t confidence=%s",
		result.Intent, result.Decision.AllowFinalReport, result.Decision.Confidence)
	return nil
}

func buildRunner(cfg *config.Config) *pipeline.Runner {
	b := breaker.New(breaker.Config{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		Cooldown:         time.Duration(cfg.CircuitBreaker.CooldownSeconds) * time.Second,
		MaxBackoff:       time.Duration(cfg.CircuitBreaker.MaxBackoffSeconds) * time.Second,
		InitialBackoff:   time.Duration(cfg.CircuitBreaker.InitialBackoffSeconds) * time.Second,
	})
	registry := providers.NewRegistry(b)

	if apiKey := os.Getenv("SERPAPI_API_KEY"); apiKey != "" {
		registry.Register(search.NewSerpAPIClient(apiKey, 15*time.Second))
	}
	if apiKey := os.Getenv("SERPER_API_KEY"); apiKey != "" {
		registry.Register(search.NewSerperClient(apiKey, 15*time.Second))
	}
	if cfg.EnableFreeAPIs {
		registry.Register(vertical.NewNPSClient(os.Getenv("NPS_API_KEY"), 15*time.Second))
		registry.Register(vertical.NewOpenAlexClient(os.Getenv("OPENALEX_MAILTO"), 15*time.Second))
	}

	var simOracle oracle.SimilarityOracle = oracle.LexicalFallback{}
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		simOracle = oracle.NewAnthropicOracle("", "")
	}

	classifier := intent.New(simOracle)
	clusterer := triangulate.NewClusterer(simOracle, cfg.ParaphraseThreshold)

	return pipeline.NewRunner(cfg, registry, classifier, clusterer)
}

func parseDepth(s string) (model.Depth, error) {
	switch model.Depth(s) {
	case model.DepthRapid, model.DepthStandard, model.DepthDeep:
		return model.Depth(s), nil
	default:
		return "", fmt.Errorf("invalid --depth %q: must be rapid, standard, or deep", s)
	}
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(topic string) string {
	s := slugPattern.ReplaceAllString(strings.ToLower(topic), "-")
	return strings.Trim(s, "-")
}

// resolveRunDir builds <output-dir>/<topic-slug>_<YYYYmmdd_HHMMSS> (spec
// §6), unless resume is set and a matching directory already exists, in
// which case the most recent one is reused.
func resolveRunDir(outputDir, topic string, resume bool) (string, error) {
	slug := slugify(topic)
	if slug == "" {
		return "", fmt.Errorf("--topic must contain at least one alphanumeric character")
	}

	if resume {
		if existing, ok := findLatestRunDir(outputDir, slug); ok {
			return existing, nil
		}
	}

	stamp := time.Now().Format("20060102_150405")
	return filepath.Join(outputDir, fmt.Sprintf("%s_%s", slug, stamp)), nil
}

func findLatestRunDir(outputDir, slug string) (string, bool) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return "", false
	}
	var latest string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), slug+"_") {
			continue
		}
		if e.Name() > latest {
			latest = e.Name()
		}
	}
	if latest == "" {
		return "", false
	}
	return filepath.Join(outputDir, latest), true
}
