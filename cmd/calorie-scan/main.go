package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/calorie-scan/internal/analysis"
	"github.com/zombor/calorie-scan/internal/meal"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

type options struct {
	gatewayURL     string
	gatewayKey     string
	gatewayTimeout time.Duration
	model          string
	maxTokens      int
	language       string
	promptFile     string
	askFiber       bool
	geminiKey      string
	geminiModel    string
	openaiKey      string
	openaiBaseURL  string
	openaiModel    string
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("calorie-scan")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		dbPath         = fs.StringLong("db", "calorie-scan.db", "History database file path (empty disables history)")
		analyzerType   = fs.StringLong("analyzer", "gateway", "Analyzer type: 'gateway', 'gemini' or 'openai'")
		gatewayURL     = fs.StringLong("gateway-url", "", "AI gateway endpoint that accepts messages requests")
		gatewayKey     = fs.StringLong("gateway-key", "", "API key sent to the gateway as x-api-key (optional)")
		gatewayTimeout = fs.DurationLong("gateway-timeout", 0, "Gateway request timeout (0 uses the transport default)")
		model          = fs.StringLong("model", "claude-sonnet-4-20250514", "Model name sent to the gateway")
		maxTokens      = fs.IntLong("max-tokens", 1024, "Maximum tokens in the model reply")
		language       = fs.StringLong("language", "zh", "Prompt and UI language: 'zh' or 'en'")
		promptFile     = fs.StringLong("prompt-file", "", "Prompt template file overriding the built-in prompt")
		askFiber       = fs.BoolLong("ask-fiber", "Ask the model for dietary fiber as well")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		openaiKey      = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openaiBaseURL  = fs.StringLong("openai-base-url", "", "OpenAI-compatible base URL, e.g. http://localhost:11434/v1 for Ollama")
		openaiModel    = fs.StringLong("openai-model", "gpt-4o-mini", "OpenAI model name")
		maxUploadMB    = fs.IntLong("max-upload-mb", 20, "Maximum upload size in megabytes")
		sessionTTL     = fs.DurationLong("session-ttl", meal.DefaultSessionTTL, "Idle time before a session is dropped")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		logLevel       = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		_              = fs.StringLong("config", "", "Config file (flag value pairs, one per line)")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("CALORIE_SCAN"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid log level %q\n", *logLevel)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if !slices.Contains(analysis.Languages, *language) {
		slog.Error("Unsupported language", "language", *language, "valid", analysis.Languages)
		os.Exit(1)
	}

	// Initialize analyzer
	analyzer, err := newAnalyzer(*analyzerType, options{
		gatewayURL:     *gatewayURL,
		gatewayKey:     *gatewayKey,
		gatewayTimeout: *gatewayTimeout,
		model:          *model,
		maxTokens:      *maxTokens,
		language:       *language,
		promptFile:     *promptFile,
		askFiber:       *askFiber,
		geminiKey:      *geminiKey,
		geminiModel:    *geminiModel,
		openaiKey:      *openaiKey,
		openaiBaseURL:  *openaiBaseURL,
		openaiModel:    *openaiModel,
	})
	if err != nil {
		slog.Error("Failed to initialize analyzer", "type", *analyzerType, "error", err)
		os.Exit(1)
	}
	defer analyzer.Close()

	// Initialize history database
	var db meal.DB
	if *dbPath != "" {
		slog.Info("Initializing database...", "path", *dbPath)
		boltDB, err := meal.NewBoltDB(*dbPath)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer boltDB.Close()
		db = boltDB
	} else {
		slog.Info("History disabled")
	}

	renderer, err := meal.NewRenderer(*language)
	if err != nil {
		slog.Error("Failed to initialize renderer", "error", err)
		os.Exit(1)
	}

	// Initialize service
	service := meal.NewService(analyzer, db, meal.Config{
		Language:   *language,
		MaxUpload:  int64(*maxUploadMB) << 20,
		SessionTTL: *sessionTTL,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go service.Run(ctx)

	// Initialize server
	basicAuth := meal.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := meal.NewServer(service, renderer, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
	}
}

// newPrompt loads the prompt template from a file or the embedded defaults
func newPrompt(opts options) (*analysis.Prompt, error) {
	if opts.promptFile != "" {
		slog.Info("Loading prompt template", "path", opts.promptFile)
		return analysis.LoadPrompt(opts.promptFile, opts.language, opts.askFiber)
	}
	return analysis.NewPrompt(opts.language, opts.askFiber)
}

// newAnalyzer builds the configured analyzer backend
func newAnalyzer(kind string, opts options) (analysis.Analyzer, error) {
	prompt, err := newPrompt(opts)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "gateway":
		if opts.gatewayURL == "" {
			slog.Warn("No gateway URL configured; every analysis will fail. Set --gateway-url or CALORIE_SCAN_GATEWAY_URL")
		}
		slog.Info("Initializing gateway analyzer...", "url", opts.gatewayURL, "model", opts.model)
		return analysis.NewGateway(analysis.GatewayConfig{
			URL:       opts.gatewayURL,
			APIKey:    opts.gatewayKey,
			Model:     opts.model,
			MaxTokens: opts.maxTokens,
			Timeout:   opts.gatewayTimeout,
		}, prompt)
	case "gemini":
		apiKey := opts.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
		}
		slog.Info("Initializing Gemini analyzer...", "model", opts.geminiModel)
		return analysis.NewGemini(apiKey, opts.geminiModel, opts.maxTokens, prompt)
	case "openai":
		apiKey := opts.openaiKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		slog.Info("Initializing OpenAI analyzer...", "model", opts.openaiModel, "base_url", opts.openaiBaseURL)
		return analysis.NewOpenAI(analysis.OpenAIConfig{
			APIKey:    apiKey,
			BaseURL:   opts.openaiBaseURL,
			Model:     opts.openaiModel,
			MaxTokens: opts.maxTokens,
		}, prompt)
	default:
		return nil, fmt.Errorf("invalid analyzer type %q (valid: gateway, gemini or openai)", kind)
	}
}
