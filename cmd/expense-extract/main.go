package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/zombor/expense-extract/internal/receipt"
	"github.com/zombor/expense-extract/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// Ignore error if .env doesn't exist
	_ = godotenv.Load()

	fs := ff.NewFlagSet("expense-extract")
	var (
		manifestPath = fs.StringLong("manifest", "", "Manifest CSV file with one transaction per row")
		documentsDir = fs.StringLong("documents", "", "Directory holding the receipt images and PDFs")
		outputPath   = fs.StringLong("output", "", "Output file (.csv, .json or .yaml, optionally .gz or .zst)")
		prompt       = fs.StringLong("prompt", "", "Instruction text sent with every document (default: built-in accountant prompt)")
		promptFile   = fs.StringLong("prompt-file", "", "Read the instruction text from a file")
		formatName   = fs.StringLong("format", "", "Output format: csv, json or yaml (default: from the output extension)")
		scannerType  = fs.StringLong("scanner", "openai", "Scanner type: 'openai', 'gemini' or 'ollama'")
		modelName    = fs.StringLong("model", "", "Model name (default depends on the scanner)")
		openaiURL    = fs.StringLong("openai-url", scanning.DefaultOpenAIURL, "OpenAI compatible chat completions endpoint")
		openaiKey    = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		geminiKey    = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		ollamaURL    = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		pathColumn   = fs.StringLong("path-column", receipt.DefaultPathColumn, "Manifest column holding the document file name")
		urlColumn    = fs.StringLong("url-column", "", "Manifest column holding a URL whose last segment is the document file name")
		delimiter    = fs.StringLong("delimiter", ",", `Manifest delimiter (use "\t" for tabs)`)
		blankNulls   = fs.BoolLong("blank-nulls", "Treat NULL cells in the manifest as empty")
		maxDimension = fs.IntLong("max-dimension", 0, "Downscale documents whose longest side exceeds this many pixels (0 disables)")
		jpegQuality  = fs.IntLong("jpeg-quality", scanning.DefaultJPEGQuality, "JPEG quality used when re-encoding documents")
		dpi          = fs.Float64Long("dpi", 0, "PDF render resolution (0 uses the renderer default)")
		timeout      = fs.DurationLong("timeout", 0, "Per request timeout for the model service (0 disables)")
		logLevel     = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		_            = fs.StringLong("config", "", "Config file with one flag per line")
		showVersion  = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("EXPENSE_EXTRACT"),
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
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})).
		With("run_id", uuid.NewString()))

	if missing := missingFlags(map[string]string{
		"manifest":  *manifestPath,
		"documents": *documentsDir,
		"output":    *outputPath,
	}); len(missing) > 0 {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: required flags not set: --%s\n", strings.Join(missing, ", --"))
		os.Exit(1)
	}

	format, err := outputFormat(*formatName, *outputPath)
	if err != nil {
		slog.Error("Invalid output format", "error", err)
		os.Exit(1)
	}

	instruction, err := loadPrompt(*prompt, *promptFile)
	if err != nil {
		slog.Error("Failed to read prompt", "error", err)
		os.Exit(1)
	}

	delim, err := receipt.ParseDelimiter(*delimiter)
	if err != nil {
		slog.Error("Invalid delimiter", "error", err)
		os.Exit(1)
	}

	// Initialize scanner based on type
	var scanner scanning.Scanner
	switch *scannerType {
	case "openai":
		// Get OpenAI API key from flag or environment
		apiKey := *openaiKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("OpenAI API key is required. Set --openai-key flag or OPENAI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing OpenAI scanner...", "url", *openaiURL, "model", *modelName)
		scanner, err = scanning.NewOpenAI(*openaiURL, apiKey, *modelName, *timeout)
		if err != nil {
			slog.Error("Failed to initialize OpenAI", "error", err)
			os.Exit(1)
		}
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini scanner...", "model", *modelName)
		scanner, err = scanning.NewGemini(apiKey, *modelName, *timeout)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *modelName)
		scanner, err = scanning.NewOllama(*ollamaURL, *modelName, *timeout)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "openai, gemini or ollama")
		os.Exit(1)
	}
	defer scanner.Close()

	// Initialize storage
	store, err := receipt.NewLocalStorage(*documentsDir)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	converter := scanning.NewConverter()
	converter.Quality = *jpegQuality
	converter.MaxDimension = *maxDimension
	converter.DPI = *dpi

	transactions, err := receipt.ReadManifest(*manifestPath, receipt.ManifestOptions{
		PathColumn: *pathColumn,
		URLColumn:  *urlColumn,
		Delimiter:  delim,
		BlankNulls: *blankNulls,
	})
	if err != nil {
		slog.Error("Failed to read manifest", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded manifest", "path", *manifestPath, "transactions", len(transactions))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service := receipt.NewService(store, converter, scanner, instruction)
	summary := service.Run(ctx, transactions)

	if err := receipt.WriteResults(*outputPath, format, summary.Results); err != nil {
		slog.Error("Failed to write results", "path", *outputPath, "error", err)
		os.Exit(1)
	}
	slog.Info("Results written", "path", *outputPath, "format", format, "records", len(summary.Results))

	fmt.Printf("Processed %d out of %d files successfully.\n", len(summary.Results), summary.Total)
}

// missingFlags returns the names of the empty required flags, sorted
func missingFlags(required map[string]string) []string {
	var missing []string
	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

func outputFormat(name, path string) (receipt.Format, error) {
	if name != "" {
		return receipt.ParseFormat(name)
	}
	return receipt.FormatFromPath(path)
}

func loadPrompt(text, file string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return scanning.DefaultPrompt, nil
	}
	return text, nil
}
