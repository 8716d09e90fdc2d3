package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aulaviva/quizengine/internal/bank"
	"github.com/aulaviva/quizengine/internal/handler"
	appI18n "github.com/aulaviva/quizengine/internal/i18n"
	"github.com/aulaviva/quizengine/internal/ingest"
	"github.com/aulaviva/quizengine/internal/llm"
	"github.com/aulaviva/quizengine/internal/model"
	"github.com/aulaviva/quizengine/internal/session"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "quizengine",
		Short: "Quiz authoring, import and assessment engine",
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `quizengine --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP quiz server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "quizengine.db", "SQLite database path")
	f.StringSliceP("questions", "q", nil, "Question files to import on startup (repeatable)")
	f.StringP("lang", "l", "pt", "Default message language (en, pt)")
	f.Int("pool-size", 20, "Questions per session when a pool quiz has no target count")
	f.String("retry-exclusion", "seen", "Questions excluded on retry after a failed attempt (seen, none)")
	f.StringSlice("allowed-origins", []string{"*"}, "CORS allowed origins")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "", "LLM model for question generation (empty disables /generate)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import question files into the catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	f := cmd.Flags()
	f.String("db", "quizengine.db", "SQLite database path")
	f.StringP("format", "f", "", "Format hint (json, md); autodetected when empty")
	f.String("course", "", "Course id to tag imported questions with")
	f.String("module", "", "Module id to tag imported questions with")
	f.String("lesson", "", "Lesson id to tag imported questions with")
	f.StringP("lang", "l", "pt", "Summary message language (en, pt)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("QUIZENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("quizengine")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/quizengine")
	v.AddConfigPath("/etc/quizengine")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := bank.Open(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	if err := preloadQuestions(cmd.Context(), db, v.GetStringSlice("questions")); err != nil {
		return fmt.Errorf("preload questions: %w", err)
	}

	criterion, err := session.ParseCriterion(v.GetString("retry-exclusion"))
	if err != nil {
		return err
	}

	var llmClient *llm.Client
	if modelName := v.GetString("llm-model"); modelName != "" {
		llmClient = llm.New(v.GetString("llm-url"), v.GetString("llm-key"), modelName, lang)
		if err := llmClient.Ping(context.Background()); err != nil {
			return err
		}
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", modelName)
	}

	cfg := model.ServerConfig{
		DefaultPoolSize: v.GetInt("pool-size"),
		RetryExclusion:  string(criterion),
		AllowedOrigins:  v.GetStringSlice("allowed-origins"),
	}
	history := session.NewMemoryHistory()
	policy := session.RetryExclusionPolicy{History: history, Criterion: criterion}
	h := handler.New(db, db, session.NewManager(), history, policy, llmClient, cfg)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"db", v.GetString("db"),
		"lang", lang,
		"pool_size", cfg.DefaultPoolSize,
		"retry_exclusion", cfg.RetryExclusion,
		"llm_enabled", llmClient != nil,
	)
	return http.ListenAndServe(addr, r)
}

// preloadQuestions imports each given file at startup. Files that cannot be
// recognized fail the boot; per-question rejections only end up in the log.
func preloadQuestions(ctx context.Context, db *bank.SQLite, paths []string) error {
	imp := &ingest.Importer{Bank: db}
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		summary, err := imp.Import(ctx, raw, formatHintFor(path), model.Scope{})
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		slog.Info("preloaded questions", "path", path, "imported", summary.Imported, "parsed", summary.Parsed)
	}
	return nil
}

// formatHintFor derives a format hint from a file extension.
func formatHintFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".json"):
		return "json"
	case strings.HasSuffix(path, ".md"), strings.HasSuffix(path, ".markdown"):
		return "md"
	case strings.HasSuffix(path, ".txt"):
		return "txt"
	}
	return ""
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := bank.Open(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	scope := model.Scope{
		CourseID: v.GetString("course"),
		ModuleID: v.GetString("module"),
		LessonID: v.GetString("lesson"),
	}
	imp := &ingest.Importer{Bank: db}

	ctx := appI18n.WithLocalizer(cmd.Context(), appI18n.NewLocalizer(v.GetString("lang")))
	for _, path := range args {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		hint := v.GetString("format")
		if hint == "" {
			hint = formatHintFor(path)
		}
		summary, err := imp.Import(ctx, raw, hint, scope)
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		fmt.Printf("%s: %s\n", path, summary.Message(ctx))
	}
	return nil
}
