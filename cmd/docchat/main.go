package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"docchat/internal/chat"
	"docchat/internal/config"
	"docchat/internal/domain"
	"docchat/internal/llm/gemini"
	"docchat/internal/llm/openai"
	"docchat/internal/logging"
	"docchat/internal/relevance"
	"docchat/internal/summarizer"
	"docchat/internal/tui"
	"docchat/internal/workspace"
)

func main() {
	os.Exit(realMain())
}

// realMain returns the process exit code so deferred cleanup runs before exit.
func realMain() int {
	_ = godotenv.Load()

	var cfgPath, dir string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/docchat/config.yaml if not provided)")
	flag.StringVar(&dir, "dir", "", "Workspace directory with Markdown documents (overrides config)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if dir != "" {
		cfg.Workspace.Dir = dir
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	defer closer.Close()
	entry := logger.WithField("service", "docchat")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, entry); err != nil {
		entry.WithError(err).Error("exiting")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg *config.AppConfig, entry *logrus.Entry) error {
	model, err := newLLM(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("llm init failed: %w", err)
	}

	var sum domain.Summarizer
	switch cfg.Summarizer.Type {
	case "frequency", "":
		sum = summarizer.NewFrequencySummarizer()
	default:
		return fmt.Errorf("unknown summarizer: %s", cfg.Summarizer.Type)
	}

	svc := chat.NewService(relevance.NewIndex(), model, sum, chat.Options{
		ContextDocuments:    cfg.Retrieval.ContextDocuments,
		SummaryMaxSentences: cfg.Summarizer.MaxSentences,
	}, entry)

	loader := workspace.Loader{Dir: cfg.Workspace.Dir, Patterns: cfg.Workspace.Patterns}
	files, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load workspace: %w", err)
	}
	for _, f := range files {
		svc.AddDocument(f.Content, f.Name)
	}
	entry.WithFields(logrus.Fields{"dir": cfg.Workspace.Dir, "documents": len(files)}).Info("workspace loaded")

	program := tea.NewProgram(tui.New(ctx, svc), tea.WithAltScreen(), tea.WithContext(ctx))

	if cfg.Workspace.Watching() {
		w, err := workspace.NewWatcher(loader, files, entry)
		if err != nil {
			return err
		}
		go func() {
			err := w.Run(ctx, func(f workspace.File) {
				doc := svc.AddDocument(f.Content, f.Name)
				program.Send(tui.DocumentAddedMsg{Document: doc})
			})
			if err != nil {
				entry.WithError(err).Warn("watcher stopped")
			}
		}()
	}

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func newLLM(ctx context.Context, cfg config.LLMConfig) (domain.LLM, error) {
	switch cfg.Provider {
	case "gemini", "":
		if cfg.Gemini == nil {
			return nil, fmt.Errorf("gemini config missing")
		}
		return gemini.NewClient(ctx, gemini.Config{
			APIKeyEnv: cfg.Gemini.APIKeyEnv,
			Model:     cfg.Gemini.Model,
		})
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai config missing")
		}
		return openai.NewClient(openai.Config{
			BaseURL:    cfg.OpenAI.BaseURL,
			APIKeyEnv:  cfg.OpenAI.APIKeyEnv,
			Model:      cfg.OpenAI.Model,
			Timeout:    time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			MaxRetries: cfg.OpenAI.Retries(),
		})
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}
