// Command maintain manages roadmap content: it writes missing articles and
// quizzes with a language model, imports content into PostgreSQL and cleans
// up duplicate or empty roadmaps.
//
// Usage:
//
//	maintain generate [-overwrite] [-budget n] <file.yaml>...
//	maintain import <dir>
//	maintain dedupe [-dry-run]
//	maintain prune-empty [-dry-run]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/LikhithSP/Knowledge-Tree/internal/ai"
	"github.com/LikhithSP/Knowledge-Tree/internal/generate"
	"github.com/LikhithSP/Knowledge-Tree/internal/platform/config"
	"github.com/LikhithSP/Knowledge-Tree/internal/platform/database"
	"github.com/LikhithSP/Knowledge-Tree/internal/platform/logging"
	"github.com/LikhithSP/Knowledge-Tree/internal/roadmap"
)

var errUsage = errors.New("usage: maintain generate [-overwrite] [-budget n] <file.yaml>... | import <dir> | dedupe [-dry-run] | prune-empty [-dry-run]")

// namedProvider is one entry of the generation fallback chain.
type namedProvider struct {
	name     string
	provider ai.Provider
}

type tool struct {
	store     roadmap.ContentStore
	providers []namedProvider
	model     string
	budget    int
	out       io.Writer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	args := os.Args[1:]
	t := &tool{out: os.Stdout, model: cfg.AI.Model, budget: cfg.AI.TokenBudget}

	if len(args) > 0 && args[0] == "generate" {
		if err := cfg.ValidateAI(); err != nil {
			slog.Error("invalid AI config", "error", err)
			os.Exit(1)
		}
		t.providers = providers(cfg.AI)
	} else {
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			slog.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to migrate", "error", err)
			os.Exit(1)
		}
		t.store, err = roadmap.NewPostgresStore(db.Pool)
		if err != nil {
			slog.Error("failed to open store", "error", err)
			os.Exit(1)
		}
	}

	if err := t.run(ctx, args); err != nil {
		slog.Error("maintenance failed", "error", err)
		os.Exit(1)
	}
}

// providers builds the generation fallback chain from config: the primary
// provider, then a local Ollama server when one is configured.
func providers(cfg config.AIConfig) []namedProvider {
	var opts []ai.OpenAIOption
	if cfg.BaseURL != "" {
		opts = append(opts, ai.WithBaseURL(cfg.BaseURL))
	}

	var chain []namedProvider
	switch cfg.Provider {
	case "openrouter":
		chain = append(chain, namedProvider{"openrouter", ai.NewOpenRouterProvider(cfg.APIKey, opts...)})
	case "openai":
		chain = append(chain, namedProvider{"openai", ai.NewOpenAIProvider(cfg.APIKey, opts...)})
	case "ollama":
		chain = append(chain, namedProvider{"ollama", ai.NewOllamaProvider(cfg.BaseURL)})
	}
	if cfg.OllamaURL != "" && cfg.Provider != "ollama" {
		chain = append(chain, namedProvider{"ollama", ai.NewOllamaProvider(cfg.OllamaURL)})
	}
	return chain
}

func (t *tool) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "generate":
		return t.generate(ctx, args[1:])

	case "import":
		if len(args) != 2 {
			return errUsage
		}
		loader, err := roadmap.NewLoader(args[1])
		if err != nil {
			return err
		}
		stats, err := loader.Import(ctx, t.store)
		if err != nil {
			return err
		}
		fmt.Fprintf(t.out, "imported %d roadmaps, %d topics, %d edges (%d skipped)\n",
			stats.Roadmaps, stats.Topics, stats.Edges, stats.Skipped)
		return nil

	case "dedupe", "prune-empty":
		fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
		fs.SetOutput(t.out)
		dryRun := fs.Bool("dry-run", false, "report without deleting")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}

		var (
			removed []string
			err     error
		)
		if args[0] == "dedupe" {
			removed, err = roadmap.Deduplicate(ctx, t.store, *dryRun)
		} else {
			removed, err = roadmap.RemoveEmpty(ctx, t.store, *dryRun)
		}
		if err != nil {
			return err
		}
		verb := "removed"
		if *dryRun {
			verb = "would remove"
		}
		fmt.Fprintf(t.out, "%s %d roadmaps\n", verb, len(removed))
		for _, id := range removed {
			fmt.Fprintln(t.out, id)
		}
		return nil
	}
	return errUsage
}

// generate fills each file in place. A file is rewritten even when its
// generation failed part way, so a rerun only asks for what is still missing.
func (t *tool) generate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(t.out)
	overwrite := fs.Bool("overwrite", false, "regenerate articles and quizzes that already exist")
	budget := fs.Int("budget", t.budget, "stop after spending this many tokens (0 = unlimited)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	router := ai.NewRouter(ai.NewBudget(int64(*budget)))
	for _, p := range t.providers {
		router.Register(p.name, p.provider)
	}
	gen := generate.New(router, generate.WithModel(t.model))

	var total generate.Stats
	for _, path := range fs.Args() {
		rf, err := roadmap.ReadRoadmapFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		stats, genErr := gen.Fill(ctx, &rf, *overwrite)
		total.Add(stats)
		if stats != (generate.Stats{}) {
			if err := roadmap.WriteRoadmapFile(path, rf); err != nil {
				return err
			}
		}
		if errors.Is(genErr, ai.ErrBudgetExhausted) {
			fmt.Fprintf(t.out, "token budget exhausted in %s\n", path)
			break
		}
		if genErr != nil {
			return fmt.Errorf("generate %s: %w", path, genErr)
		}
	}

	fmt.Fprintf(t.out, "generated %d articles, %d quizzes (%d placeholder)\n",
		total.Articles, total.Quizzes, total.Fallbacks)
	return nil
}
