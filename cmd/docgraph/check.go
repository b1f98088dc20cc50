package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docgraph/docgraph/engine/check"
	"github.com/docgraph/docgraph/pkg/llm"
	"github.com/spf13/cobra"
)

var (
	checkInfra   bool
	checkPublish bool
)

func init() {
	checkCmd.PersistentFlags().BoolVar(&checkInfra, "infra", false, "also check Redis and Qdrant")
	checkCmd.PersistentFlags().BoolVar(&checkPublish, "publish", false, "publish the summary to NATS")
	checkCmd.AddCommand(checkCloudCmd)
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the local LLM, graph database and RAG pipeline",
	Long: `Run the dependency checks in order and write a pass/fail report to the
console and the configured log file:

  1. Ollama LLM connection
  2. Neo4j database connection
  3. Document loading and basic vector RAG
  4. Full graph RAG (needs the APOC plugin)

The command exits non-zero when any check fails.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a := newApp(settings, logger)
		defer a.close(context.Background())
		return runSuite(cmd.Context(), a, check.LocalLayout, settings.LogFile, "", localChecks(a))
	},
}

var checkCloudCmd = &cobra.Command{
	Use:   "cloud",
	Short: "Validate Azure OpenAI and Neo4j Aura with APOC",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a := newApp(settings, logger)
		defer a.close(context.Background())
		dir := filepath.Dir(settings.LogFile)
		checks, err := cloudChecks(a)
		if err != nil {
			return err
		}
		return runSuite(cmd.Context(), a, check.CloudLayout, filepath.Join(dir, "azure_test_results.log"), settings.LogFile, checks)
	},
}

func localChecks(a *app) []check.Check {
	g, gerr := a.graphStore()
	checks := []check.Check{
		check.Ollama(a.local, a.ollama, a.cfg.OllamaLLMModel, a.cfg.OllamaURL()),
		failIf(gerr, check.NameNeo4j, func() check.Check { return check.Neo4j(g, a.cfg.Neo4jURI, a.cfg.Neo4jUsername) }),
		lazyCheck(check.NameBasicRAG, func(ctx context.Context) (check.Check, error) {
			in, err := a.ingester(ctx)
			if err != nil {
				return check.Check{}, err
			}
			svc, err := a.rag()
			if err != nil {
				return check.Check{}, err
			}
			return check.BasicRAG(check.BasicRAGDeps{
				Loader: a.loader(), LLM: a.local, Embedder: a.local, Indexer: in, Asker: svc,
			}), nil
		}),
		lazyCheck(check.NameGraphRAG, func(ctx context.Context) (check.Check, error) {
			in, err := a.ingester(ctx)
			if err != nil {
				return check.Check{}, err
			}
			svc, err := a.rag()
			if err != nil {
				return check.Check{}, err
			}
			return check.GraphRAG(check.GraphRAGDeps{
				Loader: a.loader(), Plugins: g, Ingester: in, Asker: svc,
			}), nil
		}),
	}
	return append(checks, infraChecks(a)...)
}

func cloudChecks(a *app) ([]check.Check, error) {
	if !a.cfg.AzureConfigured() {
		return nil, fmt.Errorf("azure openai is not configured: set AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_API_KEY and AZURE_OPENAI_DEPLOYMENT")
	}
	az, err := llm.NewAzure(llm.AzureOptions{
		Endpoint:   a.cfg.AzureEndpoint,
		APIKey:     a.cfg.AzureAPIKey,
		Deployment: a.cfg.AzureDeployment,
		APIVersion: a.cfg.AzureAPIVersion,
	})
	if err != nil {
		return nil, err
	}
	guarded := llm.Guard(az, llm.GuardOpts{Backend: "azure", Metrics: a.metrics})
	g, gerr := a.graphStore()
	checks := []check.Check{
		check.Azure(guarded),
		failIf(gerr, check.NameAura, func() check.Check { return check.Aura(g) }),
	}
	return append(checks, infraChecks(a)...), nil
}

func infraChecks(a *app) []check.Check {
	if !checkInfra {
		return nil
	}
	vs, verr := a.vectorStore()
	return []check.Check{
		check.Redis(a.redis(), a.cfg.RedisAddr()),
		failIf(verr, check.NameQdrant, func() check.Check { return check.Qdrant(vs, a.cfg.QdrantAddr, a.cfg.QdrantCollection) }),
	}
}

// failIf turns a setup error into a failing check of the same name.
func failIf(err error, name string, build func() check.Check) check.Check {
	if err != nil {
		return check.Check{Name: name, Run: func(context.Context) (string, error) { return "", err }}
	}
	return build()
}

// lazyCheck defers building a check until it runs, so setup errors are
// reported as that check's failure.
func lazyCheck(name string, build func(ctx context.Context) (check.Check, error)) check.Check {
	return check.Check{Name: name, Run: func(ctx context.Context) (string, error) {
		c, err := build(ctx)
		if err != nil {
			return "", err
		}
		return c.Run(ctx)
	}}
}

func runSuite(ctx context.Context, a *app, layout check.Layout, logPath, compare string, checks []check.Check) error {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	report, f, err := check.OpenReport(layout, logPath, os.Stdout)
	if err != nil {
		return err
	}
	defer f.Close()
	report.Compare = compare

	suite := &check.Suite{
		Checks:   checks,
		Timeout:  a.cfg.CheckTimeout,
		Reporter: report,
		Metrics:  a.metrics,
		Logger:   a.log,
	}
	outcomes := suite.Run(ctx)

	if checkPublish {
		nc, err := a.natsConn()
		switch {
		case err != nil:
			a.log.Error("check: publish summary", "error", err)
		case nc == nil:
			a.log.Warn("check: --publish given but NATS_URL is empty")
		default:
			if err := check.Publish(ctx, nc, check.Summarize(layout.Title, time.Now(), outcomes)); err != nil {
				a.log.Error("check: publish summary", "error", err)
			} else if err := nc.Flush(); err != nil {
				a.log.Error("check: flush nats", "error", err)
			}
		}
	}

	if passed := check.Passed(outcomes); passed != len(outcomes) {
		return fmt.Errorf("%d/%d checks passed", passed, len(outcomes))
	}
	return nil
}
