// Package main implements the docgraph command: dependency checks, document
// ingestion into the knowledge graph, question answering and the HTTP API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/docgraph/docgraph/pkg/config"
	"github.com/docgraph/docgraph/pkg/logging"
	"github.com/spf13/cobra"
)

var (
	presetName string
	configFile string

	settings *config.Settings
	logger   *slog.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "docgraph",
	Short: "Graph RAG over PDF documentation",
	Long: `docgraph extracts entities from PDF documentation into a Neo4j knowledge
graph and answers questions over it with chain-of-thought prompting.

Settings come from a named preset, an optional YAML file and environment
variables such as NEO4J_URI or OLLAMA_LLM_MODEL, in increasing precedence.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&presetName, "preset", config.PresetDefault,
		"settings preset ("+strings.Join(config.Presets(), ", ")+")")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML settings file")
}

func loadSettings(cmd *cobra.Command, _ []string) error {
	s, err := config.Load(config.LoadOptions{Preset: presetName, File: configFile})
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	settings = s
	logger = logging.New(os.Stderr, logging.Options{Level: s.LogLevel, Format: s.LogFormat})
	slog.SetDefault(logger)
	logger.Debug("settings loaded", "preset", presetName, "neo4j", s.Neo4jURI, "llm", s.OllamaLLMModel)
	return nil
}
