package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/docgraph/docgraph/engine/document"
	"github.com/docgraph/docgraph/engine/rag"
	"github.com/spf13/cobra"
)

var askMode string

func init() {
	askCmd.Flags().StringVar(&askMode, "mode", "graph", "retrieval: graph, vector or chunks")
	rootCmd.AddCommand(askCmd)
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question with chain-of-thought reasoning",
	Long: `Answer a question from the documentation.

Modes:
  graph   retrieve knowledge-graph facts around the question's keywords
  vector  retrieve the nearest chunks from Qdrant
  chunks  put the first document chunks directly in the prompt

Example:
  docgraph ask "How do I configure NUMA settings for SAP HANA on vSphere?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := strings.Join(args, " ")
	a := newApp(settings, logger)
	defer a.close(context.Background())

	svc, err := a.rag()
	if err != nil {
		return err
	}

	var ans *rag.Answer
	switch askMode {
	case "graph":
		ans, err = svc.Ask(ctx, question)
	case "vector":
		ans, err = svc.AskVector(ctx, question)
	case "chunks":
		docs, lerr := a.loader().Load(ctx)
		if lerr != nil {
			return lerr
		}
		ans, err = svc.AskWithChunks(ctx, question, document.Split(docs, document.DefaultChunkSize, document.DefaultOverlap))
	default:
		return fmt.Errorf("unknown mode %q", askMode)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	sep := strings.Repeat("=", 60)
	fmt.Fprintf(out, "\n%s\nQUERY: %s\n%s\n", sep, question, sep)
	if len(ans.Triplets) > 0 {
		fmt.Fprintf(out, "Graph context (%d facts):\n", len(ans.Triplets))
		for _, t := range ans.Triplets {
			fmt.Fprintf(out, "  - %s\n", t)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, ans.Text)
	for _, s := range ans.Sources {
		fmt.Fprintf(out, "  [%s p.%d score %.3f]\n", s.Source, s.Page, s.Score)
	}
	return nil
}
