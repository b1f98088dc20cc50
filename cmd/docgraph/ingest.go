package main

import (
	"context"
	"fmt"
	"time"

	"github.com/docgraph/docgraph/engine/document"
	"github.com/docgraph/docgraph/engine/ingest"
	"github.com/spf13/cobra"
)

var (
	ingestReset   bool
	ingestLimit   int
	ingestAll     bool
	ingestVectors bool
	ingestAsync   bool
	ingestWorkers int
)

func init() {
	ingestCmd.Flags().BoolVar(&ingestReset, "reset", false, "delete the existing graph first")
	ingestCmd.Flags().IntVar(&ingestLimit, "limit", 0, "chunks to process (default from settings)")
	ingestCmd.Flags().BoolVar(&ingestAll, "all", false, "process every chunk")
	ingestCmd.Flags().BoolVar(&ingestVectors, "vectors", false, "also index chunk embeddings in Qdrant")
	ingestCmd.Flags().BoolVar(&ingestAsync, "async", false, "queue documents on NATS instead of ingesting in-process")
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", ingest.DefaultWorkers, "concurrent chunks")
	ingestCmd.AddCommand(consumeCmd)
	rootCmd.AddCommand(ingestCmd)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Extract entities from the documents into the knowledge graph",
	Long: `Load every PDF under the document directory, split it into chunks and run
each chunk through LLM entity extraction into Neo4j. Chunks that yield no
entities are skipped.

Examples:
  # Rebuild the graph from the first 20 chunks
  docgraph ingest --reset

  # Everything, plus the vector index
  docgraph ingest --all --vectors

  # Hand the documents to a running consumer
  docgraph ingest --async`,
	RunE: runIngest,
}

// drainTimeout bounds how long consume waits for an in-flight document.
const drainTimeout = 2 * time.Minute

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Ingest documents queued on NATS until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a := newApp(settings, logger)
		defer a.close(context.Background())

		nc, err := a.natsConn()
		if err != nil {
			return err
		}
		if nc == nil {
			return fmt.Errorf("consume needs NATS_URL")
		}
		in, err := a.ingester(ctx)
		if err != nil {
			return err
		}
		sub, err := in.StartConsumer(nc)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", ingest.Subject, err)
		}
		a.log.Info("ingest: consuming", "subject", ingest.Subject)
		<-ctx.Done()
		if err := ingest.Drain(sub, drainTimeout); err != nil {
			a.log.Warn("ingest: shutdown", "error", err)
		}
		return nil
	},
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a := newApp(settings, logger)
	defer a.close(context.Background())

	docs, err := a.loader().Load(ctx)
	if err != nil {
		return err
	}
	a.log.Info("ingest: documents loaded", "count", len(docs), "dir", a.cfg.DocDir)

	if ingestAsync {
		nc, err := a.natsConn()
		if err != nil {
			return err
		}
		if nc == nil {
			return fmt.Errorf("--async needs NATS_URL")
		}
		if err := ingest.Publish(ctx, nc, docs); err != nil {
			return err
		}
		if err := nc.Flush(); err != nil {
			return fmt.Errorf("flush nats: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Queued %d documents on %s\n", len(docs), ingest.Subject)
		return nil
	}

	in, err := a.ingester(ctx)
	if err != nil {
		return err
	}
	chunks := document.Split(docs, document.DefaultChunkSize, document.DefaultOverlap)

	limit := ingestLimit
	switch {
	case ingestAll:
		limit = -1
	case limit == 0:
		limit = a.cfg.IngestLimit
	}
	rep, err := in.Run(ctx, chunks, ingest.Options{Reset: ingestReset, Limit: limit, Workers: ingestWorkers})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Processed %d of %d chunks in %s\n", rep.Processed, len(chunks), rep.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "  ingested: %d  skipped: %d  failed: %d\n", rep.Ingested, rep.Skipped, rep.Failed)
	fmt.Fprintf(out, "  entities: %d  relationships: %d\n", rep.Entities, rep.Relationships)

	if ingestVectors {
		indexed := chunks
		if limit > 0 && len(indexed) > limit {
			indexed = indexed[:limit]
		}
		n, err := in.IndexVectors(ctx, indexed, ingestWorkers)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  vectors indexed: %d\n", n)
	}
	if rep.Failed > 0 {
		return fmt.Errorf("%d chunks failed", rep.Failed)
	}
	return nil
}
