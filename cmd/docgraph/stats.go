package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/docgraph/docgraph/engine/domain"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge graph node and relationship counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a := newApp(settings, logger)
		defer a.close(context.Background())

		g, err := a.graphStore()
		if err != nil {
			return err
		}
		entities, err := g.Stats(ctx)
		if err != nil {
			return err
		}
		rels, err := g.RelationshipCounts(ctx)
		if err != nil {
			return err
		}
		docs, err := g.Documents().Count(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Documents: %d\n\nEntities:\n", docs)
		for _, t := range domain.OrderedEntityTypes {
			fmt.Fprintf(out, "  %-15s %d\n", t, entities[t])
		}
		fmt.Fprintln(out, "\nRelationships:")
		names := make([]string, 0, len(rels))
		for n := range rels {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(out, "  %-22s %d\n", n, rels[n])
		}
		return nil
	},
}
