package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/dyluth/warren/internal/graph"
	"github.com/dyluth/warren/internal/printer"
	"github.com/spf13/cobra"
)

var (
	graphConfigPath string
	graphRedisURL   string
	graphInstance   string
	graphOutput     string
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the routing graph as GEXF",
	Long: `Export the routing graph as GEXF.

Builds the producer-to-consumer routing graph from the bind and output
registries and writes it as a GEXF 1.2 document, ready for Gephi or any
other graph tool.

Examples:
  # Print the graph to stdout
  warren graph

  # Write it to a file
  warren graph --output fleet.gexf`,
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().StringVarP(&graphConfigPath, "config", "c", "", "Path to warren.yml (optional)")
	graphCmd.Flags().StringVar(&graphRedisURL, "redis-url", "", "Redis connection URL (default redis://localhost:6379)")
	graphCmd.Flags().StringVarP(&graphInstance, "instance", "n", "", "Fleet instance name (default \"default\")")
	graphCmd.Flags().StringVarP(&graphOutput, "output", "o", "", "Write the GEXF document to this file instead of stdout")
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(cmd, graphConfigPath, graphRedisURL, graphInstance)
	if err != nil {
		return err
	}

	client, err := connectFleet(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	g, err := graph.NewBuilder(client).Build(ctx)
	if err != nil {
		return fmt.Errorf("failed to build routing graph: %w", err)
	}

	doc, err := g.GEXF()
	if err != nil {
		return fmt.Errorf("failed to encode routing graph: %w", err)
	}

	if graphOutput == "" {
		_, err := cmd.OutOrStdout().Write(doc)
		return err
	}

	if err := os.WriteFile(graphOutput, doc, 0o644); err != nil {
		return printer.Error(
			"failed to write graph file",
			fmt.Sprintf("Error: %v", err),
			[]string{fmt.Sprintf("Check that %s is writable", graphOutput)},
		)
	}
	printer.Success("Wrote routing graph to %s\n", graphOutput)
	return nil
}
