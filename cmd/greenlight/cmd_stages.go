package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/kingrea/greenlight/internal/pipeline"
)

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "Print the stage graph and the waves it runs in",
	RunE: func(cmd *cobra.Command, _ []string) error {
		graph := pipeline.DefaultGraph()
		w := table.NewWriter()
		w.SetStyle(table.StyleLight)
		w.AppendHeader(table.Row{"Wave", "Stage", "Needs", "After"})
		for i, wave := range graph.Waves() {
			for _, id := range wave {
				node, _ := graph.Node(id)
				w.AppendRow(table.Row{i + 1, id, joinIDs(node.Needs), joinIDs(node.After)})
			}
			w.AppendSeparator()
		}
		fmt.Fprintln(cmd.OutOrStdout(), w.Render())
		return nil
	},
}

func joinIDs(ids []pipeline.StageID) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}
