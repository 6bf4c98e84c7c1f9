package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/worklog-cli/worklog/worklog"
)

func printTable(out io.Writer, header []string, rows [][]string) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

// printEntity renders every readable field of one entity, one per line.
func printEntity(ctx context.Context, cmd *cobra.Command, e *worklog.Entity) error {
	if id, ok := e.ID(); ok {
		cmd.Printf("%-20s %d\n", "id", id)
	}
	for _, field := range e.Schema().Fields() {
		if !field.CanRead() {
			continue
		}
		cell, err := e.FormatField(ctx, field.Name())
		if err != nil {
			return err
		}
		if cell == "" {
			continue
		}
		cmd.Printf("%-20s %s\n", field.Name(), cell)
	}
	return nil
}
