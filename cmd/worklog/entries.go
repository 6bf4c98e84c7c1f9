package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/worklog-cli/worklog/worklog"
)

var (
	lsStart string
	lsStop  string
)

var addCmd = &cobra.Command{
	Use:   "add <start> <stop> [description]",
	Short: "Add a finished time entry",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runAdd,
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List time entries",
	Args:  cobra.NoArgs,
	RunE:  runLs,
}

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a time entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runRm,
}

func init() {
	lsCmd.Flags().StringVar(&lsStart, "start", "", "only entries starting at or after this time")
	lsCmd.Flags().StringVar(&lsStop, "stop", "", "only entries starting before this time")
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	raw := map[string]any{
		"start": args[0],
		"stop":  args[1],
	}
	if len(args) > 2 {
		raw["description"] = args[2]
	}
	entry, err := worklog.TimeEntry.New(ctx, appSession, raw)
	if err != nil {
		return err
	}
	if err := entry.Save(ctx); err != nil {
		return err
	}
	id, _ := entry.ID()
	cmd.Printf("added time entry #%d\n", id)
	return nil
}

func runLs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	conds := worklog.Conditions{}
	if lsStart != "" {
		conds["start"] = lsStart
	}
	if lsStop != "" {
		conds["stop"] = lsStop
	}

	entries, err := worklog.TimeEntries.Filter(ctx, appSession, conds)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		id, _ := entry.ID()
		row := []string{strconv.FormatInt(id, 10)}
		for _, field := range []string{"start", "duration", "description", "tags"} {
			cell, err := entry.FormatField(ctx, field)
			if err != nil {
				return err
			}
			row = append(row, cell)
		}
		rows = append(rows, row)
	}
	return printTable(cmd.OutOrStdout(), []string{"id", "start", "duration", "description", "tags"}, rows)
}

func runRm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", args[0])
	}
	entry, err := worklog.TimeEntries.Get(ctx, appSession, id)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("no time entry #%d", id)
	}
	if err := entry.Delete(ctx); err != nil {
		return err
	}
	cmd.Printf("deleted time entry #%d\n", id)
	return nil
}
