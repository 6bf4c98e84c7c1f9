package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/worklog-cli/worklog/worklog"
)

var (
	startProject string
	startTags    []string
	startAt      string
	stopAt       string
)

var startCmd = &cobra.Command{
	Use:   "start [description]",
	Short: "Start tracking a new time entry",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running time entry",
	Args:  cobra.NoArgs,
	RunE:  runStop,
}

var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Show the running time entry",
	Args:  cobra.NoArgs,
	RunE:  runNow,
}

var continueCmd = &cobra.Command{
	Use:   "continue",
	Short: "Continue the most recently stopped time entry",
	Args:  cobra.NoArgs,
	RunE:  runContinue,
}

func init() {
	startCmd.Flags().StringVarP(&startProject, "project", "p", "", "project name or id")
	startCmd.Flags().StringSliceVarP(&startTags, "tags", "t", nil, "tags for the entry")
	startCmd.Flags().StringVar(&startAt, "at", "", "start time instead of now")
	stopCmd.Flags().StringVar(&stopAt, "at", "", "stop time instead of now")
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	description := ""
	if len(args) > 0 {
		description = args[0]
	}

	extra := map[string]any{}
	if startAt != "" {
		extra["start"] = startAt
	}
	if len(startTags) > 0 {
		extra["tags"] = startTags
	}
	if startProject != "" {
		project, err := resolveProject(ctx, startProject)
		if err != nil {
			return err
		}
		extra["project"] = project
	}

	entry, err := worklog.TimeEntries.Start(ctx, appSession, description, extra)
	if err != nil {
		return err
	}
	return printEntry(ctx, cmd, entry, "started")
}

func runStop(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	var at time.Time
	if stopAt != "" {
		parsed, err := parseTimeFlag(stopAt)
		if err != nil {
			return err
		}
		at = parsed
	}
	entry, err := worklog.TimeEntries.Stop(ctx, appSession, at)
	if err != nil {
		return err
	}
	return printEntry(ctx, cmd, entry, "stopped")
}

func runNow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	entry, err := worklog.TimeEntries.Current(ctx, appSession)
	if err != nil {
		return err
	}
	if entry == nil {
		cmd.Println("no time entry is running")
		return nil
	}
	return printEntry(ctx, cmd, entry, "running")
}

func runContinue(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	source, err := latestStoppedEntry(ctx)
	if err != nil {
		return err
	}
	if source == nil {
		return fmt.Errorf("no stopped time entry to continue")
	}
	entry, err := worklog.TimeEntries.Continue(ctx, appSession, source)
	if err != nil {
		return err
	}
	return printEntry(ctx, cmd, entry, "continued")
}

// latestStoppedEntry picks the stopped entry with the most recent start.
// Entries come back sorted by start, so the last stopped one wins.
func latestStoppedEntry(ctx context.Context) (*worklog.Entity, error) {
	entries, err := worklog.TimeEntries.All(ctx, appSession)
	if err != nil {
		return nil, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		running, err := entries[i].Get(ctx, "is_running")
		if err != nil {
			return nil, err
		}
		if running == false {
			return entries[i], nil
		}
	}
	return nil, nil
}

// resolveProject accepts a numeric id or a project name.
func resolveProject(ctx context.Context, ref string) (any, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return id, nil
	}
	project, err := worklog.Project.Objects().GetBy(ctx, appSession, worklog.Conditions{"name": ref})
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fmt.Errorf("no project named %q", ref)
	}
	return project, nil
}

func parseTimeFlag(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04", "15:04"} {
		if t, err := time.ParseInLocation(layout, raw, appSession.Timezone()); err == nil {
			if layout == "15:04" {
				now := time.Now().In(appSession.Timezone())
				t = time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, appSession.Timezone())
			}
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", raw)
}

func printEntry(ctx context.Context, cmd *cobra.Command, entry *worklog.Entity, verb string) error {
	desc, err := entry.FormatField(ctx, "description")
	if err != nil {
		return err
	}
	clock, err := entry.FormatField(ctx, "duration")
	if err != nil {
		return err
	}
	if desc == "" {
		desc = "(no description)"
	}
	start, err := entry.Get(ctx, "start")
	if err != nil {
		return err
	}
	if ts, ok := start.(time.Time); ok {
		since := ts.In(appSession.Timezone()).Format(appConfig.TimeFormat())
		cmd.Printf("%s %s (%s, since %s)\n", verb, desc, clock, since)
		return nil
	}
	cmd.Printf("%s %s (%s)\n", verb, desc, clock)
	return nil
}
