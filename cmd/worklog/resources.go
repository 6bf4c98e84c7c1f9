package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/worklog-cli/worklog/worklog"
)

// resourceCommand builds the shared ls/get/add/rm surface for a simple
// entity area. Subcommands the schema cannot support are left out.
func resourceCommand(use string, schema *worklog.Schema, listFields []string) *cobra.Command {
	area := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Manage %s", use),
	}

	area.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: fmt.Sprintf("List %s", use),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			entities, err := schema.Objects().All(ctx, appSession)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(entities))
			for _, e := range entities {
				id, _ := e.ID()
				row := []string{strconv.FormatInt(id, 10)}
				for _, field := range listFields {
					cell, err := e.FormatField(ctx, field)
					if err != nil {
						return err
					}
					row = append(row, cell)
				}
				rows = append(rows, row)
			}
			return printTable(cmd.OutOrStdout(), append([]string{"id"}, listFields...), rows)
		},
	})

	area.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: fmt.Sprintf("Show one of the %s", use),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			e, err := schema.Objects().Get(ctx, appSession, id)
			if err != nil {
				return err
			}
			if e == nil {
				return fmt.Errorf("no %s #%d", schema.Name(), id)
			}
			return printEntity(ctx, cmd, e)
		},
	})

	if schema.CanCreate() {
		area.AddCommand(&cobra.Command{
			Use:   "add <name>",
			Short: fmt.Sprintf("Create one of the %s", use),
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				e, err := schema.New(ctx, appSession, map[string]any{"name": args[0]})
				if err != nil {
					return err
				}
				if err := e.Save(ctx); err != nil {
					return err
				}
				id, _ := e.ID()
				cmd.Printf("created %s #%d\n", schema.Name(), id)
				return nil
			},
		})
	}

	if schema.CanDelete() {
		area.AddCommand(&cobra.Command{
			Use:   "rm <id>",
			Short: fmt.Sprintf("Delete one of the %s", use),
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid id %q", args[0])
				}
				e, err := schema.Objects().Get(ctx, appSession, id)
				if err != nil {
					return err
				}
				if e == nil {
					return fmt.Errorf("no %s #%d", schema.Name(), id)
				}
				if err := e.Delete(ctx); err != nil {
					return err
				}
				cmd.Printf("deleted %s #%d\n", schema.Name(), id)
				return nil
			},
		})
	}

	return area
}
