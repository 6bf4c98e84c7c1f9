package main

import (
	"github.com/spf13/cobra"
)

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the authenticated user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		user, err := appSession.CurrentUser(ctx)
		if err != nil {
			return err
		}
		return printEntity(ctx, cmd, user)
	},
}
