package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"autoingest/internal/ipc"
)

func newUserCommand(ctx *commandContext) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage workflow owners",
	}

	var fullName string
	var email string
	var role string
	addCmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user that can own workflows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.UserAdd(ipc.UserAddRequest{
					Username: args[0],
					FullName: fullName,
					Email:    email,
					Role:     role,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created user %d (%s)\n", resp.ID, resp.Username)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&fullName, "name", "", "Full name")
	addCmd.Flags().StringVar(&email, "email", "", "Email address")
	addCmd.Flags().StringVar(&role, "role", "user", "Role")

	userCmd.AddCommand(addCmd)
	return userCmd
}
