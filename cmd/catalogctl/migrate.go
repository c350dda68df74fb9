package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-pos/internal/auth"
	"github.com/odyssey-erp/odyssey-pos/migrations"
)

func newMigrateCmd() *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the catalog schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.Close()
			pool, err := e.postgres(cmd.Context())
			if err != nil {
				return err
			}
			if down {
				if err := migrations.Down(cmd.Context(), pool); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema rolled back")
				return nil
			}
			version, err := migrations.Up(cmd.Context(), pool)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema at version", version)
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back every migration instead")
	return cmd
}

func newHashTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token <token>",
		Short: "Print the bcrypt hash to put in API_TOKEN_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashToken(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
