package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devmarvs/bear/clock"
	"github.com/devmarvs/bear/db"
	"github.com/devmarvs/bear/session"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Maintain stored sessions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete expired sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			database, err := db.New(cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close()

			store, err := session.NewSQLStore(database, session.Lifetimes(cfg.Sessions.Lifetimes))
			if err != nil {
				return err
			}
			pruned, err := session.Sweep(cmd.Context(), database, store, clock.Real{}.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d session(s)\n", pruned)
			return nil
		},
	})
	return cmd
}
