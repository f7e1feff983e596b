package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devmarvs/bear/db"
	"github.com/devmarvs/bear/migrate"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(runner *migrate.Runner) error {
				applied, err := runner.Up(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "plan",
		Short: "List migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(runner *migrate.Runner) error {
				plan, err := runner.Plan(cmd.Context())
				if err != nil {
					return err
				}
				for _, entry := range plan {
					status := "pending"
					if entry.Applied {
						status = "applied"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%04d %-24s %s\n", entry.Version, entry.Name, status)
				}
				return nil
			})
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(runner *migrate.Runner) error {
				reverted, err := runner.Down(cmd.Context(), steps)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", reverted)
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)
	return cmd
}

func withRunner(run func(*migrate.Runner) error) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := db.New(cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close()
	return run(migrate.ForMain(database))
}
