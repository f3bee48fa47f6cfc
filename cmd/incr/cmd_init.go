package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daviddao/incr/internal/config"
)

func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write " + config.FileName + " and create the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := config.Write(config.FileName, cfg, force); err != nil {
				return err
			}
			s, err := openStore(cfg.DBPath)
			if err != nil {
				return err
			}
			defer s.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (db: %s)\n", config.FileName, cfg.DBPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}
