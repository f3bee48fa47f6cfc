package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/daviddao/incr/internal/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "incr",
		Short: "Incrementally evaluated spreadsheet",
		Long: `incr stores cells holding HCL expressions in SQLite and evaluates them
through a revisioned dependency cache: after a change, only cells that read
the changed cell are re-validated, and only those whose value changed are
propagated further.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default "+config.FileName+")")
	pf.String("db", "", "SQLite database path")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.BoolP("verbose", "v", false, "shorthand for --log-level debug")

	root.PersistentPreRun = func(cmd *cobra.Command, _ []string) { initConfig(cmd.Root()) }

	root.AddCommand(
		newInitCmd(),
		newSetCmd(),
		newRmCmd(),
		newGetCmd(),
		newLsCmd(),
		newExplainCmd(),
		newLogCmd(),
		newRunCmd(),
	)
	return root
}

func initConfig(root *cobra.Command) {
	if cfgFile, _ := root.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".incr")
		viper.SetConfigType("toml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("INCR")
	viper.AutomaticEnv()

	pf := root.PersistentFlags()
	_ = viper.BindPFlag("db_path", pf.Lookup("db"))
	_ = viper.BindPFlag("log_level", pf.Lookup("log-level"))

	// It's fine if no config file is found; we use defaults.
	_ = viper.ReadInConfig()
}
