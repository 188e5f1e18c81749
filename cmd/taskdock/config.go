package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskdock/taskdock/internal/config"
	"github.com/taskdock/taskdock/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented starter config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GlobalConfigPath()
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Println(ui.Success("Wrote " + path))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("data dir:     %s\n", cfg.Data.Dir)
		fmt.Printf("database:     %s\n", cfg.DatabasePath())
		fmt.Printf("server addr:  %s\n", cfg.Server.Addr)
		fmt.Printf("inbox:        enabled=%v dir=%s\n", cfg.Inbox.Enabled, cfg.InboxDir())
		if cfg.Log.File != "" {
			fmt.Printf("log file:     %s\n", cfg.Log.File)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
