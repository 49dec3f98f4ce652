package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/agentwatch/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "agentwatch",
	Short: "Notify humans when AI coding agents in tmux need them",
	Long: `agentwatch watches AI coding agents (Claude Code, Codex, OpenCode and
others) running in tmux sessions. It reads each agent's pane, asks an AI
model whether the agent is waiting for a human, extracts the pending
question and emits one notification per question, with a single reminder.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/agentwatch/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Defaults first so they apply without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("AGENTWATCH")
	// AGENTWATCH_DEDUP_LOCK_MINUTES overrides dedup.lock_minutes
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing config file is fine
	_ = viper.ReadInConfig()
}
