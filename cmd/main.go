package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/agentwriter-backend/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "agentwriter",
		Short: "Content generation pipeline backend",
		Long: `agentwriter serves the content API and runs the generation pipeline:
plan, research, write, edit or grammar-check, post-process, persist.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.WorkerCmd())
	rootCmd.AddCommand(cli.QueuesCmd())

	// Operator tools
	rootCmd.AddCommand(cli.TokenCmd())
	rootCmd.AddCommand(cli.RegenerateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
