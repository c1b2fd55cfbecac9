package main

import (
	"fmt"
	"os"
)

func main() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(proposeCmd)
	rootCmd.AddCommand(voteCmd)
	rootCmd.AddCommand(executeCmd)
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(removeVoterCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(pubkeyCmd)
	rootCmd.AddCommand(versionCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
