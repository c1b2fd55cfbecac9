package main

import (
	app_config "github.com/calehh/hac-gov/config"
	"github.com/calehh/hac-gov/types"
	"github.com/spf13/cobra"
)

var homeDir string

var rootCmd = &cobra.Command{
	Use:          "hacgov",
	Short:        "Weighted voting governance chain",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, types.FlagHome, "", "home directory (default $HACGOV_HOME or "+app_config.DefaultHome+")")
}

func resolveHome() (string, error) {
	return app_config.ResolveHome(homeDir)
}

func urlFlag(cmd *cobra.Command, url *string) {
	cmd.Flags().StringVarP(url, "url", "u", "http://127.0.0.1:26657", "hacgov node rpc url")
}

// txFlags are shared by every command that signs and sends a transaction.
type txFlags struct {
	Url    string
	Skey   string
	Nonce  int64
	NoSend bool
}

func addTxFlags(cmd *cobra.Command, f *txFlags) {
	urlFlag(cmd, &f.Url)
	cmd.Flags().StringVarP(&f.Skey, "skeyPath", "s", "./config/priv_validator_key.json", "private key path")
	cmd.Flags().Int64VarP(&f.Nonce, "nonce", "n", -1, "account nonce, queried from the node when negative")
	cmd.Flags().BoolVarP(&f.NoSend, "nosend", "", false, "print the signed transaction instead of sending it")
}
