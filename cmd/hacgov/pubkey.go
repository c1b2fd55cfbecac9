package main

import (
	"encoding/hex"
	"fmt"

	"github.com/calehh/hac-gov/crypto"
	"github.com/spf13/cobra"
)

var pubkeySkey string

var pubkeyCmd = &cobra.Command{
	Use:   "pubkey",
	Short: "Print the public key and voter address of a key file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pv, err := crypto.LoadFilePV(pubkeySkey)
		if err != nil {
			return err
		}
		fmt.Println("pubkey:", hex.EncodeToString(pv.PublicKey()))
		fmt.Println("address:", pv.Address())
		return nil
	},
}

func init() {
	pubkeyCmd.Flags().StringVarP(&pubkeySkey, "skeyPath", "s", "./config/priv_validator_key.json", "private key path")
}
