package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/config"
	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/secrets"
)

var encryptFlags struct {
	legacy bool
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt <plaintext>",
	Short: "Encrypt a value for the encryption section of the config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		codec, err := loadCodec()
		if err != nil {
			return err
		}
		encrypt := codec.Encrypt
		if encryptFlags.legacy {
			encrypt = codec.EncryptStatic
		}
		out, err := encrypt(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt <ciphertext>",
	Short: "Decrypt a value produced by encrypt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		codec, err := loadCodec()
		if err != nil {
			return err
		}
		out, err := codec.Decrypt(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	encryptCmd.Flags().BoolVar(&encryptFlags.legacy, "legacy", false, "Use the configured static IV (readable by older deployments)")
}

func loadCodec() (*secrets.Codec, error) {
	enc, err := config.LoadEncryption(rootFlags.config, rootFlags.envFile)
	if err != nil {
		return nil, err
	}
	return secrets.FromConfig(enc)
}
