package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cycleworks/internal/auth"
	"cycleworks/internal/config"
)

var tokenCmd = &cobra.Command{
	Use:   "token <email>",
	Short: "Print a signed bearer token for email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(envFile)
		if err != nil {
			return err
		}
		if err := cfg.Auth.Validate(); err != nil {
			return err
		}
		token, err := auth.NewTokens(cfg.Auth.Secret, cfg.Auth.TokenTTL).Issue(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}
