package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "cycleworks/docs"
)

// @title Cycleworks API
// @version 1.0
// @description Storefront backend for bicycle parts: users, products, orders, reviews and card payments.
// @BasePath /
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization

var envFile string

func main() {
	root := &cobra.Command{
		Use:           "cycleworks",
		Short:         "Cycleworks storefront API",
		RunE:          runServe, // serving is the default action
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to read before the environment")

	root.AddCommand(serveCmd, tokenCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
