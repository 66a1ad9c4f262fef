// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the classgate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classgate",
		Short: "ClassGate - student and teacher sign-in with email passcodes",
		Long: `ClassGate registers students and teachers, confirms new accounts
with a one-time passcode sent by email, and guards the dashboards behind a
session cookie.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
