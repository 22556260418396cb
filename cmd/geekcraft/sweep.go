// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

package main

import (
	"github.com/spf13/cobra"
)

func newSweepCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired sessions once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := c.open(cmd, nil)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.service.CleanupExpiredSessions(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("Expired sessions removed")
			return nil
		},
	}
}
