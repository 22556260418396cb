// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/geekcraft/geekcraft/internal/auth"
)

// errRejected signals a well-formed request the service refused. The JSON
// response has already been printed.
var errRejected = oops.Code("AUTH_REJECTED").Errorf("request rejected")

// validateOutput is printed by `user validate`.
type validateOutput struct {
	Valid   bool          `json:"valid"`
	Session *auth.Session `json:"session,omitempty"`
}

func newUserCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Register, log in, log out and validate tokens",
	}

	cmd.AddCommand(newUserRegisterCmd(c))
	cmd.AddCommand(newUserLoginCmd(c))
	cmd.AddCommand(newUserLogoutCmd(c))
	cmd.AddCommand(newUserValidateCmd(c))

	return cmd
}

func newUserRegisterCmd(c *cli) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Create an account",
		Long:  `Create an account. The password is read from --password or, if unset, from the first line of stdin.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd, func(rt *runtime) error {
				pw, err := readPassword(cmd, password)
				if err != nil {
					return err
				}
				return printResponse(cmd, rt.service.Register(cmd.Context(), args[0], pw))
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func newUserLoginCmd(c *cli) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Check credentials and print a session token",
		Long:  `Check credentials and print a session token. The password is read from --password or, if unset, from the first line of stdin.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd, func(rt *runtime) error {
				pw, err := readPassword(cmd, password)
				if err != nil {
					return err
				}
				return printResponse(cmd, rt.service.Login(cmd.Context(), args[0], pw))
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func newUserLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout <token>",
		Short: "End a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd, func(rt *runtime) error {
				return printResponse(cmd, rt.service.Logout(cmd.Context(), args[0]))
			})
		},
	}
}

func newUserValidateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <token>",
		Short: "Print the session for a token if it is live",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd, func(rt *runtime) error {
				session := rt.service.ValidateToken(cmd.Context(), args[0])
				if err := writeJSON(cmd.OutOrStdout(), validateOutput{Valid: session != nil, Session: session}); err != nil {
					return err
				}
				if session == nil {
					return errRejected
				}
				return nil
			})
		},
	}
}

func (c *cli) withService(cmd *cobra.Command, fn func(rt *runtime) error) error {
	rt, err := c.open(cmd, nil)
	if err != nil {
		return err
	}
	defer rt.close()
	return fn(rt)
}

func readPassword(cmd *cobra.Command, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", oops.Code("INPUT_FAILED").Wrap(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printResponse(cmd *cobra.Command, resp auth.Response) error {
	if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
		return err
	}
	if !resp.Success {
		return errRejected
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return oops.Code("OUTPUT_FAILED").Wrap(err)
	}
	return nil
}
