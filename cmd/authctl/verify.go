package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/StricklySoft/stricklysoft-cognito-auth/pkg/auth"
)

// errRejected is returned when the token fails verification so the
// process exits non-zero. The rejection has already been printed.
var errRejected = errors.New("token rejected")

func newVerifyCmd(flags *globalFlags) *cobra.Command {
	var header string

	cmd := &cobra.Command{
		Use:   "verify [token]",
		Short: "Verify an access token and print the resulting principal",
		Long: `Verify an access token against the user pool's signing keys.

The token is read from the argument, or from stdin when no argument is
given. Use --header to pass a full Authorization header value instead,
which also exercises header parsing.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			authn, err := auth.NewAuthenticator(cfg)
			if err != nil {
				return err
			}

			value := header
			if !cmd.Flags().Changed("header") {
				token, err := readToken(cmd, args)
				if err != nil {
					return err
				}
				value = "Bearer " + token
			}

			principal, authErr := authn.Authenticate(cmd.Context(), value)
			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")

			if authErr != nil {
				if err := enc.Encode(authErr.Response()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "status=%d reason=%s\n", authErr.HTTPStatus(), auth.ReasonOf(authErr))
				cmd.SilenceErrors = true
				return errRejected
			}
			return enc.Encode(principal)
		},
	}
	cmd.Flags().StringVar(&header, "header", "", "full Authorization header value to verify")
	return cmd
}

// readToken returns the token argument, or the first line of stdin.
func readToken(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return strings.TrimSpace(args[0]), nil
	}
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 16*1024), 64*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read token from stdin: %w", err)
		}
		return "", errors.New("no token given: pass it as an argument or on stdin")
	}
	return strings.TrimSpace(scanner.Text()), nil
}
