package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/StricklySoft/stricklysoft-cognito-auth/pkg/auth"
)

func newDiscoveryURLCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "discovery-url",
		Short: "Print the issuer and JWKS URL for the user pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "issuer:   %s\n", cfg.Issuer())
			fmt.Fprintf(out, "jwks_url: %s\n", cfg.DiscoveryURL())
			return nil
		},
	}
}

func newKeysCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Fetch and list the user pool's signing keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			authn, err := auth.NewAuthenticator(cfg)
			if err != nil {
				return err
			}

			keys, err := authn.KeyCache().Keys(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(keys)
			}

			fetchedAt, _ := authn.KeyCache().FetchedAt()
			fmt.Fprintf(out, "%d key(s) from %s at %s\n\n", keys.Len(), authn.KeyCache().URL(), fetchedAt.Format(time.RFC3339))

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KID\tKTY\tALG\tUSE\tIMPORT")
			for _, k := range keys.Keys {
				status := "ok"
				if _, err := k.PublicKey(); err != nil {
					status = "error: " + err.Error()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", k.Kid, k.Kty, k.Alg, k.Use, status)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw key set as JSON")
	return cmd
}
