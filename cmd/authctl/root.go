package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/StricklySoft/stricklysoft-cognito-auth/pkg/auth"
	"github.com/StricklySoft/stricklysoft-cognito-auth/pkg/config"
	sserr "github.com/StricklySoft/stricklysoft-cognito-auth/pkg/errors"
)

// envPrefix is the environment prefix for auth.Config fields.
const envPrefix = "AUTH"

// globalFlags holds flags shared by every subcommand.
type globalFlags struct {
	configPath   string
	region       string
	userPoolID   string
	jwksURL      string
	fetchTimeout time.Duration
	verbose      bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:          "authctl",
		Short:        "Inspect Cognito signing keys and verify access tokens",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to a YAML or JSON config file")
	pf.StringVar(&flags.region, "region", "", "AWS region of the user pool (env AUTH_REGION)")
	pf.StringVar(&flags.userPoolID, "user-pool-id", "", "Cognito user pool ID (env AUTH_USER_POOL_ID)")
	pf.StringVar(&flags.jwksURL, "jwks-url", "", "override the derived JWKS URL (env AUTH_JWKS_URL)")
	pf.DurationVar(&flags.fetchTimeout, "timeout", 0, "JWKS fetch timeout (env AUTH_JWKS_FETCH_TIMEOUT)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log rejection details to stderr")

	root.AddCommand(
		newDiscoveryURLCmd(flags),
		newKeysCmd(flags),
		newVerifyCmd(flags),
	)
	return root
}

// loadConfig layers defaults, file and environment through the config
// loader, then applies explicitly set flags and validates the result.
// Required-field errors from the loader are deferred until flags have
// been applied, since flags may supply those fields.
func loadConfig(cmd *cobra.Command, flags *globalFlags) (auth.Config, error) {
	cfg := auth.DefaultConfig()

	loader := config.New().WithEnvPrefix(envPrefix)
	if flags.configPath != "" {
		loader = loader.WithFile(flags.configPath)
	}
	if err := loader.Load(&cfg); err != nil &&
		!sserr.HasCode(err, sserr.CodeValidationRequired) &&
		!sserr.HasCode(err, sserr.CodeValidation) {
		return auth.Config{}, err
	}

	fs := cmd.Flags()
	if fs.Changed("region") {
		cfg.Region = flags.region
	}
	if fs.Changed("user-pool-id") {
		cfg.UserPoolID = flags.userPoolID
	}
	if fs.Changed("jwks-url") {
		cfg.JWKSURL = flags.jwksURL
	}
	if fs.Changed("timeout") {
		cfg.FetchTimeout = flags.fetchTimeout
	}

	level := slog.LevelError
	if flags.verbose {
		level = slog.LevelDebug
	}
	cfg.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	if err := cfg.Validate(); err != nil {
		return auth.Config{}, err
	}
	return cfg, nil
}
