// Command authctl is an operator tool for a Cognito user pool's access
// tokens: it prints the key discovery URL, lists the published signing
// keys, and verifies a token exactly as the HTTP middleware would.
//
// Settings come from AUTH_* environment variables (see auth.Config), an
// optional YAML file, and flags, in increasing order of precedence:
//
//	AUTH_REGION=us-east-1 AUTH_USER_POOL_ID=us-east-1_AbC authctl keys
//	authctl verify --region us-east-1 --user-pool-id us-east-1_AbC < token.txt
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
