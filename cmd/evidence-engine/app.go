// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/backend"
	"github.com/pdiddy/evidence-engine/internal/httputil"
	"github.com/pdiddy/evidence-engine/internal/secrets"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// bindFlag ties a flag to a config key so an explicit flag beats the
// environment, the config file, and the default.
func bindFlag(key string, f *pflag.Flag) {
	if err := v.BindPFlag(key, f); err != nil {
		panic(err)
	}
}

// applyBackendFlags copies the backend flags a command defines onto c.
// Several commands share these flag names, so they are applied per command
// instead of being bound to config keys.
func applyBackendFlags(cmd *cobra.Command, c *types.BackendConfig) {
	flags := cmd.Flags()
	if flags.Changed("model") {
		c.Model, _ = flags.GetString("model")
	}
	if flags.Changed("mode") {
		c.Mode, _ = flags.GetString("mode")
	}
	if flags.Changed("credential") {
		c.Credential, _ = flags.GetString("credential")
	}
	if flags.Changed("max-tokens") {
		c.MaxTokens, _ = flags.GetInt("max-tokens")
	}
}

// addBackendFlags defines the flags applyBackendFlags reads.
func addBackendFlags(cmd *cobra.Command) {
	cmd.Flags().String("mode", "", "backend: hosted, local-daemon or offline (default: hosted when a credential is present)")
	cmd.Flags().String("model", "", "model identifier")
	cmd.Flags().String("credential", "", "API credential (default: OPENAI_API_KEY or .secrets/openai-api-key)")
	cmd.Flags().Int("max-tokens", 0, "reply token bound")
}

// signalContext is cancelled on interrupt or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newRunner builds the backend runner. The credential is resolved here, once:
// flag or config, then OPENAI_API_KEY, then the secrets directory.
func newRunner(c types.BackendConfig) (*backend.Runner, *httputil.CountingTransport, error) {
	cred, origin := secrets.ResolveCredential(c.Credential, os.Getenv, loadedSecrets)
	c.Credential = cred

	bc, err := backend.ConfigFrom(c)
	if err != nil {
		return nil, nil, err
	}

	transport := &httputil.CountingTransport{Logger: log}
	runner := backend.NewRunner(bc,
		backend.WithHTTPClient(transport.Client(0)),
		backend.WithLogger(log),
	)
	log.Debug("backend runner ready",
		zap.String("selected", string(runner.Select())),
		zap.String("credential_origin", string(origin)),
		zap.String("model", bc.Model))
	return runner, transport, nil
}
