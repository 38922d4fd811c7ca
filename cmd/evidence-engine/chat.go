// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/backend"
	"github.com/pdiddy/evidence-engine/internal/config"
	"github.com/pdiddy/evidence-engine/internal/session"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation with the configured backend",
	Long: `Chat keeps a conversation history and sends it in full on every turn.
Type /help for commands. /backend switches between hosted, local-daemon and
offline mid-session; editing backend.mode in the config file does the same.

Without a credential every turn is answered by the offline stub.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	applyBackendFlags(cmd, &cfg.Backend)
	runner, transport, err := newRunner(cfg.Backend)
	if err != nil {
		return err
	}
	defer func() {
		log.Debug("chat finished", zap.Int64("outbound_requests", transport.Count()))
	}()

	if v.ConfigFileUsed() != "" && !cmd.Flags().Changed("mode") {
		config.Watch(v, log, func(c types.Config) {
			mode, err := backend.ParseMode(c.Backend.Mode)
			if err != nil {
				return
			}
			if mode != runner.Config().Mode {
				runner.SetMode(mode)
				log.Info("backend switched by config", zap.String("mode", string(mode)))
			}
		})
	}

	sess := session.New(runner, cfg.Backend.Model, cfg.Backend.MaxTokens)
	log.Debug("chat session started", zap.String("session_id", sess.ID()))

	repl := &session.REPL{Session: sess, Backend: runner}
	return repl.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
}

var sendCmd = &cobra.Command{
	Use:   "send <message>...",
	Short: "Send a single message and print the reply",
	Long: `Send delivers one message to the selected backend and prints the reply.
Recoverable failures (rate limits, server errors, timeouts) and fatal ones
(bad credential, bad request) are reported with their status.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

type sendOutput struct {
	Text          string `json:"text"`
	ModelUsed     string `json:"model_used"`
	Variant       string `json:"variant"`
	Fallback      bool   `json:"fallback,omitempty"`
	FallbackCause string `json:"fallback_cause,omitempty"`
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	applyBackendFlags(cmd, &cfg.Backend)
	runner, transport, err := newRunner(cfg.Backend)
	if err != nil {
		return err
	}

	reply, err := runner.Send(ctx, strings.Join(args, " "), cfg.Backend.Model, cfg.Backend.MaxTokens)
	log.Debug("send finished",
		zap.String("variant", string(reply.Variant)),
		zap.Int64("outbound_requests", transport.Count()))
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sendOutput{
			Text:          reply.Text,
			ModelUsed:     reply.ModelUsed,
			Variant:       string(reply.Variant),
			Fallback:      reply.Fallback,
			FallbackCause: reply.FallbackCause,
		})
	}

	if reply.Fallback {
		fmt.Fprintf(os.Stderr, "warning: local daemon unreachable (%s); offline stub answered\n", reply.FallbackCause)
	}
	fmt.Fprintln(w, reply.Text)
	return nil
}

func init() {
	addBackendFlags(chatCmd)
	addBackendFlags(sendCmd)
	sendCmd.Flags().Bool("json", false, "print the reply with its model and variant as JSON")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sendCmd)
}
