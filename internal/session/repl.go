// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/pdiddy/evidence-engine/internal/backend"
)

// Switcher changes the backend variant. *backend.Runner implements it.
type Switcher interface {
	SetMode(m backend.Mode)
	Select() backend.Mode
}

// REPL reads lines, runs commands, and sends everything else through the
// session.
type REPL struct {
	Session *Session
	Backend Switcher
	Prompt  string
}

// Run loops until /exit, end of input, or ctx is cancelled. Backend
// failures are printed and the loop continues.
func (r *REPL) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	prompt := r.Prompt
	if prompt == "" {
		prompt = "> "
	}
	fmt.Fprintf(out, "session %s (backend %s, model %s). /help for commands.\n",
		r.Session.ID(), r.Backend.Select(), r.Session.Model())

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(out, prompt)
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}

		cmd := ParseCommand(sc.Text())
		switch cmd.Kind {
		case CmdExit:
			return nil
		case CmdHelp:
			fmt.Fprintln(out, HelpText)
		case CmdHistory:
			r.printHistory(out)
		case CmdModel:
			if cmd.Arg != "" {
				r.Session.SetModel(cmd.Arg)
			}
			fmt.Fprintf(out, "model: %s\n", r.Session.Model())
		case CmdClear:
			r.Session.Clear()
			fmt.Fprintln(out, "history cleared")
		case CmdBackend:
			r.switchBackend(out, cmd.Arg)
		case CmdExport:
			r.export(out, cmd.Arg)
		case CmdUnknown:
			fmt.Fprintf(out, "unknown command %s; /help lists commands\n", cmd.Arg)
		case CmdMessage:
			if cmd.Arg == "" {
				continue
			}
			text, err := r.Session.Send(ctx, cmd.Arg)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			if last := r.Session.LastReply(); last.Fallback {
				fmt.Fprintf(out, "(daemon unreachable, offline stub answered: %s)\n", last.FallbackCause)
			}
			fmt.Fprintln(out, text)
		}
	}
}

func (r *REPL) printHistory(out io.Writer) {
	turns := r.Session.History()
	if len(turns) == 0 {
		fmt.Fprintln(out, "(no turns yet)")
		return
	}
	for i, t := range turns {
		fmt.Fprintf(out, "%d. [%s, %s] %s\n", i+1, t.Role, t.ModelUsed, t.Content)
	}
}

func (r *REPL) switchBackend(out io.Writer, arg string) {
	if arg == "" {
		fmt.Fprintf(out, "backend: %s\n", r.Backend.Select())
		return
	}
	mode, err := backend.ParseMode(arg)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return
	}
	r.Backend.SetMode(mode)
	if sel := r.Backend.Select(); sel != mode && mode != "" {
		fmt.Fprintf(out, "backend: %s (no credential, requested %s)\n", sel, mode)
		return
	}
	fmt.Fprintf(out, "backend: %s\n", r.Backend.Select())
}

func (r *REPL) export(out io.Writer, path string) {
	path = strings.TrimSpace(path)
	if path == "" {
		fmt.Fprintln(out, "usage: /export <path>")
		return
	}
	var buf bytes.Buffer
	if err := r.Session.Export(&buf); err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		fmt.Fprintf(out, "error: writing %s: %v\n", path, err)
		return
	}
	fmt.Fprintf(out, "exported %d turns to %s\n", len(r.Session.History()), path)
}
