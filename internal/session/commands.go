// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import "strings"

// CommandKind identifies a REPL command.
type CommandKind int

const (
	// CmdMessage is plain text to send to the model.
	CmdMessage CommandKind = iota
	CmdExit
	CmdHelp
	CmdHistory
	CmdModel
	CmdClear
	CmdBackend
	CmdExport
	CmdUnknown
)

// Command is one parsed input line.
type Command struct {
	Kind CommandKind

	// Arg is the command argument, or the message text for CmdMessage.
	Arg string
}

var commandNames = map[string]CommandKind{
	"/exit":    CmdExit,
	"/quit":    CmdExit,
	"/help":    CmdHelp,
	"/history": CmdHistory,
	"/model":   CmdModel,
	"/clear":   CmdClear,
	"/backend": CmdBackend,
	"/export":  CmdExport,
}

// HelpText lists the REPL commands.
const HelpText = `Commands:
  /exit              end the session
  /help              show this help
  /history           show the conversation so far
  /model <name>      change the model (no name shows the current one)
  /clear             clear the history, keeping the model
  /backend <mode>    switch backend: hosted, local-daemon or offline
  /export <path>     write the conversation to a YAML file
Anything else is sent to the model.`

// ParseCommand interprets one input line. Lines not starting with "/" are
// messages.
func ParseCommand(line string) Command {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return Command{Kind: CmdMessage, Arg: trimmed}
	}
	name, arg, _ := strings.Cut(trimmed, " ")
	kind, ok := commandNames[strings.ToLower(name)]
	if !ok {
		return Command{Kind: CmdUnknown, Arg: name}
	}
	return Command{Kind: kind, Arg: strings.TrimSpace(arg)}
}
