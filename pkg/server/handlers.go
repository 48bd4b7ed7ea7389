package server

import (
	"bytes"

	"github.com/ienet/earthnet/pkg/protocol"
)

// clientCommands is every command the server acts on. Anything else is
// subject to the configured unknown-command policy.
var clientCommands = protocol.CommandTable{
	"/send":  {Arity: 1, Greedy: true},
	"/msg":   {Arity: 2, Greedy: true},
	"/join":  {Arity: 1},
	"/plays": {Arity: 2},
	"/playc": {Arity: 2},
}

// handleCommand processes one null-terminated line from a logged-in client.
// A returned error means the session must be dropped; user-level mistakes
// are answered with /error and keep the connection open.
func (s *Server) handleCommand(sess *Session, line []byte) error {
	if !sess.Allow() {
		sess.Deliver(protocol.ErrorText("You are sending commands too fast"))
		return nil
	}

	trimmed := bytes.TrimLeft(line, " \t")
	if len(trimmed) == 0 {
		return nil
	}

	// A line without a leading slash is chat, the game client sends most
	// messages this way.
	if trimmed[0] != '/' {
		s.metrics.RecordCommand("/send")
		return s.lobby.BroadcastChat(sess.Username, string(trimmed))
	}

	cmd, err := protocol.ParseCommand(line, clientCommands)
	if err != nil {
		s.metrics.RecordMalformedCommand()
		sess.Deliver(protocol.ErrorText("Malformed command"))
		return nil
	}
	s.metrics.RecordCommand(cmd.Name)

	switch cmd.Name {
	case "/send":
		return s.lobby.BroadcastChat(sess.Username, cmd.Args[0])
	case "/msg":
		return s.lobby.PrivateMessage(sess.Username, cmd.Args[0], cmd.Args[1])
	case "/join":
		return s.lobby.JoinChannel(sess.Username, cmd.Args[0])
	case "/plays":
		return s.lobby.HostGame(sess.Username, cmd.Args[0], cmd.Args[1])
	case "/playc":
		return s.lobby.JoinGame(sess.Username, cmd.Args[0], cmd.Args[1])
	default:
		if s.config.UnknownPolicy == "forward_as_chat" {
			// Relay the remainder after the command name; a bare unknown
			// command has nothing worth saying.
			if len(cmd.Args) == 0 {
				return nil
			}
			return s.lobby.BroadcastChat(sess.Username, cmd.Args[0])
		}
		s.log.Debug().Str("user", sess.Username).Str("command", cmd.Name).Msg("dropping unknown command")
		return nil
	}
}
