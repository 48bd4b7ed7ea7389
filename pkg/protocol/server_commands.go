package protocol

import (
	"fmt"
	"net"

	"github.com/google/uuid"
)

// Server-originated plaintext messages. Every argument is quoted, embedded
// quotes are escaped as %22, and the message ends with the 0x00 terminator.
// The $-prefixed names announce additions, the &-prefixed names removals.

func escapeQuotes(in string) string {
	out := make([]byte, 0, len(in)+8)
	for i := 0; i < len(in); i++ {
		if in[i] == '"' {
			out = append(out, '%', '2', '2')
		} else {
			out = append(out, in[i])
		}
	}
	return string(out)
}

// FormatCommand renders a command name and quoted arguments as one
// null-terminated message.
func FormatCommand(name string, args ...string) []byte {
	out := make([]byte, 0, len(name)+16)
	out = append(out, name...)
	for _, arg := range args {
		out = append(out, ' ', '"')
		out = append(out, escapeQuotes(arg)...)
		out = append(out, '"')
	}
	return append(out, 0)
}

// ChatText relays channel chat from a user.
func ChatText(username, text string) []byte {
	return FormatCommand("/send", username, text)
}

// PrivateText delivers a private message; location is the sender's current
// channel or game, target is the addressed user/#channel/$game.
func PrivateText(location, from, target, text string) []byte {
	return FormatCommand("/msg", location, from, target, text)
}

// PrivateEcho confirms a sent private message back to the sender.
func PrivateEcho(target, text string) []byte {
	return FormatCommand("/msgc", target, text)
}

// ErrorText reports a rejected command or lookup failure to one client.
func ErrorText(reason string) []byte {
	return FormatCommand("/error", reason)
}

// JoinedChannel confirms the recipient's own channel change.
func JoinedChannel(channel string) []byte {
	return FormatCommand("/join", channel)
}

// ChannelAdded announces a new channel to everyone.
func ChannelAdded(channel string) []byte {
	// Second parameter unknown; the original server always sends "0".
	return FormatCommand("/$channel", channel, "0")
}

// ChannelDropped announces a removed channel to everyone.
func ChannelDropped(channel string) []byte {
	return FormatCommand("/&channel", channel)
}

// RosterUser lists one existing member to a client that just joined a
// channel. Note: no slash; the client treats it as a roster line, not an
// event.
func RosterUser(username string) []byte {
	return FormatCommand("$user", username, "0")
}

// UserJoined announces a user entering the recipient's channel. origin is
// the user's previous location, empty on login.
func UserJoined(username string, versionIdx uint32, origin string) []byte {
	idx := fmt.Sprintf("%d", versionIdx)
	if origin == "" {
		return FormatCommand("/$user", username, idx)
	}
	return FormatCommand("/$user", username, idx, origin)
}

// UserLeft announces a user leaving the recipient's channel. destination is
// where they went, empty on disconnect.
func UserLeft(username, destination string) []byte {
	if destination == "" {
		return FormatCommand("/&user", username)
	}
	return FormatCommand("/&user", username, destination)
}

// GameCreated acknowledges a host's game request with the session id the
// host must echo back to open the game.
func GameCreated(version uuid.UUID, name string, password []byte, id uuid.UUID) []byte {
	return FormatCommand("/plays", version.String(), name, string(password), "0xcb", id.String())
}

// GameJoin hands a joining client the host address for an open game.
func GameJoin(version uuid.UUID, name string, password []byte, hostIP net.IP, id uuid.UUID) []byte {
	ip4 := hostIP.To4()
	var raw uint32
	if ip4 != nil {
		// The game wants the address as a little-endian hex word.
		raw = uint32(ip4[3])<<24 | uint32(ip4[2])<<16 | uint32(ip4[1])<<8 | uint32(ip4[0])
	}
	return FormatCommand("/playc",
		version.String(), name, string(password),
		fmt.Sprintf("0x%08x", raw), id.String(), hostIP.String())
}

// GameAdded announces an open game to everyone.
func GameAdded(name string, id uuid.UUID) []byte {
	// Extra parameters unknown; mirrors the original server's constants.
	return FormatCommand("/$play", name, "0", "0", "0", id.String(), "0")
}

// GameDropped announces a closed or started game to everyone.
func GameDropped(name string) []byte {
	return FormatCommand("/&play", name)
}

// SyncStats pushes updated lobby counters to a client.
func SyncStats(usersTotal, usersOnline, channelsTotal, gamesTotal, gamesOpen uint32) []byte {
	return FormatCommand("/syncstats",
		fmt.Sprintf("%d", usersTotal),
		fmt.Sprintf("%d", usersOnline),
		fmt.Sprintf("%d", channelsTotal),
		fmt.Sprintf("%d", gamesTotal),
		"0", "",
		fmt.Sprintf("%d", gamesOpen))
}
