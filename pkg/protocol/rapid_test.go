package protocol

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"pgregory.net/rapid"
)

// TestFramePayloadRoundTrip checks that any payload survives compression,
// framing and decompression unchanged.
func TestFramePayloadRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payloadLen := rapid.IntRange(0, 2048).Draw(t, "payloadLen")
		payload := rapid.SliceOfN(rapid.Byte(), payloadLen, payloadLen).Draw(t, "payload")

		var buf bytes.Buffer
		if err := WriteFrame(&buf, payload); err != nil {
			t.Fatalf("encode failed: %v", err)
		}

		decoded, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if !bytes.Equal(decoded, payload) {
			t.Fatalf("payload mismatch")
		}
		if buf.Len() != 0 {
			t.Fatalf("frame left %d unconsumed bytes", buf.Len())
		}
	})
}

// TestWireStringRoundTrip checks raw byte strings survive unchanged,
// including arbitrary non-UTF8 legacy bytes.
func TestWireStringRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.SliceOfN(rapid.Byte(), 0, 512).Draw(t, "raw")
		original := string(raw)

		var buf bytes.Buffer
		if err := WriteString(&buf, original); err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		decoded, err := ReadString(&buf)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if decoded != original {
			t.Fatalf("string mismatch: got %q, want %q", decoded, original)
		}
	})
}

// TestGUIDPropertyRoundTrip checks the Windows GUID layout is its own
// inverse for arbitrary ids.
func TestGUIDPropertyRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.SliceOfN(rapid.Byte(), 16, 16).Draw(t, "raw")
		var original uuid.UUID
		copy(original[:], raw)

		var buf bytes.Buffer
		if err := WriteGUID(&buf, original); err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		decoded, err := ReadGUID(&buf)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if decoded != original {
			t.Fatalf("guid mismatch: got %s, want %s", decoded, original)
		}
	})
}

// TestServerWelcomeRapidRoundTrip fuzzes the largest handshake message.
func TestServerWelcomeRapidRoundTrip(t *testing.T) {
	listGen := rapid.Custom(func(t *rapid.T) []ListEntry {
		n := rapid.IntRange(0, 5).Draw(t, "n")
		entries := []ListEntry{}
		for i := 0; i < n; i++ {
			entries = append(entries, ListEntry{
				ID:   uint8(i),
				Name: rapid.StringMatching(`[a-zA-Z0-9._-]{0,12}`).Draw(t, "name"),
			})
		}
		return entries
	})

	rapid.Check(t, func(t *rapid.T) {
		original := NewServerWelcome()
		original.ServerIdent = rapid.StringMatching(`[ -~]{0,32}`).Draw(t, "ident")
		original.WelcomeText = rapid.StringMatching(`[ -~]{0,64}`).Draw(t, "welcome")
		original.PlayersTotal = rapid.Uint32().Draw(t, "playersTotal")
		original.PlayersOnline = rapid.Uint32().Draw(t, "playersOnline")
		original.ChannelsTotal = rapid.Uint32().Draw(t, "channelsTotal")
		original.GamesTotalA = rapid.Uint32().Draw(t, "gamesTotalA")
		original.GamesTotalB = rapid.Uint32().Draw(t, "gamesTotalB")
		original.GamesAvailable = rapid.Uint32().Draw(t, "gamesAvailable")
		original.GameVersions = listGen.Draw(t, "gameVersions")
		original.InitialChannel = rapid.StringMatching(`[a-zA-Z0-9]{0,16}`).Draw(t, "channel")

		payload, err := original.Encode()
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}

		var decoded ServerWelcome
		if err := decoded.Decode(payload); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if !welcomeEqual(original, &decoded) {
			t.Fatalf("welcome mismatch after round trip")
		}
	})
}

func welcomeEqual(a, b *ServerWelcome) bool {
	if a.ServerIdent != b.ServerIdent || a.WelcomeText != b.WelcomeText {
		return false
	}
	if a.PlayersTotal != b.PlayersTotal || a.PlayersOnline != b.PlayersOnline {
		return false
	}
	if a.ChannelsTotal != b.ChannelsTotal || a.GamesTotalA != b.GamesTotalA ||
		a.GamesTotalB != b.GamesTotalB || a.GamesAvailable != b.GamesAvailable {
		return false
	}
	if a.InitialChannel != b.InitialChannel || a.Reserved != b.Reserved {
		return false
	}
	if len(a.GameVersions) != len(b.GameVersions) {
		return false
	}
	for i := range a.GameVersions {
		if a.GameVersions[i] != b.GameVersions[i] {
			return false
		}
	}
	return true
}

// TestParseCommandNeverPanics feeds arbitrary bytes to the tokenizer.
func TestParseCommandNeverPanics(t *testing.T) {
	table := CommandTable{
		"/send": {Arity: 1, Greedy: true},
		"/join": {Arity: 1},
	}
	rapid.Check(t, func(t *rapid.T) {
		line := rapid.SliceOfN(rapid.Byte(), 0, 256).Draw(t, "line")
		cmd, err := ParseCommand(line, table)
		if err == nil && cmd.Name == "" {
			t.Fatalf("parsed command with empty name")
		}
	})
}
