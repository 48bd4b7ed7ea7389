package protocol

import (
	"bytes"
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestFormatCommand(t *testing.T) {
	tests := []struct {
		name string
		got  []byte
		want string
	}{
		{
			name: "chat relay",
			got:  ChatText("alice", "hello world"),
			want: `/send "alice" "hello world"` + "\x00",
		},
		{
			name: "quotes escaped",
			got:  ChatText("bob", `say "hi"`),
			want: `/send "bob" "say %22hi%22"` + "\x00",
		},
		{
			name: "error reply",
			got:  ErrorText("Unknown target: carol"),
			want: `/error "Unknown target: carol"` + "\x00",
		},
		{
			name: "join confirmation",
			got:  JoinedChannel("General"),
			want: `/join "General"` + "\x00",
		},
		{
			name: "channel added",
			got:  ChannelAdded("Clanwars"),
			want: `/$channel "Clanwars" "0"` + "\x00",
		},
		{
			name: "channel dropped",
			got:  ChannelDropped("Clanwars"),
			want: `/&channel "Clanwars"` + "\x00",
		},
		{
			name: "roster line has no slash",
			got:  RosterUser("dave"),
			want: `$user "dave" "0"` + "\x00",
		},
		{
			name: "user joined with origin",
			got:  UserJoined("dave", 0, "#General"),
			want: `/$user "dave" "0" "#General"` + "\x00",
		},
		{
			name: "user joined on login omits origin",
			got:  UserJoined("dave", 0, ""),
			want: `/$user "dave" "0"` + "\x00",
		},
		{
			name: "user left on disconnect omits destination",
			got:  UserLeft("dave", ""),
			want: `/&user "dave"` + "\x00",
		},
		{
			name: "game dropped",
			got:  GameDropped("thegame"),
			want: `/&play "thegame"` + "\x00",
		},
		{
			name: "sync stats",
			got:  SyncStats(100, 7, 3, 2, 1),
			want: `/syncstats "100" "7" "3" "2" "0" "" "1"` + "\x00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(tt.got))
		})
	}
}

func TestGameJoinAddressEncoding(t *testing.T) {
	version := uuid.MustParse("534ba248-a87c-4ce9-8bee-bc376aae6134")
	id := uuid.MustParse("c7bffb03-148a-441d-8146-c268ca8b3273")

	got := GameJoin(version, "thegame", []byte("pw"), net.IPv4(192, 168, 1, 10), id)

	// 192.168.1.10 as a little-endian word is 0x0a01a8c0.
	want := `/playc "534ba248-a87c-4ce9-8bee-bc376aae6134" "thegame" "pw" "0x0a01a8c0" ` +
		`"c7bffb03-148a-441d-8146-c268ca8b3273" "192.168.1.10"` + "\x00"
	assert.Equal(t, want, string(got))
}

func TestMessagesEndWithNull(t *testing.T) {
	msgs := [][]byte{
		ChatText("a", "b"),
		PrivateText("#General", "a", "b", "hi"),
		PrivateEcho("b", "hi"),
		ErrorText("x"),
		GameAdded("g", uuid.New()),
		GameCreated(uuid.New(), "g", []byte("pw"), uuid.New()),
	}
	for _, m := range msgs {
		assert.Equal(t, byte(0), m[len(m)-1])
		assert.Equal(t, 1, bytes.Count(m, []byte{0}), "terminator must be the only null byte")
	}
}
