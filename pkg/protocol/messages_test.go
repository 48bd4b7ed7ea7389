package protocol

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIdentRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  ClientIdent
	}{
		{
			name: "release build english",
			msg: ClientIdent{
				GameVersion: uuid.MustParse("534ba248-a87c-4ce9-8bee-bc376aae6134"),
				Language:    "eng",
			},
		},
		{
			name: "empty language",
			msg:  ClientIdent{GameVersion: uuid.MustParse("00000000-0000-0000-0000-000000000001")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := tt.msg.Encode()
			require.NoError(t, err)

			var decoded ClientIdent
			require.NoError(t, decoded.Decode(payload))
			assert.Equal(t, tt.msg, decoded)
		})
	}
}

func TestClientIdentMalformed(t *testing.T) {
	var msg ClientIdent

	t.Run("too short for guid", func(t *testing.T) {
		assert.Equal(t, ErrMalformed, msg.Decode([]byte{1, 2, 3}))
	})

	t.Run("language length overruns buffer", func(t *testing.T) {
		buf := new(bytes.Buffer)
		WriteGUID(buf, uuid.New())
		WriteUint32(buf, 50)
		buf.WriteString("eng")
		assert.Equal(t, ErrMalformed, msg.Decode(buf.Bytes()))
	})
}

func TestClientLoginRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		msg        ClientLogin
		wantCreate bool
	}{
		{
			name: "existing account",
			msg:  ClientLogin{Username: "commander", Password: "hunter2", Extra: []byte{}},
		},
		{
			name:       "create account flag",
			msg:        ClientLogin{Username: "newbie", Password: "pw", UnknownB: 1, Extra: []byte{}},
			wantCreate: true,
		},
		{
			name: "create account with extended tail",
			msg: ClientLogin{
				Username: "newbie",
				Password: "pw",
				UnknownB: 1,
				Extra:    []byte{0xCA, 0xFE},
			},
			wantCreate: true,
		},
		{
			name: "empty credentials",
			msg:  ClientLogin{Extra: []byte{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := tt.msg.Encode()
			require.NoError(t, err)

			var decoded ClientLogin
			require.NoError(t, decoded.Decode(payload))
			assert.Equal(t, tt.msg, decoded)
			assert.Equal(t, tt.wantCreate, decoded.CreateAccount())
		})
	}
}

func TestClientLoginMalformed(t *testing.T) {
	var msg ClientLogin

	t.Run("truncated before trailing words", func(t *testing.T) {
		buf := new(bytes.Buffer)
		WriteString(buf, "user")
		WriteString(buf, "pass")
		assert.Equal(t, ErrMalformed, msg.Decode(buf.Bytes()))
	})

	t.Run("password length overruns buffer", func(t *testing.T) {
		buf := new(bytes.Buffer)
		WriteString(buf, "user")
		WriteUint32(buf, 1000)
		assert.Equal(t, ErrMalformed, msg.Decode(buf.Bytes()))
	})
}

func TestServerIdentRoundTrip(t *testing.T) {
	msg := NewServerIdent()

	payload, err := msg.Encode()
	require.NoError(t, err)

	var decoded ServerIdent
	require.NoError(t, decoded.Decode(payload))
	assert.Equal(t, *msg, decoded)
	assert.Equal(t, uint32(StatusOK), decoded.Status)
}

func TestServerIdentDefaultBody(t *testing.T) {
	payload, err := NewServerIdent().Encode()
	require.NoError(t, err)

	// Leading OK status, then the observed 20-byte opaque region.
	require.Equal(t, 24, len(payload))
	assert.Equal(t, []byte{0, 0, 0, 0}, payload[:4])
	assert.Equal(t, []byte{16, 0, 0, 0}, payload[4:8])
	assert.Equal(t, []byte{0x3c, 0x3b, 0xff, 0x1a}, payload[8:12])
}

func TestServerWelcomeRoundTrip(t *testing.T) {
	msg := NewServerWelcome()
	msg.ServerIdent = "IE::Net"
	msg.WelcomeText = "Welcome to IE::Net, a community-operated EarthNet server"
	msg.PlayersTotal = 1042
	msg.PlayersOnline = 17
	msg.ChannelsTotal = 3
	msg.GamesTotalA = 2
	msg.GamesAvailable = 1
	msg.GameVersions = []ListEntry{{ID: 0, Name: "tmp2.2"}}
	msg.InitialChannel = "General"

	payload, err := msg.Encode()
	require.NoError(t, err)

	var decoded ServerWelcome
	require.NoError(t, decoded.Decode(payload))
	assert.Equal(t, *msg, decoded)
}

func TestServerWelcomeEmptyEverything(t *testing.T) {
	msg := NewServerWelcome()

	payload, err := msg.Encode()
	require.NoError(t, err)

	var decoded ServerWelcome
	require.NoError(t, decoded.Decode(payload))
	assert.Equal(t, *msg, decoded)
	assert.Empty(t, decoded.GameVersions)
	assert.Empty(t, decoded.ReservedListA)
	assert.Empty(t, decoded.ReservedListB)
}

func TestServerWelcomeContentLengthMismatch(t *testing.T) {
	msg := NewServerWelcome()
	payload, err := msg.Encode()
	require.NoError(t, err)

	// Shrink the declared content length by one.
	payload[4]--

	var decoded ServerWelcome
	assert.Equal(t, ErrMalformed, decoded.Decode(payload))
}

func TestServerRejectRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		reason string
	}{
		{name: "version reject", reason: "Wrong game version. Please install version 2.2"},
		{name: "empty reason", reason: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := ServerReject{Reason: tt.reason}
			payload, err := msg.Encode()
			require.NoError(t, err)

			var decoded ServerReject
			require.NoError(t, decoded.Decode(payload))
			assert.Equal(t, msg, decoded)
		})
	}
}

func TestServerRejectStatusWord(t *testing.T) {
	payload, err := (&ServerReject{Reason: "nope"}).Encode()
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 0, 0, 0}, payload[:4])

	var decoded ServerReject
	// An OK status is not a reject.
	payload[0] = 0
	assert.Equal(t, ErrMalformed, decoded.Decode(payload))
}
