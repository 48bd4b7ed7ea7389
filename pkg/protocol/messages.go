package protocol

import (
	"bytes"
	"io"

	"github.com/google/uuid"
)

// Handshake status codes. ServerIdent and ServerWelcome share the OK code;
// which one a payload is depends on handshake state, not content.
const (
	StatusOK     = 0
	StatusReject = 2
)

// ClientIdent is the first client message: the game build GUID and the
// client's language code.
type ClientIdent struct {
	GameVersion uuid.UUID
	Language    string
}

func (m *ClientIdent) EncodeTo(w io.Writer) error {
	if err := WriteGUID(w, m.GameVersion); err != nil {
		return err
	}
	return WriteString(w, m.Language)
}

func (m *ClientIdent) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *ClientIdent) Decode(payload []byte) error {
	buf := bytes.NewReader(payload)
	version, err := ReadGUID(buf)
	if err != nil {
		return ErrMalformed
	}
	language, err := ReadString(buf)
	if err != nil {
		return ErrMalformed
	}
	m.GameVersion = version
	m.Language = language
	return nil
}

// ServerIdent acknowledges a valid ClientIdent. Beyond the leading OK status
// the client ignores the body; Opaque carries whatever accompanying bytes
// the server chooses. The default matches what the original game server was
// observed to send.
type ServerIdent struct {
	Status uint32
	Opaque []byte
}

// NewServerIdent returns a ServerIdent with the observed default body.
func NewServerIdent() *ServerIdent {
	buf := new(bytes.Buffer)
	WriteUint32(buf, 16)
	for i := 0; i < 4; i++ {
		WriteUint32(buf, 0x1aff3b3c)
	}
	return &ServerIdent{Status: StatusOK, Opaque: buf.Bytes()}
}

func (m *ServerIdent) EncodeTo(w io.Writer) error {
	if err := WriteUint32(w, m.Status); err != nil {
		return err
	}
	if len(m.Opaque) > 0 {
		if _, err := w.Write(m.Opaque); err != nil {
			return err
		}
	}
	return nil
}

func (m *ServerIdent) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *ServerIdent) Decode(payload []byte) error {
	buf := bytes.NewReader(payload)
	status, err := ReadUint32(buf)
	if err != nil {
		return ErrMalformed
	}
	opaque := make([]byte, buf.Len())
	io.ReadFull(buf, opaque)
	m.Status = status
	m.Opaque = opaque
	return nil
}

// ClientLogin carries credentials. Two trailing zero words mean an existing
// account; non-zero trailing data requests account creation (the exact
// extended layout is not documented, so the raw tail is preserved and the
// decision is delegated to the authentication capability).
type ClientLogin struct {
	Username string
	Password string
	UnknownA uint32
	UnknownB uint32
	Extra    []byte
}

// CreateAccount reports whether the trailing data requests a new account.
func (m *ClientLogin) CreateAccount() bool {
	return m.UnknownA != 0 || m.UnknownB != 0 || len(m.Extra) > 0
}

func (m *ClientLogin) EncodeTo(w io.Writer) error {
	if err := WriteString(w, m.Username); err != nil {
		return err
	}
	if err := WriteString(w, m.Password); err != nil {
		return err
	}
	if err := WriteUint32(w, m.UnknownA); err != nil {
		return err
	}
	if err := WriteUint32(w, m.UnknownB); err != nil {
		return err
	}
	if len(m.Extra) > 0 {
		if _, err := w.Write(m.Extra); err != nil {
			return err
		}
	}
	return nil
}

func (m *ClientLogin) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *ClientLogin) Decode(payload []byte) error {
	buf := bytes.NewReader(payload)
	username, err := ReadString(buf)
	if err != nil {
		return ErrMalformed
	}
	password, err := ReadString(buf)
	if err != nil {
		return ErrMalformed
	}
	a, err := ReadUint32(buf)
	if err != nil {
		return ErrMalformed
	}
	b, err := ReadUint32(buf)
	if err != nil {
		return ErrMalformed
	}
	extra := make([]byte, buf.Len())
	io.ReadFull(buf, extra)

	m.Username = username
	m.Password = password
	m.UnknownA = a
	m.UnknownB = b
	m.Extra = extra
	return nil
}

// ServerWelcome completes a successful login. The UnknownA..UnknownD words
// are fixed values the original server emits whose meaning has not been
// reverse-engineered; the two reserved lists and the reserved tail are
// carried structurally but have no assigned semantics and are emitted empty.
type ServerWelcome struct {
	ServerIdent    string
	WelcomeText    string
	UnknownA       uint64
	UnknownB       uint32
	PlayersTotal   uint32
	PlayersOnline  uint32
	ChannelsTotal  uint32
	GamesTotalA    uint32
	GamesTotalB    uint32
	UnknownC       uint32
	GamesAvailable uint32
	UnknownD       uint32
	GameVersions   []ListEntry
	ReservedListA  []ListEntry
	ReservedListB  []ListEntry
	ReservedByte   uint8
	InitialChannel string
	Reserved       [40]byte
}

// NewServerWelcome returns a welcome with the unknown words set to the
// values the original server sends.
func NewServerWelcome() *ServerWelcome {
	return &ServerWelcome{
		UnknownA:      25,
		UnknownB:      24,
		UnknownC:      18,
		UnknownD:      16,
		GameVersions:  []ListEntry{},
		ReservedListA: []ListEntry{},
		ReservedListB: []ListEntry{},
	}
}

func (m *ServerWelcome) encodeContent() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := WriteString(buf, m.ServerIdent); err != nil {
		return nil, err
	}
	if err := WriteString(buf, m.WelcomeText); err != nil {
		return nil, err
	}
	WriteUint64(buf, m.UnknownA)
	WriteUint32(buf, m.UnknownB)
	WriteUint32(buf, m.PlayersTotal)
	WriteUint32(buf, m.PlayersOnline)
	WriteUint32(buf, m.ChannelsTotal)
	WriteUint32(buf, m.GamesTotalA)
	WriteUint32(buf, m.GamesTotalB)
	WriteUint32(buf, m.UnknownC)
	WriteUint32(buf, m.GamesAvailable)
	WriteUint32(buf, m.UnknownD)
	if err := WriteList(buf, m.GameVersions); err != nil {
		return nil, err
	}
	if err := WriteList(buf, m.ReservedListA); err != nil {
		return nil, err
	}
	if err := WriteList(buf, m.ReservedListB); err != nil {
		return nil, err
	}
	WriteUint8(buf, m.ReservedByte)
	if err := WriteString(buf, m.InitialChannel); err != nil {
		return nil, err
	}
	buf.Write(m.Reserved[:])
	return buf.Bytes(), nil
}

func (m *ServerWelcome) EncodeTo(w io.Writer) error {
	content, err := m.encodeContent()
	if err != nil {
		return err
	}
	if err := WriteUint32(w, StatusOK); err != nil {
		return err
	}
	if err := WriteUint32(w, uint32(len(content))); err != nil {
		return err
	}
	_, err = w.Write(content)
	return err
}

func (m *ServerWelcome) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *ServerWelcome) Decode(payload []byte) error {
	outer := bytes.NewReader(payload)
	status, err := ReadUint32(outer)
	if err != nil || status != StatusOK {
		return ErrMalformed
	}
	contentLen, err := ReadUint32(outer)
	if err != nil || int(contentLen) != outer.Len() {
		return ErrMalformed
	}

	buf := outer
	if m.ServerIdent, err = ReadString(buf); err != nil {
		return ErrMalformed
	}
	if m.WelcomeText, err = ReadString(buf); err != nil {
		return ErrMalformed
	}
	if m.UnknownA, err = ReadUint64(buf); err != nil {
		return ErrMalformed
	}
	fields := []*uint32{
		&m.UnknownB, &m.PlayersTotal, &m.PlayersOnline, &m.ChannelsTotal,
		&m.GamesTotalA, &m.GamesTotalB, &m.UnknownC, &m.GamesAvailable, &m.UnknownD,
	}
	for _, f := range fields {
		if *f, err = ReadUint32(buf); err != nil {
			return ErrMalformed
		}
	}
	if m.GameVersions, err = ReadList(buf); err != nil {
		return ErrMalformed
	}
	if m.ReservedListA, err = ReadList(buf); err != nil {
		return ErrMalformed
	}
	if m.ReservedListB, err = ReadList(buf); err != nil {
		return ErrMalformed
	}
	if m.ReservedByte, err = ReadUint8(buf); err != nil {
		return ErrMalformed
	}
	if m.InitialChannel, err = ReadString(buf); err != nil {
		return ErrMalformed
	}
	if _, err := io.ReadFull(buf, m.Reserved[:]); err != nil {
		return ErrMalformed
	}
	return nil
}

// ServerReject refuses an ident or login with a human-readable reason.
type ServerReject struct {
	Reason string
}

func (m *ServerReject) EncodeTo(w io.Writer) error {
	if err := WriteUint32(w, StatusReject); err != nil {
		return err
	}
	return WriteString(w, m.Reason)
}

func (m *ServerReject) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *ServerReject) Decode(payload []byte) error {
	buf := bytes.NewReader(payload)
	status, err := ReadUint32(buf)
	if err != nil || status != StatusReject {
		return ErrMalformed
	}
	reason, err := ReadString(buf)
	if err != nil {
		return ErrMalformed
	}
	m.Reason = reason
	return nil
}
