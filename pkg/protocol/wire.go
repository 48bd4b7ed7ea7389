package protocol

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/google/uuid"
)

// All integers on the wire are little-endian, matching the game's
// originating platform. Strings are u32-length-prefixed byte sequences in a
// single-byte legacy encoding; they are carried through as raw bytes and
// never re-encoded.

// MaxStringLen bounds a single string field. Handshake payloads are small;
// anything past this is a corrupt length word.
const MaxStringLen = 1 << 20

// ListTerminator ends a ListEntry sequence in the id position. It is never a
// valid entry id.
const ListTerminator = 0xFF

var ErrMalformed = errors.New("malformed message")

// ListEntry is one element of an id/name list (game versions and the
// reserved ServerWelcome lists).
type ListEntry struct {
	ID   uint8
	Name string
}

// WriteUint8 writes a single byte
func WriteUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

// ReadUint8 reads a single byte
func ReadUint8(r io.Reader) (uint8, error) {
	buf := make([]byte, 1)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// WriteUint16 writes a 16-bit unsigned integer in little-endian
func WriteUint16(w io.Writer, v uint16) error {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, v)
	_, err := w.Write(buf)
	return err
}

// ReadUint16 reads a 16-bit unsigned integer in little-endian
func ReadUint16(r io.Reader) (uint16, error) {
	buf := make([]byte, 2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

// WriteUint32 writes a 32-bit unsigned integer in little-endian
func WriteUint32(w io.Writer, v uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	_, err := w.Write(buf)
	return err
}

// ReadUint32 reads a 32-bit unsigned integer in little-endian
func ReadUint32(r io.Reader) (uint32, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// WriteUint64 writes a 64-bit unsigned integer in little-endian
func WriteUint64(w io.Writer, v uint64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	_, err := w.Write(buf)
	return err
}

// ReadUint64 reads a 64-bit unsigned integer in little-endian
func ReadUint64(r io.Reader) (uint64, error) {
	buf := make([]byte, 8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// WriteString writes a u32-length-prefixed byte string
func WriteString(w io.Writer, s string) error {
	if err := WriteUint32(w, uint32(len(s))); err != nil {
		return err
	}
	if len(s) > 0 {
		_, err := io.WriteString(w, s)
		return err
	}
	return nil
}

// ReadString reads a u32-length-prefixed byte string. A length that runs
// past the end of the buffer is ErrMalformed.
func ReadString(r io.Reader) (string, error) {
	length, err := ReadUint32(r)
	if err != nil {
		return "", err
	}
	if length > MaxStringLen {
		return "", ErrMalformed
	}
	if length == 0 {
		return "", nil
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return "", ErrMalformed
		}
		return "", err
	}
	return string(data), nil
}

// WriteGUID writes a Windows-layout GUID: the first three groups are
// little-endian, the trailing 8 bytes are as-is.
func WriteGUID(w io.Writer, id uuid.UUID) error {
	b := id[:]
	if err := WriteUint32(w, binary.BigEndian.Uint32(b[0:4])); err != nil {
		return err
	}
	if err := WriteUint16(w, binary.BigEndian.Uint16(b[4:6])); err != nil {
		return err
	}
	if err := WriteUint16(w, binary.BigEndian.Uint16(b[6:8])); err != nil {
		return err
	}
	_, err := w.Write(b[8:16])
	return err
}

// ReadGUID reads a Windows-layout GUID
func ReadGUID(r io.Reader) (uuid.UUID, error) {
	var id uuid.UUID
	d1, err := ReadUint32(r)
	if err != nil {
		return id, err
	}
	d2, err := ReadUint16(r)
	if err != nil {
		return id, err
	}
	d3, err := ReadUint16(r)
	if err != nil {
		return id, err
	}
	binary.BigEndian.PutUint32(id[0:4], d1)
	binary.BigEndian.PutUint16(id[4:6], d2)
	binary.BigEndian.PutUint16(id[6:8], d3)
	if _, err := io.ReadFull(r, id[8:16]); err != nil {
		return uuid.UUID{}, err
	}
	return id, nil
}

// WriteList writes the entries followed by the 0xFF terminator
func WriteList(w io.Writer, entries []ListEntry) error {
	for _, e := range entries {
		if err := WriteUint8(w, e.ID); err != nil {
			return err
		}
		if err := WriteString(w, e.Name); err != nil {
			return err
		}
	}
	return WriteUint8(w, ListTerminator)
}

// ReadList reads ListEntry values until a 0xFF appears in the id position.
// The terminator is consumed and is not an entry. A buffer that ends before
// the terminator is ErrMalformed.
func ReadList(r io.Reader) ([]ListEntry, error) {
	entries := []ListEntry{}
	for {
		id, err := ReadUint8(r)
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, ErrMalformed
			}
			return nil, err
		}
		if id == ListTerminator {
			return entries, nil
		}
		name, err := ReadString(r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ListEntry{ID: id, Name: name})
	}
}
