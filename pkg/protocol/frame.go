package protocol

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize is the maximum total frame length (length word included).
// The game never sends handshake blocks anywhere near this; a larger length
// word means we lost framing.
const MaxFrameSize = 4096

var (
	ErrFrameTooShort = errors.New("frame length below minimum (4 bytes)")
	ErrFrameTooLarge = fmt.Errorf("frame exceeds maximum size (%d bytes)", MaxFrameSize)
	ErrDecompression = errors.New("frame decompression failed")
)

// Frame format: u32 total_length (little-endian, includes its own 4 bytes)
// followed by total_length-4 bytes of zlib-compressed payload. One frame
// carries exactly one decompressed handshake message.

// ReadFrame reads one frame and returns the decompressed payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	total, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	if total < 4 {
		return nil, ErrFrameTooShort
	}
	if total > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	compressed := make([]byte, total-4)
	if _, err := io.ReadFull(r, compressed); err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	br := bytes.NewReader(compressed)
	zr, err := zlib.NewReader(br)
	if err != nil {
		return nil, ErrDecompression
	}
	payload, err := io.ReadAll(zr)
	if err != nil {
		return nil, ErrDecompression
	}
	if err := zr.Close(); err != nil {
		return nil, ErrDecompression
	}
	// The declared length must be exactly one compressed stream. Trailing
	// bytes mean the client and server disagree about framing.
	if br.Len() > 0 {
		return nil, ErrDecompression
	}
	return payload, nil
}

// WriteFrame compresses the payload and writes one length-prefixed frame.
func WriteFrame(w io.Writer, payload []byte) error {
	data, err := EncodeFrame(payload)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// EncodeFrame compresses the payload and returns the full frame bytes.
func EncodeFrame(payload []byte) ([]byte, error) {
	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(payload); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	total := uint32(compressed.Len()) + 4
	if total > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	out := new(bytes.Buffer)
	out.Grow(int(total))
	if err := WriteUint32(out, total); err != nil {
		return nil, err
	}
	if _, err := out.Write(compressed.Bytes()); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
