package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// HeaderSize is the length of the big-endian payload size that precedes every
// JSON document on a TCP connection.
const HeaderSize = 4

// DefaultMaxFrameSize bounds a single payload when the caller does not.
const DefaultMaxFrameSize = 64 * 1024

var (
	// ErrEmptyFrame is returned for a zero-length payload.
	ErrEmptyFrame = errors.New("protocol: empty frame")
	// ErrFrameTooLarge is returned when a declared or encoded payload exceeds the limit.
	ErrFrameTooLarge = errors.New("protocol: frame too large")
	// ErrNotObject is returned when a payload is valid JSON but not an object.
	ErrNotObject = errors.New("protocol: frame is not a JSON object")
	// ErrTrailingData is returned when a payload holds more than one JSON value.
	ErrTrailingData = errors.New("protocol: trailing data after frame")
)

// Encode serializes a frame as a UTF-8 JSON object.
func Encode(f Frame) ([]byte, error) {
	if f == nil {
		return nil, ErrNotObject
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode frame: %w", err)
	}
	return data, nil
}

// Decode parses a UTF-8 JSON object into a frame. Numbers are kept as
// json.Number so that relayed frames carry them unchanged.
func Decode(data []byte) (Frame, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var f Frame
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("protocol: decode frame: %w", err)
	}
	if f == nil {
		return nil, ErrNotObject
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, ErrTrailingData
	}
	return f, nil
}

// WritePayload writes one length-prefixed payload to w.
func WritePayload(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyFrame
	}
	if uint64(len(payload)) > uint64(^uint32(0)) {
		return ErrFrameTooLarge
	}

	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[HeaderSize:], payload)

	_, err := w.Write(buf)
	return err
}

// ReadPayload reads one length-prefixed payload from r. Payloads larger than
// maxSize are rejected without being read.
func ReadPayload(r io.Reader, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}

	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint32(header[:])
	if size == 0 {
		return nil, ErrEmptyFrame
	}
	if uint64(size) > uint64(maxSize) {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFrameTooLarge, size, maxSize)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}

// WriteFrame encodes f and writes it with its length prefix.
func WriteFrame(w io.Writer, f Frame) error {
	payload, err := Encode(f)
	if err != nil {
		return err
	}
	return WritePayload(w, payload)
}

// ReadFrame reads and decodes one length-prefixed frame.
func ReadFrame(r io.Reader, maxSize int) (Frame, error) {
	payload, err := ReadPayload(r, maxSize)
	if err != nil {
		return nil, err
	}
	return Decode(payload)
}
