package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	sessionFormatVersionCurrent = 2
	sessionFormatVersionV1      = 1
)

// ErrInvalidEncoding is returned by Decode for truncated or unknown records.
var ErrInvalidEncoding = errors.New("invalid session encoding")

// Encode serializes s in the current binary format.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionCurrent)

	if err := writeShortString(&buf, s.UserID); err != nil {
		return nil, errors.New("userID too long")
	}
	if err := writeShortString(&buf, s.Email); err != nil {
		return nil, errors.New("email too long")
	}

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a record produced by Encode. SessionID is not part of the
// record and is left empty.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrInvalidEncoding
	}
	if version != sessionFormatVersionCurrent && version != sessionFormatVersionV1 {
		return nil, ErrInvalidEncoding
	}

	s := &Session{}

	if s.UserID, err = readShortString(reader); err != nil {
		return nil, err
	}
	if version == sessionFormatVersionCurrent {
		if s.Email, err = readShortString(reader); err != nil {
			return nil, err
		}
	}

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, ErrInvalidEncoding
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, ErrInvalidEncoding
	}
	if reader.Len() != 0 {
		return nil, ErrInvalidEncoding
	}

	return s, nil
}

func writeShortString(buf *bytes.Buffer, v string) error {
	if len(v) > 255 {
		return errors.New("string too long")
	}
	buf.WriteByte(byte(len(v)))
	buf.WriteString(v)
	return nil
}

func readShortString(reader *bytes.Reader) (string, error) {
	n, err := reader.ReadByte()
	if err != nil {
		return "", ErrInvalidEncoding
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(reader, b); err != nil {
		return "", ErrInvalidEncoding
	}
	return string(b), nil
}
