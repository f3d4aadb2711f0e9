package wal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

var ErrCorruptRecord = errors.New("wal: corrupted record")

// record body field numbers
const (
	fieldSeq  protowire.Number = 1
	fieldTime protowire.Number = 2
	fieldData protowire.Number = 3
	fieldType protowire.Number = 4
)

const (
	frameHeader = 8
	maxBodySize = 64 << 20
)

// encodeFrame produces [len:4][crc:4][body] with a protobuf wire body.
func encodeFrame(r *Record) []byte {
	body := make([]byte, 0, 32+len(r.Data))
	body = protowire.AppendTag(body, fieldSeq, protowire.VarintType)
	body = protowire.AppendVarint(body, r.Seq)
	body = protowire.AppendTag(body, fieldTime, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(r.Time))
	body = protowire.AppendTag(body, fieldData, protowire.BytesType)
	body = protowire.AppendBytes(body, r.Data)
	body = protowire.AppendTag(body, fieldType, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(r.Type))

	frame := make([]byte, frameHeader, frameHeader+len(body))
	binary.LittleEndian.PutUint32(frame[:4], uint32(len(body)))
	binary.LittleEndian.PutUint32(frame[4:8], CRC32(body))
	return append(frame, body...)
}

// readFrame reads one frame. It returns io.EOF only on a clean boundary.
func readFrame(r io.Reader) (*Record, error) {
	var header [frameHeader]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: truncated header", ErrCorruptRecord)
		}
		return nil, err
	}

	n := binary.LittleEndian.Uint32(header[:4])
	if n > maxBodySize {
		return nil, fmt.Errorf("%w: body length %d", ErrCorruptRecord, n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("%w: truncated body", ErrCorruptRecord)
	}
	if !CRC32Valid(body, binary.LittleEndian.Uint32(header[4:8])) {
		return nil, fmt.Errorf("%w: crc mismatch", ErrCorruptRecord)
	}

	return decodeBody(body)
}

func decodeBody(b []byte) (*Record, error) {
	rec := &Record{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldData && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(m))
			}
			rec.Data = append([]byte(nil), v...)
			b = b[m:]
		case typ == protowire.VarintType && (num == fieldSeq || num == fieldTime || num == fieldType):
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(m))
			}
			switch num {
			case fieldSeq:
				rec.Seq = v
			case fieldTime:
				rec.Time = int64(v)
			case fieldType:
				rec.Type = RecordType(v)
			}
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(m))
			}
			b = b[m:]
		}
	}
	return rec, nil
}
