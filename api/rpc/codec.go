package rpc

import (
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/encoding/proto"
	"google.golang.org/grpc/mem"
)

// wireMessage is implemented by every message in exchange.proto.
type wireMessage interface {
	appendWire(b []byte) []byte
	readWire(b []byte) error
}

// codec replaces the default "proto" codec. Exchange messages use their
// own wire methods; anything else goes to the stock codec.
type codec struct {
	fallback encoding.CodecV2
}

func (c codec) Marshal(v any) (mem.BufferSlice, error) {
	if m, ok := v.(wireMessage); ok {
		return mem.BufferSlice{mem.SliceBuffer(m.appendWire(nil))}, nil
	}
	return c.fallback.Marshal(v)
}

func (c codec) Unmarshal(data mem.BufferSlice, v any) error {
	if m, ok := v.(wireMessage); ok {
		if err := m.readWire(data.Materialize()); err != nil {
			return fmt.Errorf("rpc: decode %T: %w", v, err)
		}
		return nil
	}
	return c.fallback.Unmarshal(data, v)
}

func (codec) Name() string { return proto.Name }

func init() {
	encoding.RegisterCodecV2(codec{fallback: encoding.GetCodecV2(proto.Name)})
}
