package codec

import (
	"github.com/vmihailenco/msgpack/v5"
)

// MsgPackCodec implements MessagePack encoding/decoding
type MsgPackCodec struct{}

func (c *MsgPackCodec) Encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (c *MsgPackCodec) Decode(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

func (c *MsgPackCodec) Name() string {
	return "msgpack"
}

func (c *MsgPackCodec) ContentType() string {
	return "application/msgpack"
}
