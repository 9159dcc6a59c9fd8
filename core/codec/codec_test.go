package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type payload struct {
	Name  string `json:"name" msgpack:"name"`
	Value int    `json:"value" msgpack:"value"`
}

func TestStructCodecs(t *testing.T) {
	for _, contentType := range []string{"application/json", "application/msgpack"} {
		c, err := ForContentType(contentType)
		require.NoError(t, err)

		t.Run(c.Name(), func(t *testing.T) {
			data, err := c.Encode(&payload{Name: "test", Value: 42})
			require.NoError(t, err)

			var decoded payload
			require.NoError(t, c.Decode(data, &decoded))
			assert.Equal(t, payload{Name: "test", Value: 42}, decoded)
		})
	}
}

func TestProtobufCodec(t *testing.T) {
	codec := &ProtobufCodec{}

	data, err := codec.Encode(wrapperspb.Int32(42))
	require.NoError(t, err)

	decoded := &wrapperspb.Int32Value{}
	require.NoError(t, codec.Decode(data, decoded))
	assert.Equal(t, int32(42), decoded.Value)
}

func TestProtobufCodecInvalidType(t *testing.T) {
	codec := &ProtobufCodec{}

	if _, err := codec.Encode("not a proto message"); err == nil {
		t.Error("Expected error for non-proto message")
	}
}

func TestForContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"application/json", "json"},
		{"application/json; charset=utf-8", "json"},
		{"Application/MsgPack", "msgpack"},
		{"application/x-protobuf", "protobuf"},
	}

	for _, tt := range tests {
		c, err := ForContentType(tt.contentType)
		if err != nil {
			t.Errorf("ForContentType(%q) error: %v", tt.contentType, err)
			continue
		}
		if c.Name() != tt.want {
			t.Errorf("ForContentType(%q) = %s, want %s", tt.contentType, c.Name(), tt.want)
		}
	}

	_, err := ForContentType("text/plain")
	assert.ErrorIs(t, err, ErrUnsupportedCodec)
}

func BenchmarkJSONEncode(b *testing.B) {
	codec := &JSONCodec{}
	data := map[string]any{
		"name":  "benchmark",
		"value": 123,
		"items": []int{1, 2, 3, 4, 5},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = codec.Encode(data)
	}
}

func BenchmarkMsgPackEncode(b *testing.B) {
	codec := &MsgPackCodec{}
	data := &payload{Name: "benchmark", Value: 123}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = codec.Encode(data)
	}
}

func BenchmarkProtobufDecode(b *testing.B) {
	codec := &ProtobufCodec{}
	msg := wrapperspb.String("benchmark message")
	data, _ := proto.Marshal(msg)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		decoded := &wrapperspb.StringValue{}
		_ = codec.Decode(data, decoded)
	}
}
