package relay

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Transition полезная нагрузка события FieldTransition
type Transition struct {
	EntityID uint64 `json:"entity_id"`
	State    string `json:"state"`
	Seq      uint64 `json:"seq"`
	Origin   string `json:"origin"`
}

// Codec кодирует полезную нагрузку перехода. Имя кодека едет в Metadata["encoding"].
type Codec interface {
	Name() string
	Encode(t Transition) ([]byte, error)
	Decode(payload []byte) (Transition, error)
}

// Имена кодеков
const (
	EncodingJSON = "json"
	EncodingZstd = "json+zstd"
)

type jsonCodec struct{}

// NewJSONCodec кодек без сжатия
func NewJSONCodec() Codec { return jsonCodec{} }

func (jsonCodec) Name() string { return EncodingJSON }

func (jsonCodec) Encode(t Transition) ([]byte, error) {
	return json.Marshal(t)
}

func (jsonCodec) Decode(payload []byte) (Transition, error) {
	var t Transition
	if err := json.Unmarshal(payload, &t); err != nil {
		return Transition{}, fmt.Errorf("decode transition: %w", err)
	}
	return t, nil
}

// zstdCodec JSON, сжатый zstd. Encoder/Decoder безопасны для EncodeAll/DecodeAll из нескольких горутин.
type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstdCodec создаёт кодек JSON+zstd
func NewZstdCodec() (Codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &zstdCodec{enc: enc, dec: dec}, nil
}

func (c *zstdCodec) Name() string { return EncodingZstd }

func (c *zstdCodec) Encode(t Transition) ([]byte, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return c.enc.EncodeAll(raw, nil), nil
}

func (c *zstdCodec) Decode(payload []byte) (Transition, error) {
	raw, err := c.dec.DecodeAll(payload, nil)
	if err != nil {
		return Transition{}, fmt.Errorf("decompression failed: %w", err)
	}
	return jsonCodec{}.Decode(raw)
}

// codecSet выбирает декодер по имени из метаданных; пустое имя: JSON
type codecSet map[string]Codec

func (s codecSet) decode(encoding string, payload []byte) (Transition, error) {
	if encoding == "" {
		encoding = EncodingJSON
	}
	c, ok := s[encoding]
	if !ok {
		return Transition{}, fmt.Errorf("unknown encoding %q", encoding)
	}
	return c.Decode(payload)
}
