package datastore

import (
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	compressionNone = "none"
	compressionZstd = "zstd"
)

// Serializer turns product payloads into stored values: a protobuf
// BytesValue, optionally zstd compressed. Safe for concurrent use.
type Serializer struct {
	compression string
	encoder     *zstd.Encoder
	decoder     *zstd.Decoder
}

// NewSerializer builds the serializer described by cfg.
func NewSerializer(cfg SerializationConfig) (*Serializer, error) {
	s := &Serializer{compression: cfg.Compression}
	switch cfg.Compression {
	case "", compressionNone:
		s.compression = compressionNone
	case compressionZstd:
		var opts []zstd.EOption
		if cfg.Level > 0 {
			opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(cfg.Level)))
		}
		enc, err := zstd.NewWriter(nil, opts...)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create zstd encoder")
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			enc.Close()
			return nil, errors.Wrap(err, "failed to create zstd decoder")
		}
		s.encoder, s.decoder = enc, dec
	default:
		return nil, errors.Errorf("unknown compression %q (supported: none, zstd)", cfg.Compression)
	}
	return s, nil
}

// Compression returns the configured compression name.
func (s *Serializer) Compression() string {
	return s.compression
}

// Marshal encodes a payload.
func (s *Serializer) Marshal(data []byte) ([]byte, error) {
	raw, err := proto.Marshal(wrapperspb.Bytes(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal product")
	}
	if s.encoder != nil {
		return s.encoder.EncodeAll(raw, make([]byte, 0, len(raw))), nil
	}
	return raw, nil
}

// Unmarshal decodes a stored value.
func (s *Serializer) Unmarshal(value []byte) ([]byte, error) {
	raw := value
	if s.decoder != nil {
		var err error
		raw, err = s.decoder.DecodeAll(value, nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to decompress product")
		}
	}
	var msg wrapperspb.BytesValue
	if err := proto.Unmarshal(raw, &msg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal product")
	}
	if msg.Value == nil {
		return []byte{}, nil
	}
	return msg.Value, nil
}

// Close releases the codec goroutines.
func (s *Serializer) Close() {
	if s.encoder != nil {
		s.encoder.Close()
	}
	if s.decoder != nil {
		s.decoder.Close()
	}
}
