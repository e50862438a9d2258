package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Media types accepted by Decode.
const (
	MediaTypeJSON = "application/json"
	MediaTypeCBOR = "application/cbor"
)

var (
	// ErrTooLarge is returned when a request body exceeds the configured limit.
	ErrTooLarge = errors.New("ingest: payload too large")
	// ErrUnsupportedMediaType is returned for content types other than JSON and CBOR.
	ErrUnsupportedMediaType = errors.New("ingest: unsupported media type")
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("ingest: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("ingest: CBOR decoder initialization failed: " + err.Error())
	}
}

// MarshalCBOR encodes a batch with deterministic CBOR, as agents send it.
func MarshalCBOR(batch Batch) ([]byte, error) {
	return encMode.Marshal(batch)
}

// Decode reads at most maxBytes from body and decodes it according to
// contentType. An empty content type is treated as JSON.
func Decode(contentType string, body io.Reader, maxBytes int64) (Batch, error) {
	mediaType := MediaTypeJSON
	if contentType != "" {
		parsed, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return Batch{}, fmt.Errorf("%w: %v", ErrUnsupportedMediaType, err)
		}
		mediaType = parsed
	}

	reader := body
	if maxBytes > 0 {
		reader = io.LimitReader(body, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return Batch{}, fmt.Errorf("read body: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return Batch{}, ErrTooLarge
	}

	var batch Batch
	switch mediaType {
	case MediaTypeJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&batch); err != nil {
			return Batch{}, fmt.Errorf("decode json: %w", err)
		}
	case MediaTypeCBOR:
		if err := decMode.Unmarshal(data, &batch); err != nil {
			return Batch{}, fmt.Errorf("decode cbor: %w", err)
		}
	default:
		return Batch{}, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, mediaType)
	}
	return batch, nil
}

// ErrUnsupportedEncoding is returned for content encodings other than gzip and zstd.
var ErrUnsupportedEncoding = errors.New("ingest: unsupported content encoding")

// Decompress wraps body according to the Content-Encoding header. The size
// limit in Decode applies to the decompressed stream.
func Decompress(contentEncoding string, body io.Reader) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "", "identity":
		return io.NopCloser(body), nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		return zr, nil
	case "zstd":
		zr, err := zstd.NewReader(body, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("open zstd stream: %w", err)
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, contentEncoding)
	}
}
