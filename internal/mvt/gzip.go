package mvt

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// GzipEncode wraps an MVT tile's protobuf bytes in gzip, the storage and
// transport convention used by the cache layer and the tile HTTP endpoint
// (spec §4.C, §4.G). Compression level matches the teacher's default.
func GzipEncode(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("mvt: gzip writer: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, fmt.Errorf("mvt: gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("mvt: gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// GzipDecode reverses GzipEncode.
func GzipDecode(compressed []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("mvt: gzip reader: %w", err)
	}
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("mvt: gzip read: %w", err)
	}
	return raw, nil
}
