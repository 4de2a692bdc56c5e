package ledgerapi

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
)

// COSE is a raw COSE_Sign1 message: either a settlement receipt signed by
// the ledger or a Nitro attestation document.
type COSE []byte

// COSEBase64 is COSE bytes in standard base64, the form used in JSON bodies.
type COSEBase64 string

// COSEGzip is gzip-compressed COSE bytes in unpadded URL-safe base64.
type COSEGzip string

func (c COSE) EncodeBase64() COSEBase64 {
	return COSEBase64(base64.StdEncoding.EncodeToString(c))
}

// CompressGzip compresses the message for notifications and query strings. The gzip header
// carries no timestamp, so output is deterministic.
func (c COSE) CompressGzip() (COSEGzip, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(c); err != nil {
		return "", fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("gzip close: %w", err)
	}
	return COSEGzip(base64.RawURLEncoding.EncodeToString(buf.Bytes())), nil
}

func (b COSEBase64) String() string {
	return string(b)
}

func (b COSEBase64) Decode() (COSE, error) {
	data, err := base64.StdEncoding.DecodeString(string(b))
	if err != nil {
		return nil, fmt.Errorf("decode COSE base64: %w", err)
	}
	return COSE(data), nil
}

func (g COSEGzip) String() string {
	return string(g)
}

func (g COSEGzip) Decompress() (COSE, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(string(g))
	if err != nil {
		return nil, fmt.Errorf("decode base64url: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("open gzip reader: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("read gzip: %w", err)
	}
	return COSE(data), nil
}
