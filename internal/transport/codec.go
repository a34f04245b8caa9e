package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encoding selects how request and response bodies are represented.
type Encoding int

const (
	EncodingJSON Encoding = iota
	EncodingText
	EncodingBytes
)

func (e Encoding) String() string {
	switch e {
	case EncodingJSON:
		return "json"
	case EncodingText:
		return "text"
	case EncodingBytes:
		return "bytes"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

func (e Encoding) accept() string {
	if e == EncodingJSON {
		return "application/json"
	}
	return "*/*"
}

// encodeBody returns the payload and its content type.
func encodeBody(enc Encoding, body any) ([]byte, string, error) {
	switch enc {
	case EncodingJSON:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("encode request body: %w", err)
		}
		return data, "application/json", nil
	case EncodingText:
		switch v := body.(type) {
		case string:
			return []byte(v), "text/plain; charset=UTF-8", nil
		case fmt.Stringer:
			return []byte(v.String()), "text/plain; charset=UTF-8", nil
		}
		return nil, "", fmt.Errorf("encode request body: %T is not text", body)
	case EncodingBytes:
		switch v := body.(type) {
		case []byte:
			return v, "application/octet-stream", nil
		case string:
			return []byte(v), "application/octet-stream", nil
		}
		return nil, "", fmt.Errorf("encode request body: %T is not bytes", body)
	default:
		return nil, "", fmt.Errorf("encode request body: unsupported encoding %s", enc)
	}
}

// decodeBody writes data into out. A nil out discards the body.
func decodeBody(enc Encoding, data []byte, out any) error {
	if out == nil {
		return nil
	}
	switch enc {
	case EncodingJSON:
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		return json.Unmarshal(data, out)
	case EncodingText:
		s, ok := out.(*string)
		if !ok {
			return fmt.Errorf("text response needs *string, got %T", out)
		}
		*s = string(data)
		return nil
	case EncodingBytes:
		b, ok := out.(*[]byte)
		if !ok {
			return fmt.Errorf("bytes response needs *[]byte, got %T", out)
		}
		*b = data
		return nil
	default:
		return fmt.Errorf("unsupported encoding %s", enc)
	}
}
