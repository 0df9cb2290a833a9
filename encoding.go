package riakconv

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"reflect"

	"github.com/goccy/go-yaml"
	"github.com/vmihailenco/msgpack/v5"
)

// Encoding selects how an instance is turned into Object.Value.
type Encoding int

const (
	MsgPack Encoding = iota
	JSON
	YAML

	DefaultEncoding = MsgPack
)

const (
	ContentTypeMsgPack = "application/x-msgpack"
	ContentTypeJSON    = "application/json"
	ContentTypeYAML    = "application/yaml"
)

func (enc Encoding) String() string {
	switch enc {
	case MsgPack:
		return "msgpack"
	case JSON:
		return "json"
	case YAML:
		return "yaml"
	default:
		return fmt.Sprintf("Encoding(%d)", int(enc))
	}
}

func (enc Encoding) ContentType() string {
	switch enc {
	case JSON:
		return ContentTypeJSON
	case YAML:
		return ContentTypeYAML
	default:
		return ContentTypeMsgPack
	}
}

// EncodingForContentType maps a content type (parameters allowed) to an
// Encoding.
func EncodingForContentType(ct string) (Encoding, bool) {
	if ct == "" {
		return 0, false
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return 0, false
	}
	switch mt {
	case ContentTypeMsgPack, "application/msgpack":
		return MsgPack, true
	case ContentTypeJSON:
		return JSON, true
	case ContentTypeYAML, "application/x-yaml", "text/yaml":
		return YAML, true
	default:
		return 0, false
	}
}

// EncodeValue appends the encoding of objVal to buf.
func (enc Encoding) EncodeValue(buf []byte, objVal reflect.Value) ([]byte, error) {
	switch enc {
	case MsgPack:
		bb := bytesBuilder{buf}
		enc := msgpack.GetEncoder()
		enc.ResetDict(&bb, nil)
		enc.SetSortMapKeys(true)
		err := enc.EncodeValue(objVal)
		msgpack.PutEncoder(enc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %v using MsgPack: %w", objVal.Type(), err)
		}
		return bb.Buf, nil
	case JSON:
		raw, err := json.Marshal(objVal.Interface())
		if err != nil {
			return nil, fmt.Errorf("failed to encode %v to JSON: %w", objVal.Type(), err)
		}
		return append(buf, raw...), nil
	case YAML:
		raw, err := yaml.Marshal(objVal.Interface())
		if err != nil {
			return nil, fmt.Errorf("failed to encode %v to YAML: %w", objVal.Type(), err)
		}
		return append(buf, raw...), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %v", enc)
	}
}

// DecodeValue decodes buf into the value objPtrVal points to.
func (enc Encoding) DecodeValue(buf []byte, objPtrVal reflect.Value) error {
	switch enc {
	case MsgPack:
		var r bytes.Reader
		r.Reset(buf)
		dec := msgpack.GetDecoder()
		dec.ResetDict(&r, nil)
		err := dec.DecodeValue(objPtrVal)
		msgpack.PutDecoder(dec)
		if err != nil {
			return dataErrf(buf, 0, err, "failed to decode msgpack into %v", objPtrVal.Type())
		}
		return nil
	case JSON:
		err := json.Unmarshal(buf, objPtrVal.Interface())
		if err != nil {
			return dataErrf(buf, 0, err, "failed to decode JSON into %v", objPtrVal.Type())
		}
		return nil
	case YAML:
		err := yaml.Unmarshal(buf, objPtrVal.Interface())
		if err != nil {
			return dataErrf(buf, 0, err, "failed to decode YAML into %v", objPtrVal.Type())
		}
		return nil
	default:
		return fmt.Errorf("unsupported encoding %v", enc)
	}
}

type bytesBuilder struct {
	Buf []byte
}

func (bb *bytesBuilder) Write(b []byte) (int, error) {
	bb.Buf = append(bb.Buf, b...)
	return len(b), nil
}

func (bb *bytesBuilder) WriteByte(v byte) error {
	bb.Buf = append(bb.Buf, v)
	return nil
}
