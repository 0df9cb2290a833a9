package riakconv

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	ErrNoKey            = errors.New("no key")
	ErrUnsupportedValue = errors.New("unsupported value")
	ErrReadOnly         = errors.New("read-only accessor")
	ErrWriteOnly        = errors.New("write-only accessor")
)

type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}

// ConfigError reports a type whose role markers cannot be turned into a
// Descriptor. It is returned by every call that needs the descriptor until the
// type is fixed.
type ConfigError struct {
	Type  reflect.Type
	Field string
	Role  Role
	Msg   string
	Err   error
}

func configErrf(typ reflect.Type, field string, role Role, err error, format string, args ...any) error {
	return &ConfigError{typ, field, role, fmt.Sprintf(format, args...), err}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func (e *ConfigError) Error() string {
	var buf strings.Builder
	buf.WriteString("riakconv: ")
	if e.Type != nil {
		buf.WriteString(e.Type.String())
	}
	if e.Field != "" {
		buf.WriteByte('.')
		buf.WriteString(e.Field)
	}
	if e.Role != RoleNone {
		buf.WriteString(" (")
		buf.WriteString(e.Role.String())
		buf.WriteByte(')')
	}
	writeMsgAndErr(&buf, e.Msg, e.Err)
	return buf.String()
}

// ConversionError reports a failure to convert a single instance or record.
type ConversionError struct {
	Op     string // "fromDomain" or "toDomain"
	Type   reflect.Type
	Bucket string
	Key    string
	Role   Role
	Msg    string
	Err    error
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

func (e *ConversionError) Error() string {
	var buf strings.Builder
	buf.WriteString("riakconv: ")
	buf.WriteString(e.Op)
	if e.Type != nil {
		buf.WriteByte(' ')
		buf.WriteString(e.Type.String())
	}
	if e.Bucket != "" || e.Key != "" {
		buf.WriteByte(' ')
		buf.WriteString(e.Bucket)
		buf.WriteByte('/')
		buf.WriteString(e.Key)
	}
	if e.Role != RoleNone {
		buf.WriteString(" (")
		buf.WriteString(e.Role.String())
		buf.WriteByte(')')
	}
	writeMsgAndErr(&buf, e.Msg, e.Err)
	return buf.String()
}

func writeMsgAndErr(buf *strings.Builder, msg string, err error) {
	if msg != "" {
		buf.WriteString(": ")
		buf.WriteString(msg)
	}
	if err != nil {
		buf.WriteString(": ")
		buf.WriteString(err.Error())
	}
}
