package store

import (
	"errors"
	"fmt"

	"github.com/andreyvit/riakconv"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrNoBucket    = errors.New("no bucket")
	ErrStaleVClock = errors.New("vclock does not descend from the stored one")
)

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &riakconv.DataError{Data: data, Off: off, Err: err, Msg: fmt.Sprintf(format, args...)}
}

// OpError describes a failed store operation on a single record.
type OpError struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func (e *OpError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store: %s %s: %v", e.Op, e.Bucket, e.Err)
	}
	return fmt.Sprintf("store: %s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
}
