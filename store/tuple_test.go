package store

import (
	"bytes"
	"encoding/hex"
	"math"
	"reflect"
	"slices"
	"strings"
	"testing"
)

func TestTuple(t *testing.T) {
	l1024 := longhex(1024)
	tests := []struct {
		input    string
		expected string
	}{
		{"", "01"},
		{"4241", "424101"},
		{l1024, l1024 + "01"},
		{"4241|393837", "42413938370202"},
		{"1122|334455|66778899", "112233445566778899020303"},
		{l1024 + "|" + l1024, l1024 + l1024 + "088002"},
		{"|", "0002"},
		{"||", "000003"},
		{"|||", "00000004"},
	}
	for _, tt := range tests {
		src := parseTupleString(tt.input)
		if src.String() != tt.input {
			t.Errorf("** parseTupleString(%q).String() does not round-trip", tt.input)
			continue
		}

		encoded := src.encode(nil)
		encodedStr := hex.EncodeToString(encoded)
		if encodedStr != tt.expected {
			t.Errorf("** tuple(%q).encode() = %q, wanted %q", tt.input, encodedStr, tt.expected)
		} else {
			decoded := must(decodeTuple(encoded))
			if !reflect.DeepEqual(src, decoded) {
				t.Errorf("** decodeTuple(%q) = %s, wanted %s", encodedStr, decoded.String(), tt.input)
			}
		}
	}
}

func TestDecodeTuple_Invalid(t *testing.T) {
	for _, input := range []string{"80", "ff0202", "4203"} {
		raw := must(hex.DecodeString(input))
		if tup, err := decodeTuple(raw); err == nil {
			t.Errorf("** decodeTuple(%s) = %v, wanted error", input, tup)
		}
	}
}

func TestOrderedString(t *testing.T) {
	values := []string{"", "\x00", "\x00\x00", "\x00a", "a", "a\x00", "a\x00b", "a\x01", "ab", "b", "\xff"}
	var encoded [][]byte
	for _, v := range values {
		encoded = append(encoded, appendOrderedString(nil, v))
	}
	if !slices.IsSortedFunc(encoded, bytes.Compare) {
		t.Fatalf("** encodings are not sorted: %x", encoded)
	}
	for i, a := range encoded {
		for j, b := range encoded {
			if i != j && bytes.HasPrefix(b, a) {
				t.Errorf("** encoding of %q is a prefix of %q", values[i], values[j])
			}
		}
	}
}

func TestOrderedInt(t *testing.T) {
	values := []int64{math.MinInt64, -1 << 40, -2, -1, 0, 1, 2, 255, 256, 1 << 40, math.MaxInt64}
	var encoded [][]byte
	for _, v := range values {
		encoded = append(encoded, appendOrderedInt(nil, v))
	}
	if !slices.IsSortedFunc(encoded, bytes.Compare) {
		t.Fatalf("** encodings are not sorted: %x", encoded)
	}
}

func parseTupleString(s string) tuple {
	els := strings.Split(s, "|")
	tup := make(tuple, len(els))
	for i, el := range els {
		tup[i] = must(hex.DecodeString(el))
	}
	return tup
}

func longhex(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return hex.EncodeToString(b)
}
