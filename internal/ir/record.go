package ir

import (
	"encoding/binary"
	"strconv"
	"strings"
)

// Record is one ground tuple of constants.
type Record []int

// Key returns a compact string usable as a map key.
func (r Record) Key() string {
	return RowKey(r)
}

// Equal reports element-wise equality.
func (r Record) Equal(o Record) bool {
	if len(r) != len(o) {
		return false
	}
	for i := range r {
		if r[i] != o[i] {
			return false
		}
	}
	return true
}

// String renders the record as (a,b,c).
func (r Record) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, v := range r {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(v))
	}
	sb.WriteByte(')')
	return sb.String()
}

// RowKey encodes a row of constants as a fixed-width byte string.
func RowKey(row []int) string {
	buf := make([]byte, 4*len(row))
	for i, v := range row {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(v))
	}
	return string(buf)
}

// KeyRow decodes a key produced by RowKey.
func KeyRow(key string) []int {
	row := make([]int, len(key)/4)
	for i := range row {
		row[i] = int(binary.LittleEndian.Uint32([]byte(key[4*i : 4*i+4])))
	}
	return row
}
