// Package util contains small generic helpers.
package util

import (
	"bytes"
	"encoding/hex"
	"strconv"
)

// CloneSlice clones slice with cloneSize.
// This function will use src length as the clone size if cloneSize is 0.
func CloneSlice[T any](src []T, cloneSize int) []T {
	if cloneSize == 0 {
		cloneSize = len(src)
	}
	clone := make([]T, cloneSize)
	copy(clone, src)

	return clone
}

// HexPreview formats at most limit bytes of data as space separated hex, appending
// the omitted byte count when data is longer. Used for debug traces.
func HexPreview(data []byte, limit int) string {
	n := len(data)
	if limit > 0 && n > limit {
		n = limit
	}

	buf := make([]byte, 0, n*3+16)
	for i := 0; i < n; i++ {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = hex.AppendEncode(buf, data[i:i+1])
	}
	buf = bytes.ToUpper(buf)

	if n < len(data) {
		buf = append(buf, " ...(+"...)
		buf = strconv.AppendInt(buf, int64(len(data)-n), 10)
		buf = append(buf, ')')
	}

	return string(buf)
}
