package persistence

import (
	"bytes"
	"hash/crc32"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottledWriter(t *testing.T) {
	var buf bytes.Buffer
	assert.Same(t, &buf, NewThrottledWriter(&buf, 0))

	w := NewThrottledWriter(&buf, 1000)
	start := time.Now()
	n, err := w.Write(make([]byte, 1500))
	require.NoError(t, err)
	assert.Equal(t, 1500, n)
	assert.Equal(t, 1500, buf.Len())
	// The first burst is free, the remaining 500 bytes wait about half a second.
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
}

func TestChecksumWriter(t *testing.T) {
	var buf bytes.Buffer
	cw := NewChecksumWriter(&buf)
	_, err := cw.Write([]byte("hello "))
	require.NoError(t, err)
	_, err = cw.Write([]byte("world"))
	require.NoError(t, err)

	assert.Equal(t, crc32.ChecksumIEEE([]byte("hello world")), cw.Sum())
	assert.Equal(t, cw.Sum(), CalculateChecksum(buf.Bytes()))

	err = verifyChecksum("x", buf.Bytes(), cw.Sum()+1)
	assert.True(t, IsChecksumMismatch(err))
	assert.Contains(t, err.Error(), "checksum mismatch in x")
}
