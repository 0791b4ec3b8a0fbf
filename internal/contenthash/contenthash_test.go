package contenthash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSumDeterministic(t *testing.T) {
	data := []byte("emulated memory region")
	assert.Equal(t, Sum(data), Sum(append([]byte(nil), data...)))
}

func TestSumDetectsSingleByteChange(t *testing.T) {
	data := make([]byte, 4096)
	before := Sum(data)
	data[2047] ^= 0x01
	assert.NotEqual(t, before, Sum(data))
}

func TestSumEmpty(t *testing.T) {
	assert.Equal(t, Sum(nil), Sum([]byte{}))
}
