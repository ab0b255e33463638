package parser

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestDecodeBytesUTF8(t *testing.T) {
	assert.Equal(t, "héllo wörld", DecodeBytes([]byte("héllo wörld")))
}

func TestDecodeBytesLatin1(t *testing.T) {
	// "café" in Latin-1: é is a single 0xE9 byte, invalid as UTF-8.
	raw := []byte{'c', 'a', 'f', 0xE9}
	assert.Equal(t, "café", DecodeBytes(raw))
}

func TestDecodeBytesNeverInvalid(t *testing.T) {
	inputs := [][]byte{
		nil,
		{},
		{0xFF, 0xFE, 0x00, 0x41},
		{0x80, 0x81, 0x82},
	}
	for _, raw := range inputs {
		decoded := DecodeBytes(raw)
		assert.True(t, utf8.ValidString(decoded))
	}
}
