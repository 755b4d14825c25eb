package uniuri

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math"
)

const (
	// TokenLen is the length used for state and nonce values, ~190 bits of entropy.
	TokenLen = 32
	// SessionLen is the length of a session identifier, ~380 bits of entropy.
	SessionLen = 64
)

// StdChars is a set of standard characters allowed in uniuri string.
var StdChars = []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789")

// ErrCharsetLength is returned for charsets with less than 2 or more than 256 characters.
var ErrCharsetLength = errors.New("uniuri: wrong charset length")

// NewToken returns a random string suitable for state and nonce values.
func NewToken() (string, error) {
	return NewLenChars(TokenLen, StdChars)
}

// NewSessionID returns a random session identifier.
func NewSessionID() (string, error) {
	return NewLenChars(SessionLen, StdChars)
}

const (
	// maxBufLen is the maximum length of a temporary buffer for random bytes.
	maxBufLen = 2048

	// minRegenBufLen is the minimum length of temporary buffer for random bytes
	// to fill after the first rand.Read request didn't produce the full result.
	// If the initial buffer is smaller, this value is ignored.
	minRegenBufLen = 16

	// maxByteValue is the maximum value of a byte (2^8 - 1).
	maxByteValue = 255

	// byteRange is the total number of possible byte values (2^8).
	byteRange = 256
)

// estimatedBufLen returns the estimated number of random bytes to request
// given that byte values greater than maxByte will be rejected.
func estimatedBufLen(need, maxByte int) int {
	return int(math.Ceil(float64(need) * (maxByteValue / float64(maxByte))))
}

// NewLenCharsBytes returns a new random byte slice of the provided length, consisting
// of the provided byte slice of allowed characters (maximum 256).
func NewLenCharsBytes(length int, chars []byte) ([]byte, error) {
	if length <= 0 {
		return nil, nil
	}

	clen := len(chars)
	if clen < 2 || clen > byteRange {
		return nil, ErrCharsetLength
	}

	maxRb := maxByteValue - (byteRange % clen)
	bufLen := min(max(estimatedBufLen(length, maxRb), length), maxBufLen)

	buf := make([]byte, bufLen)
	out := make([]byte, length)

	var i int

	for {
		if _, err := rand.Read(buf[:bufLen]); err != nil {
			return nil, fmt.Errorf("uniuri: error reading random bytes: %w", err)
		}

		for _, rb := range buf[:bufLen] {
			c := int(rb)
			if c > maxRb {
				// skip to avoid modulo bias
				continue
			}

			out[i] = chars[c%clen]
			i++

			if i == length {
				return out, nil
			}
		}

		bufLen = estimatedBufLen(length-i, maxRb)
		if bufLen < minRegenBufLen && minRegenBufLen < cap(buf) {
			bufLen = minRegenBufLen
		}

		bufLen = min(bufLen, maxBufLen, cap(buf))
	}
}

// NewLenChars returns a new random string of the provided length, consisting
// of the provided byte slice of allowed characters (maximum 256).
func NewLenChars(length int, chars []byte) (string, error) {
	b, err := NewLenCharsBytes(length, chars)
	if err != nil {
		return "", err
	}

	return string(b), nil
}
