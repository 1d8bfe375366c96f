package common

import "crypto/rand"

// GenerateRandByteArray returns size bytes read from crypto/rand.
func GenerateRandByteArray(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// WipeByteArray zeroes b. Password buffers are wiped once hashed or
// verified.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
