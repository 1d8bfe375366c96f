// Package cryptox holds the password hashing primitives. Passwords are stored
// as Argon2id digests in the PHC string format:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
//
// Salt and key are unpadded standard base64. Digests produced by the bcrypt
// based predecessor are still accepted by Verify so existing accounts can log
// in and be upgraded.
package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/memberkeeper/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const argon2idPrefix = "$argon2id$"

// upper bounds applied to parameters decoded from stored digests
const (
	maxMemoryKiB = 1 << 22
	maxTime      = 64
)

// Argon2Params are the cost parameters for new digests.
type Argon2Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
	SaltLen   uint32
	KeyLen    uint32
}

// DefaultArgon2Params returns the production cost: one pass over 64 MiB with
// four lanes.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{Time: 1, MemoryKiB: 64 * 1024, Threads: 4, SaltLen: 16, KeyLen: 32}
}

// Argon2Hasher hashes and verifies passwords with Argon2id. It is safe for
// concurrent use.
type Argon2Hasher struct {
	params Argon2Params
	rand   io.Reader
}

// NewArgon2Hasher returns a hasher producing digests with params. Zero salt or
// key lengths fall back to the defaults.
func NewArgon2Hasher(params Argon2Params) *Argon2Hasher {
	def := DefaultArgon2Params()
	if params.SaltLen == 0 {
		params.SaltLen = def.SaltLen
	}
	if params.KeyLen == 0 {
		params.KeyLen = def.KeyLen
	}
	if params.Threads == 0 {
		params.Threads = 1
	}
	if params.Time == 0 {
		params.Time = def.Time
	}
	if params.MemoryKiB < 8*uint32(params.Threads) {
		params.MemoryKiB = 8 * uint32(params.Threads)
	}
	return &Argon2Hasher{params: params, rand: rand.Reader}
}

// Hash returns a freshly salted digest of plaintext. Two calls with the same
// plaintext return different digests.
func (h *Argon2Hasher) Hash(plaintext []byte) (string, error) {
	if len(plaintext) == 0 {
		return "", fmt.Errorf("%w: empty password", common.ErrorValidation)
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := io.ReadFull(h.rand, salt); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrHashingFailure, err)
	}

	p := h.params
	key := argon2.IDKey(plaintext, salt, p.Time, p.MemoryKiB, p.Threads, p.KeyLen)

	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2idPrefix, argon2.Version, p.MemoryKiB, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plaintext produced encoded. Mismatches and malformed
// digests both yield ok=false; Verify never returns an error. needsRehash is
// set on success when the digest was made with other parameters or by bcrypt.
func (h *Argon2Hasher) Verify(encoded string, plaintext []byte) (ok bool, needsRehash bool) {
	if isBcrypt(encoded) {
		if bcrypt.CompareHashAndPassword([]byte(encoded), plaintext) != nil {
			return false, false
		}
		return true, true
	}

	d, err := decodeArgon2id(encoded)
	if err != nil {
		return false, false
	}

	candidate := argon2.IDKey(plaintext, d.salt, d.params.Time, d.params.MemoryKiB, d.params.Threads, uint32(len(d.key)))
	if subtle.ConstantTimeCompare(d.key, candidate) != 1 {
		return false, false
	}

	p := h.params
	stale := d.params.Time != p.Time || d.params.MemoryKiB != p.MemoryKiB ||
		d.params.Threads != p.Threads || uint32(len(d.key)) != p.KeyLen || uint32(len(d.salt)) != p.SaltLen

	return true, stale
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") || strings.HasPrefix(encoded, "$2b$") || strings.HasPrefix(encoded, "$2y$")
}

type argon2idDigest struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func decodeArgon2id(encoded string) (*argon2idDigest, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, fmt.Errorf("not an argon2id digest")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, fmt.Errorf("version: %w", err)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	d := &argon2idDigest{}
	var threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &d.params.MemoryKiB, &d.params.Time, &threads); err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	if threads == 0 || threads > 255 || d.params.Time == 0 || d.params.Time > maxTime ||
		d.params.MemoryKiB > maxMemoryKiB || d.params.MemoryKiB < 8*threads {
		return nil, fmt.Errorf("params out of range")
	}
	d.params.Threads = uint8(threads)

	var err error
	if d.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(d.salt) == 0 {
		return nil, fmt.Errorf("salt: %v", err)
	}
	if d.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(d.key) == 0 {
		return nil, fmt.Errorf("key: %v", err)
	}
	d.params.SaltLen = uint32(len(d.salt))
	d.params.KeyLen = uint32(len(d.key))

	return d, nil
}
