// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

const (
	argon2SaltLen = 16
	argon2KeyLen  = 32
)

// Upper bounds on argon2 cost. Stored digests above the verify ceiling are
// rejected before any key derivation runs.
const (
	MaxArgon2Memory = 1 << 20 // KiB (1 GiB)
	MaxArgon2Time   = 64

	// verifyCostFactor is how far a stored digest's cost may exceed the
	// hasher's own parameters and still be verified.
	verifyCostFactor = 8
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted digest of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the digest.
	// A malformed digest yields (false, err); the caller must treat it as a mismatch.
	Verify(password, hash string) (bool, error)

	// NeedsUpgrade returns true if the digest was produced with other parameters.
	NeedsUpgrade(hash string) bool
}

// Argon2Params are the argon2id cost parameters.
type Argon2Params struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultArgon2Params returns the OWASP-recommended argon2id parameters.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{Time: 1, Memory: 64 * 1024, Threads: 4}
}

// Validate rejects parameters argon2 cannot work with.
func (p Argon2Params) Validate() error {
	if p.Time == 0 || p.Memory == 0 || p.Threads == 0 {
		return oops.Code("AUTH_INVALID_HASH_PARAMS").
			With("time", p.Time).
			With("memory", p.Memory).
			With("threads", p.Threads).
			Errorf("argon2 parameters must be positive")
	}
	if p.Memory > MaxArgon2Memory || p.Time > MaxArgon2Time {
		return oops.Code("AUTH_INVALID_HASH_PARAMS").
			With("time", p.Time).
			With("memory", p.Memory).
			Errorf("argon2 parameters exceed memory %d KiB or time %d", MaxArgon2Memory, MaxArgon2Time)
	}
	return nil
}

// Argon2idHasher implements PasswordHasher using argon2id.
type Argon2idHasher struct {
	params Argon2Params
}

// NewArgon2idHasher creates a hasher with the default cost parameters.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{params: DefaultArgon2Params()}
}

// NewArgon2idHasherWithParams creates a hasher with explicit cost parameters.
func NewArgon2idHasherWithParams(params Argon2Params) (*Argon2idHasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Argon2idHasher{params: params}, nil
}

// Hash produces an argon2id digest of the password in PHC string format.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks if the password matches the digest.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	d, err := decodeArgon2(encodedHash)
	if err != nil {
		return false, err
	}
	if limit := h.verifyCeiling(); d.params.Memory > limit.Memory || d.params.Time > limit.Time {
		return false, oops.Code("AUTH_INVALID_HASH").
			With("memory", d.params.Memory).
			With("time", d.params.Time).
			Errorf("hash cost exceeds verify ceiling (memory %d KiB, time %d)", limit.Memory, limit.Time)
	}

	computed := argon2.IDKey([]byte(password), d.salt, d.params.Time, d.params.Memory, d.params.Threads, uint32(len(d.key)))
	return subtle.ConstantTimeCompare(computed, d.key) == 1, nil
}

// verifyCeiling is the highest cost Verify will spend on a stored digest.
func (h *Argon2idHasher) verifyCeiling() Argon2Params {
	return Argon2Params{
		Memory: uint32(min(uint64(h.params.Memory)*verifyCostFactor, MaxArgon2Memory)),
		Time:   uint32(min(uint64(h.params.Time)*verifyCostFactor, MaxArgon2Time)),
	}
}

// NeedsUpgrade returns true if the digest is not argon2id or was produced
// with parameters other than the hasher's.
func (h *Argon2idHasher) NeedsUpgrade(encodedHash string) bool {
	d, err := decodeArgon2(encodedHash)
	if err != nil {
		return true
	}
	return d.version != argon2.Version || d.params != h.params
}

type argon2Digest struct {
	version int
	params  Argon2Params
	salt    []byte
	key     []byte
}

func decodeArgon2(encodedHash string) (*argon2Digest, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	d := &argon2Digest{}
	if _, err := fmt.Sscanf(parts[2], "v=%d", &d.version); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	var threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &d.params.Memory, &d.params.Time, &threads); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d out of range", threads)
	}
	d.params.Threads = uint8(threads)
	if d.params.Time == 0 || d.params.Memory == 0 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("cost parameters must be positive")
	}

	var err error
	if d.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if d.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(d.key) == 0 || len(d.key) > 1<<10 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", len(d.key))
	}
	return d, nil
}
