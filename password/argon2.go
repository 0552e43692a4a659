package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const algorithmID = "argon2id"

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
)

// Params are the Argon2id cost parameters. Memory is expressed in KiB.
type Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams returns the production cost profile (64 MiB, t=3, p=4).
func DefaultParams() Params {
	return Params{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher derives and verifies Argon2id password hashes encoded as PHC
// strings ($argon2id$v=19$m=...,t=...,p=...$salt$hash). A Hasher is
// immutable after construction and safe for concurrent use.
type Hasher struct {
	params Params
}

// NewHasher validates the cost parameters and returns a Hasher.
func NewHasher(p Params) (*Hasher, error) {
	if p.Memory < minMemoryKB {
		return nil, errors.New("password: memory must be >= 8192 KiB")
	}
	if p.Time < minTimeCost {
		return nil, errors.New("password: time cost must be >= 1")
	}
	if p.Parallelism < minParallelism {
		return nil, errors.New("password: parallelism must be >= 1")
	}
	if p.SaltLength < minSaltLength {
		return nil, errors.New("password: salt length must be >= 16")
	}
	if p.KeyLength < minKeyLength {
		return nil, errors.New("password: key length must be >= 16")
	}
	return &Hasher{params: p}, nil
}

// Hash derives a salted Argon2id hash. Hashing the same password twice
// yields different strings because the salt is drawn fresh per call.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		h.params.Time,
		h.params.Memory,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the hash with the encoded parameters and compares in
// constant time.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(password),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		uint32(len(parsed.key)),
	)

	return subtle.ConstantTimeCompare(computed, parsed.key) == 1, nil
}

// NeedsRehash reports whether the encoded hash was derived with weaker cost
// parameters than the Hasher currently carries.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	if h.params.Memory > parsed.memory || h.params.Time > parsed.time {
		return true, nil
	}
	if h.params.Parallelism > parsed.parallelism {
		return true, nil
	}
	if h.params.KeyLength != uint32(len(parsed.key)) {
		return true, nil
	}
	return false, nil
}

type phcParts struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parsePHC(encoded string) (*phcParts, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return nil, errors.New("password: invalid PHC format")
	}
	if fields[1] != algorithmID {
		return nil, errors.New("password: unsupported algorithm")
	}

	version, ok := strings.CutPrefix(fields[2], "v=")
	if !ok {
		return nil, errors.New("password: missing argon2 version")
	}
	if v, err := strconv.Atoi(version); err != nil || v != argon2.Version {
		return nil, errors.New("password: unsupported argon2 version")
	}

	var parsed phcParts
	if err := parseCosts(fields[3], &parsed); err != nil {
		return nil, err
	}

	salt, err := base64.RawStdEncoding.DecodeString(fields[4])
	if err != nil || uint32(len(salt)) < minSaltLength {
		return nil, errors.New("password: invalid salt")
	}
	key, err := base64.RawStdEncoding.DecodeString(fields[5])
	if err != nil || len(key) == 0 {
		return nil, errors.New("password: invalid hash")
	}

	parsed.salt = salt
	parsed.key = key
	return &parsed, nil
}

func parseCosts(field string, out *phcParts) error {
	pairs := strings.Split(field, ",")
	if len(pairs) != 3 {
		return errors.New("password: invalid cost parameters")
	}

	var haveM, haveT, haveP bool
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return errors.New("password: invalid cost entry")
		}
		switch k {
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || uint32(n) < minMemoryKB {
				return errors.New("password: invalid memory cost")
			}
			out.memory = uint32(n)
			haveM = true
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || uint32(n) < minTimeCost {
				return errors.New("password: invalid time cost")
			}
			out.time = uint32(n)
			haveT = true
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil || uint8(n) < minParallelism {
				return errors.New("password: invalid parallelism")
			}
			out.parallelism = uint8(n)
			haveP = true
		default:
			return errors.New("password: unknown cost parameter")
		}
	}

	if !haveM || !haveT || !haveP {
		return errors.New("password: missing cost parameters")
	}
	return nil
}
