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

const (
	minMemoryKB   uint32 = 8 * 1024
	minSaltLength uint32 = 16
	minKeyLength  uint32 = 16
	algorithmID          = "argon2id"

	// MinLength matches the backend's MinimumLengthValidator.
	MinLength = 8
	// DefaultMaxPasswordBytes bounds hashing cost when Config leaves it zero.
	DefaultMaxPasswordBytes = 1024
)

// ErrMalformedHash is returned for strings that are not argon2id PHC hashes.
var ErrMalformedHash = errors.New("password: malformed hash")

// PolicyError lists every rule a password broke.
type PolicyError struct {
	Messages []string
}

func (e *PolicyError) Error() string {
	return strings.Join(e.Messages, " ")
}

type Config struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
}

// FastConfig is cheap enough for tests and load generation.
func FastConfig() Config {
	return Config{
		Memory:      minMemoryKB,
		Time:        1,
		Parallelism: 1,
		SaltLength:  minSaltLength,
		KeyLength:   32,
	}
}

// Argon2 hashes with argon2id. It is safe for concurrent use.
type Argon2 struct {
	config Config
}

func NewArgon2(cfg Config) (*Argon2, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, errors.New("password memory must be >= 8192 KB")
	case cfg.Time < 1:
		return nil, errors.New("password time must be >= 1")
	case cfg.Parallelism < 1:
		return nil, errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return nil, errors.New("password salt length must be >= 16")
	case cfg.KeyLength < minKeyLength:
		return nil, errors.New("password key length must be >= 16")
	case cfg.MaxPasswordBytes < 0:
		return nil, errors.New("password max bytes must be >= 0")
	}
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	return &Argon2{config: cfg}, nil
}

// Check applies the password policy without hashing.
func (a *Argon2) Check(password string) error {
	var msgs []string
	if len(password) < MinLength {
		msgs = append(msgs, fmt.Sprintf("This password is too short. It must contain at least %d characters.", MinLength))
	}
	if password != "" && strings.Trim(password, "0123456789") == "" {
		msgs = append(msgs, "This password is entirely numeric.")
	}
	if len(password) > a.config.MaxPasswordBytes {
		msgs = append(msgs, fmt.Sprintf("This password is longer than %d bytes.", a.config.MaxPasswordBytes))
	}
	if len(msgs) > 0 {
		return &PolicyError{Messages: msgs}
	}
	return nil
}

// Hash checks the policy and returns a PHC string.
func (a *Argon2) Hash(password string) (string, error) {
	if err := a.Check(password); err != nil {
		return "", err
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded. Over-long input is
// rejected before any hashing.
func (a *Argon2) Verify(password, encoded string) (bool, error) {
	if len(password) > a.config.MaxPasswordBytes {
		return false, errors.New("password: input too long")
	}
	h, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.parallelism, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(key, h.key) == 1, nil
}

// NeedsUpgrade reports whether encoded was made with weaker parameters than
// a's.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	h, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	return a.config.Memory > h.memory ||
		a.config.Time > h.time ||
		a.config.Parallelism > h.parallelism ||
		int(a.config.KeyLength) != len(h.key), nil
}

type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parsePHC(encoded string) (*phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return nil, ErrMalformedHash
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrMalformedHash, parts[2])
	}

	var h phc
	var seen int
	for _, pair := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, ErrMalformedHash
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %s", ErrMalformedHash, k)
		}
		switch k {
		case "m":
			if n < uint64(minMemoryKB) {
				return nil, fmt.Errorf("%w: memory", ErrMalformedHash)
			}
			h.memory = uint32(n)
		case "t":
			if n < 1 {
				return nil, fmt.Errorf("%w: time", ErrMalformedHash)
			}
			h.time = uint32(n)
		case "p":
			if n < 1 || n > 255 {
				return nil, fmt.Errorf("%w: parallelism", ErrMalformedHash)
			}
			h.parallelism = uint8(n)
		default:
			return nil, fmt.Errorf("%w: parameter %s", ErrMalformedHash, k)
		}
		seen++
	}
	if seen != 3 || h.memory == 0 || h.time == 0 || h.parallelism == 0 {
		return nil, fmt.Errorf("%w: missing parameters", ErrMalformedHash)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(h.salt) < int(minSaltLength) {
		return nil, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(h.key) == 0 {
		return nil, fmt.Errorf("%w: key", ErrMalformedHash)
	}
	return &h, nil
}
