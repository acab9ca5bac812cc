// Package password hashes and verifies credential secrets with scrypt.
//
// Hash output is a self-describing record of the form
//
//	scrypt$N=16384,r=16,p=1$<key>$<salt>
//
// so the verify side replays the exact parameters the record was created
// with. Verify never returns an error: malformed records, unknown
// algorithms and oversized cost parameters all verify as false.
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

	"golang.org/x/crypto/scrypt"
	"golang.org/x/text/unicode/norm"
)

const (
	algorithmID = "scrypt"

	minSaltLength = 16
	minKeyLength  = 32

	// Upper bound on scrypt's working memory during Verify
	// (approx. 128 * 2 * N * r * p bytes). Cost parameters come from the
	// stored record, so a corrupted or hostile record must not be able to
	// claim unbounded memory.
	maxVerifyMemory = 128 << 20
)

// Config holds the scrypt cost parameters fixed at construction time.
type Config struct {
	N          int
	R          int
	P          int
	SaltLength int
	KeyLength  int
}

// DefaultConfig returns the production cost parameters.
func DefaultConfig() Config {
	return Config{
		N:          16384,
		R:          16,
		P:          1,
		SaltLength: 16,
		KeyLength:  32,
	}
}

// Hasher derives and verifies scrypt hash records. Safe for concurrent use.
type Hasher struct {
	config Config
}

type parsedRecord struct {
	n    int
	r    int
	p    int
	key  []byte
	salt []byte
}

// NewHasher validates cfg and returns a Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return &Hasher{config: cfg}, nil
}

// Hash normalizes secret to NFKC, derives a key under a fresh random salt,
// and returns the self-describing record. It accepts any input string,
// including the empty string; the only failure mode is the random source.
func (h *Hasher) Hash(secret string) (string, error) {
	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key, err := scrypt.Key(normalize(secret), salt, h.config.N, h.config.R, h.config.P, h.config.KeyLength)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"%s$N=%d,r=%d,p=%d$%s$%s",
		algorithmID,
		h.config.N,
		h.config.R,
		h.config.P,
		base64.StdEncoding.EncodeToString(key),
		base64.StdEncoding.EncodeToString(salt),
	), nil
}

// Verify re-derives the key under the record's embedded parameters and
// compares in constant time. Malformed records verify as false; Verify
// never panics and never reports why a record failed.
func (h *Hasher) Verify(secret string, record string) bool {
	parsed, err := parseRecord(record)
	if err != nil {
		return false
	}

	key, err := scrypt.Key(normalize(secret), parsed.salt, parsed.n, parsed.r, parsed.p, len(parsed.key))
	if err != nil {
		return false
	}

	if len(key) != len(parsed.key) {
		return false
	}
	return subtle.ConstantTimeCompare(key, parsed.key) == 1
}

func normalize(secret string) []byte {
	return []byte(norm.NFKC.String(secret))
}

func parseRecord(record string) (*parsedRecord, error) {
	parts := strings.Split(record, "$")
	if len(parts) != 4 {
		return nil, errors.New("invalid record format")
	}
	if parts[0] != algorithmID {
		return nil, errors.New("unsupported algorithm")
	}

	params, err := parseParams(parts[1])
	if err != nil {
		return nil, err
	}

	key, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, errors.New("invalid key encoding")
	}
	if len(key) < minKeyLength {
		return nil, errors.New("invalid key length")
	}

	salt, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return nil, errors.New("invalid salt encoding")
	}
	if len(salt) < minSaltLength {
		return nil, errors.New("invalid salt length")
	}

	params.key = key
	params.salt = salt
	return params, nil
}

func parseParams(part string) (*parsedRecord, error) {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return nil, errors.New("invalid parameter format")
	}

	var (
		nSet, rSet, pSet bool
		parsed           parsedRecord
	)

	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, errors.New("invalid parameter entry")
		}

		v, err := strconv.Atoi(kv[1])
		if err != nil || v <= 0 {
			return nil, errors.New("invalid parameter value")
		}

		switch kv[0] {
		case "N":
			if v < 2 || v&(v-1) != 0 {
				return nil, errors.New("invalid N parameter")
			}
			parsed.n = v
			nSet = true
		case "r":
			parsed.r = v
			rSet = true
		case "p":
			parsed.p = v
			pSet = true
		default:
			return nil, errors.New("unsupported parameter")
		}
	}

	if !nSet || !rSet || !pSet {
		return nil, errors.New("missing parameters")
	}

	if estimateMemory(parsed.n, parsed.r, parsed.p) > maxVerifyMemory {
		return nil, errors.New("cost parameters exceed memory ceiling")
	}

	return &parsed, nil
}

func estimateMemory(n, r, p int) int64 {
	return 128 * 2 * int64(n) * int64(r) * int64(p)
}

func validateConfig(cfg Config) error {
	if cfg.N < 1024 || cfg.N&(cfg.N-1) != 0 {
		return errors.New("password N must be a power of two >= 1024")
	}
	if cfg.R < 1 {
		return errors.New("password r must be >= 1")
	}
	if cfg.P < 1 {
		return errors.New("password p must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("password salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 32")
	}
	if estimateMemory(cfg.N, cfg.R, cfg.P) > maxVerifyMemory {
		return errors.New("password cost parameters exceed memory ceiling")
	}
	return nil
}
