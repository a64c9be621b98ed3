package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

var b64 = base64.RawStdEncoding

// phc is a decoded "$argon2id$v=19$m=<KiB>,t=<iter>,p=<par>$<salt>$<key>" string.
type phc struct {
	memoryKiB   uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (p phc) String() string {
	return "$argon2id$v=" + strconv.Itoa(argon2.Version) +
		"$m=" + strconv.FormatUint(uint64(p.memoryKiB), 10) +
		",t=" + strconv.FormatUint(uint64(p.iterations), 10) +
		",p=" + strconv.FormatUint(uint64(p.parallelism), 10) +
		"$" + b64.EncodeToString(p.salt) +
		"$" + b64.EncodeToString(p.key)
}

func (p phc) derive(password string) []byte {
	return argon2.IDKey([]byte(password), p.salt, p.iterations, p.memoryKiB, p.parallelism, uint32(len(p.key))) // #nosec G115 -- key length bounded by parsePHC.
}

// Hash validates password against the policy and returns its Argon2id PHC string.
func (c Config) Hash(password string) (string, error) {
	if err := c.Validate(password); err != nil {
		return "", err
	}

	p := phc{
		memoryKiB:   c.Params.MemoryKiB,
		iterations:  c.Params.Iterations,
		parallelism: c.Params.Parallelism,
		salt:        make([]byte, c.Params.SaltLength),
		key:         make([]byte, c.Params.KeyLength),
	}
	if _, err := rand.Read(p.salt); err != nil {
		return "", fmt.Errorf("password: salt: %w", err)
	}
	p.key = p.derive(password)
	return p.String(), nil
}

// Verify reports whether password matches encoded, which is either an Argon2id PHC
// string or a legacy bcrypt hash. A mismatch is (false, nil); an unreadable hash,
// or one whose cost is far above the configured cost, is ErrInvalidHash.
func (c Config) Verify(encoded, password string) (bool, error) {
	if IsBcrypt(encoded) {
		return verifyBcrypt(encoded, password)
	}

	p, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	if !c.affordable(p) {
		return false, ErrInvalidHash
	}
	return subtle.ConstantTimeCompare(p.derive(password), p.key) == 1, nil
}

// affordable bounds the work a stored hash can demand at twice the configured cost.
func (c Config) affordable(p phc) bool {
	return p.memoryKiB <= c.Params.MemoryKiB*2 &&
		p.iterations <= c.Params.Iterations*2 &&
		uint32(p.parallelism) <= uint32(c.Params.Parallelism)*2
}

func parsePHC(encoded string) (phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" || parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return phc{}, ErrInvalidHash
	}

	var p phc
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return phc{}, ErrInvalidHash
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return phc{}, ErrInvalidHash
		}
		switch k {
		case "m":
			p.memoryKiB = uint32(n)
		case "t":
			p.iterations = uint32(n)
		case "p":
			if n > 255 {
				return phc{}, ErrInvalidHash
			}
			p.parallelism = uint8(n)
		default:
			return phc{}, ErrInvalidHash
		}
	}
	if p.memoryKiB == 0 || p.iterations == 0 || p.parallelism == 0 {
		return phc{}, ErrInvalidHash
	}

	var err error
	if p.salt, err = b64.DecodeString(parts[4]); err != nil || len(p.salt) < 8 || len(p.salt) > 64 {
		return phc{}, ErrInvalidHash
	}
	if p.key, err = b64.DecodeString(parts[5]); err != nil || len(p.key) < 16 || len(p.key) > 128 {
		return phc{}, ErrInvalidHash
	}
	return p, nil
}
