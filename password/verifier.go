package password

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// DefaultMaxPasswordBytes caps the input fed to Argon2.
const DefaultMaxPasswordBytes = 1024

// ErrInvalidHash is returned for a stored hash that is not an argon2id PHC
// string this package can read.
var ErrInvalidHash = errors.New("invalid password hash")

// Params are the Argon2id costs used by [Hash]. Memory is in KiB.
type Params struct {
	Memory  uint32
	Time    uint32
	Threads uint8
}

// DefaultParams is 64 MiB, 3 passes and 2 lanes.
var DefaultParams = Params{Memory: 64 * 1024, Time: 3, Threads: 2}

const (
	saltLen = 16
	keyLen  = 32
)

// Hash encodes password as $argon2id$v=19$m=..,t=..,p=..$salt$key for
// seeding a UserDirectory.
func Hash(password string, p Params) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, keyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verifier checks UserRecord.PasswordHash against argon2id PHC strings. The
// zero value is ready to use.
type Verifier struct {
	// MaxPasswordBytes defaults to DefaultMaxPasswordBytes. Longer
	// passwords never match.
	MaxPasswordBytes int
}

var _ goIdentity.CredentialVerifier = Verifier{}

// VerifyCredentials reports a too-long password as a mismatch, not an
// error, so callers cannot tell the two apart.
func (v Verifier) VerifyCredentials(ctx context.Context, user goIdentity.UserRecord, password string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	limit := v.MaxPasswordBytes
	if limit <= 0 {
		limit = DefaultMaxPasswordBytes
	}
	if len(password) > limit {
		return false, nil
	}

	p, salt, want, err := decode(user.PasswordHash)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func decode(encoded string) (Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Params{}, nil, nil, ErrInvalidHash
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return Params{}, nil, nil, fmt.Errorf("%w: version %s", ErrInvalidHash, parts[2])
	}

	var p Params
	n, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads)
	if err != nil || n != 3 || p.Memory == 0 || p.Time == 0 || p.Threads == 0 {
		return Params{}, nil, nil, fmt.Errorf("%w: parameters", ErrInvalidHash)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return Params{}, nil, nil, fmt.Errorf("%w: salt", ErrInvalidHash)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return Params{}, nil, nil, fmt.Errorf("%w: key", ErrInvalidHash)
	}
	return p, salt, key, nil
}
