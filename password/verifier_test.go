package password

import (
	"context"
	"errors"
	"strings"
	"testing"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// cheap keeps the tests fast; production hashes use DefaultParams.
var cheap = Params{Memory: 8 * 1024, Time: 1, Threads: 1}

func hashed(t *testing.T, pw string) goIdentity.UserRecord {
	t.Helper()
	h, err := Hash(pw, cheap)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return goIdentity.UserRecord{UserID: "u1", PasswordHash: h}
}

func TestVerifyCredentialsMatch(t *testing.T) {
	user := hashed(t, "correct-password-123")
	ctx := context.Background()

	ok, err := Verifier{}.VerifyCredentials(ctx, user, "correct-password-123")
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}
	ok, err = Verifier{}.VerifyCredentials(ctx, user, "correct-password-124")
	if err != nil || ok {
		t.Fatalf("expected mismatch, got ok=%v err=%v", ok, err)
	}
}

func TestHashEncodesParams(t *testing.T) {
	user := hashed(t, "correct-password-123")
	if !strings.HasPrefix(user.PasswordHash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected encoding %q", user.PasswordHash)
	}

	other := hashed(t, "correct-password-123")
	if other.PasswordHash == user.PasswordHash {
		t.Fatal("expected a fresh salt per hash")
	}
}

func TestVerifyCredentialsTooLongIsMismatch(t *testing.T) {
	long := strings.Repeat("a", 33)
	user := hashed(t, long)

	ok, err := Verifier{MaxPasswordBytes: 32}.VerifyCredentials(context.Background(), user, long)
	if err != nil || ok {
		t.Fatalf("expected silent mismatch, got ok=%v err=%v", ok, err)
	}
	ok, err = Verifier{MaxPasswordBytes: 64}.VerifyCredentials(context.Background(), user, long)
	if err != nil || !ok {
		t.Fatalf("expected match under a larger limit, got ok=%v err=%v", ok, err)
	}
}

func TestVerifyCredentialsInvalidHash(t *testing.T) {
	good := hashed(t, "correct-password-123").PasswordHash
	parts := strings.Split(good, "$")

	cases := map[string]string{
		"empty":     "",
		"bcrypt":    "$2a$10$abcdefghijklmnopqrstuv",
		"argon2i":   strings.Replace(good, "argon2id", "argon2i", 1),
		"version":   strings.Replace(good, "v=19", "v=16", 1),
		"params":    strings.Join([]string{"", parts[1], parts[2], "m=x,t=1,p=1", parts[4], parts[5]}, "$"),
		"zero cost": strings.Join([]string{"", parts[1], parts[2], "m=8192,t=0,p=1", parts[4], parts[5]}, "$"),
		"salt":      strings.Join([]string{"", parts[1], parts[2], parts[3], "!!", parts[5]}, "$"),
		"key":       strings.Join([]string{"", parts[1], parts[2], parts[3], parts[4], ""}, "$"),
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			user := goIdentity.UserRecord{PasswordHash: h}
			_, err := Verifier{}.VerifyCredentials(context.Background(), user, "correct-password-123")
			if !errors.Is(err, ErrInvalidHash) {
				t.Fatalf("expected ErrInvalidHash, got %v", err)
			}
		})
	}
}

func TestVerifyCredentialsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Verifier{}.VerifyCredentials(ctx, hashed(t, "correct-password-123"), "correct-password-123")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestVerifierThroughEngineInterface(t *testing.T) {
	var v goIdentity.CredentialVerifier = Verifier{}
	ok, err := v.VerifyCredentials(context.Background(), hashed(t, "correct-password-123"), "correct-password-123")
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}
}
