package password

import (
	"errors"
	"strings"
	"testing"
)

func newHasher(t *testing.T) *Argon2 {
	t.Helper()
	h, err := NewArgon2(FastConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := newHasher(t)

	hash, err := h.Hash("Secret123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := h.Verify("Secret123", hash)
	if err != nil || !ok {
		t.Fatalf("expected verification to succeed: ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify("Secret124", hash)
	if err != nil || ok {
		t.Fatalf("expected wrong password to fail: ok=%v err=%v", ok, err)
	}
}

func TestPolicy(t *testing.T) {
	h := newHasher(t)

	cases := map[string]int{
		"":              1,
		"short":         1,
		"1234567":       2,
		"12345678":      1,
		"Secret123":     0,
		"long-enough-1": 0,
	}
	for pw, want := range cases {
		err := h.Check(pw)
		if want == 0 {
			if err != nil {
				t.Errorf("%q: unexpected policy error %v", pw, err)
			}
			continue
		}
		var pe *PolicyError
		if !errors.As(err, &pe) || len(pe.Messages) != want {
			t.Errorf("%q: expected %d policy messages, got %v", pw, want, err)
		}
	}
}

func TestMaxPasswordBytes(t *testing.T) {
	cfg := FastConfig()
	cfg.MaxPasswordBytes = 64
	h, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	if _, err := h.Hash(strings.Repeat("a", 65)); err == nil {
		t.Fatal("expected long password to be rejected by Hash")
	}
	hash, err := h.Hash(strings.Repeat("b", 64))
	if err != nil {
		t.Fatalf("expected max-length password to be accepted: %v", err)
	}
	if _, err := h.Verify(strings.Repeat("c", 65), hash); err == nil {
		t.Fatal("expected long password to be rejected by Verify")
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak := newHasher(t)
	hash, err := weak.Hash("Secret123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if up, err := weak.NeedsUpgrade(hash); err != nil || up {
		t.Fatalf("same config should not need upgrade: up=%v err=%v", up, err)
	}

	cfg := FastConfig()
	cfg.Time = 2
	strong, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	if up, err := strong.NeedsUpgrade(hash); err != nil || !up {
		t.Fatalf("stronger config should need upgrade: up=%v err=%v", up, err)
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := newHasher(t)
	for _, bad := range []string{
		"",
		"plain",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		"$argon2id$v=16$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$c2hvcnQ$a2V5",
	} {
		if _, err := h.Verify("Secret123", bad); !errors.Is(err, ErrMalformedHash) {
			t.Errorf("%q: expected ErrMalformedHash, got %v", bad, err)
		}
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	for _, mutate := range []func(*Config){
		func(c *Config) { c.Memory = 1024 },
		func(c *Config) { c.Time = 0 },
		func(c *Config) { c.Parallelism = 0 },
		func(c *Config) { c.SaltLength = 8 },
		func(c *Config) { c.KeyLength = 8 },
		func(c *Config) { c.MaxPasswordBytes = -1 },
	} {
		cfg := FastConfig()
		mutate(&cfg)
		if _, err := NewArgon2(cfg); err == nil {
			t.Fatalf("expected config %+v to be rejected", cfg)
		}
	}
}
