package crypto

import (
	"bytes"
	"encoding/hex"
	"errors"
	"math/rand"
	"testing"
)

func testKey(t *testing.T, size int) *KeyManager {
	t.Helper()
	raw := make([]byte, size)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	km, err := NewKeyManager(raw)
	if err != nil {
		t.Fatalf("failed to build key manager: %v", err)
	}
	return km
}

func randomDigest(rng *rand.Rand) []byte {
	d := make([]byte, DigestLength)
	rng.Read(d)
	return d
}

func TestNewKeyManagerAcceptedLengths(t *testing.T) {
	for _, size := range []int{CompactPrivateKeyLength, PrivateKeyLength} {
		raw := make([]byte, size)
		raw[0] = 7
		if _, err := NewKeyManager(raw); err != nil {
			t.Errorf("key length %d rejected: %v", size, err)
		}
	}
}

func TestNewKeyManagerRejectsBadLengths(t *testing.T) {
	for _, size := range []int{0, 16, 31, 33, 39, 41, 64} {
		_, err := NewKeyManager(make([]byte, size))
		if err == nil {
			t.Fatalf("key length %d accepted, want rejection", size)
		}
		var lenErr *InvalidPrivateKeyLengthError
		if !errors.As(err, &lenErr) {
			t.Fatalf("key length %d: got %T, want InvalidPrivateKeyLengthError", size, err)
		}
		if lenErr.Actual != size {
			t.Errorf("reported actual = %d, want %d", lenErr.Actual, size)
		}
	}
}

func TestNewKeyManagerRejectsZeroScalar(t *testing.T) {
	_, err := NewKeyManager(make([]byte, PrivateKeyLength))
	var cryptoErr *CryptoError
	if !errors.As(err, &cryptoErr) {
		t.Fatalf("all-zero key: got %v, want CryptoError", err)
	}
}

func TestFromHex(t *testing.T) {
	raw := make([]byte, PrivateKeyLength)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	plain := hex.EncodeToString(raw)

	km1, err := FromHex(plain)
	if err != nil {
		t.Fatalf("failed to load hex key: %v", err)
	}
	km2, err := FromHex("0x" + plain)
	if err != nil {
		t.Fatalf("failed to load 0x-prefixed key: %v", err)
	}
	if km1.PubKeyHex() != km2.PubKeyHex() {
		t.Error("prefix handling changed the derived public key")
	}

	if _, err := FromHex("not-hex"); err == nil {
		t.Error("malformed hex accepted")
	}
}

func TestPublicKeyPurity(t *testing.T) {
	km := testKey(t, PrivateKeyLength)
	first := km.PubKey()
	if len(first) != PublicKeyLength {
		t.Fatalf("public key length = %d, want %d", len(first), PublicKeyLength)
	}

	// Signing must not perturb the cached derivation.
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		if _, err := km.Sign(randomDigest(rng)); err != nil {
			t.Fatalf("sign failed: %v", err)
		}
		if !bytes.Equal(km.PubKey(), first) {
			t.Fatalf("public key changed after %d signatures", i+1)
		}
	}

	// Mutating a returned copy must not reach the cache.
	mutated := km.PubKey()
	mutated[0] ^= 0xff
	if !bytes.Equal(km.PubKey(), first) {
		t.Error("returned public key aliases internal state")
	}
}

func TestSignDeterminism(t *testing.T) {
	km := testKey(t, PrivateKeyLength)
	rng := rand.New(rand.NewSource(11))

	for i := 0; i < 100; i++ {
		digest := randomDigest(rng)
		sig1, err := km.Sign(digest)
		if err != nil {
			t.Fatalf("sign failed: %v", err)
		}
		sig2, err := km.Sign(digest)
		if err != nil {
			t.Fatalf("second sign failed: %v", err)
		}
		if !bytes.Equal(sig1, sig2) {
			t.Fatalf("signatures differ for identical digest (iteration %d)", i)
		}
	}
}

func TestSignDistinctness(t *testing.T) {
	km := testKey(t, PrivateKeyLength)
	rng := rand.New(rand.NewSource(13))

	seen := make(map[string][]byte, 10000)
	for i := 0; i < 10000; i++ {
		digest := randomDigest(rng)
		sig, err := km.Sign(digest)
		if err != nil {
			t.Fatalf("sign failed at %d: %v", i, err)
		}
		if prev, ok := seen[string(sig)]; ok && !bytes.Equal(prev, digest) {
			t.Fatalf("signature collision between distinct digests at %d", i)
		}
		seen[string(sig)] = digest
	}
}

func TestSignRejectsBadDigestLength(t *testing.T) {
	km := testKey(t, CompactPrivateKeyLength)
	for _, size := range []int{0, 1, 32, 39, 41, 64} {
		_, err := km.Sign(make([]byte, size))
		var lenErr *InvalidDigestLengthError
		if !errors.As(err, &lenErr) {
			t.Fatalf("digest length %d: got %v, want InvalidDigestLengthError", size, err)
		}
		if lenErr.Expected != DigestLength || lenErr.Actual != size {
			t.Errorf("reported lengths = (%d, %d), want (%d, %d)",
				lenErr.Expected, lenErr.Actual, DigestLength, size)
		}
	}
}

func TestSignatureWidthAndVerify(t *testing.T) {
	km := testKey(t, PrivateKeyLength)
	rng := rand.New(rand.NewSource(17))
	digest := randomDigest(rng)

	sig, err := km.Sign(digest)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if len(sig) != SignatureLength {
		t.Fatalf("signature length = %d, want %d", len(sig), SignatureLength)
	}

	if !Verify(km.PubKey(), digest, sig) {
		t.Fatal("valid signature failed verification")
	}

	// Wrong digest.
	if Verify(km.PubKey(), randomDigest(rng), sig) {
		t.Error("signature verified against wrong digest")
	}

	// Wrong key.
	other := testKey(t, CompactPrivateKeyLength)
	if Verify(other.PubKey(), digest, sig) {
		t.Error("signature verified against wrong public key")
	}

	// Tampered scalar.
	tampered := append([]byte(nil), sig...)
	tampered[SignatureLength-1] ^= 0x01
	if Verify(km.PubKey(), digest, tampered) {
		t.Error("tampered signature verified")
	}

	// Malformed widths never verify.
	if Verify(km.PubKey(), digest[:10], sig) || Verify(km.PubKey(), digest, sig[:10]) {
		t.Error("verification accepted malformed widths")
	}
}

func TestKeyWidthsSignIndependently(t *testing.T) {
	rng := rand.New(rand.NewSource(19))
	digest := randomDigest(rng)

	km32 := testKey(t, CompactPrivateKeyLength)
	km40 := testKey(t, PrivateKeyLength)

	sig32, err := km32.Sign(digest)
	if err != nil {
		t.Fatalf("32-byte key sign failed: %v", err)
	}
	sig40, err := km40.Sign(digest)
	if err != nil {
		t.Fatalf("40-byte key sign failed: %v", err)
	}

	if !Verify(km32.PubKey(), digest, sig32) || !Verify(km40.PubKey(), digest, sig40) {
		t.Fatal("self-verification failed")
	}
	if bytes.Equal(sig32, sig40) {
		t.Error("distinct keys produced identical signatures")
	}
}

func TestTxDigest(t *testing.T) {
	d1, err := TxDigest([]byte("payload-a"))
	if err != nil {
		t.Fatalf("digest failed: %v", err)
	}
	if len(d1) != DigestLength {
		t.Fatalf("digest length = %d, want %d", len(d1), DigestLength)
	}

	d2, _ := TxDigest([]byte("payload-a"))
	if !bytes.Equal(d1, d2) {
		t.Error("digest is not deterministic")
	}

	d3, _ := TxDigest([]byte("payload-b"))
	if bytes.Equal(d1, d3) {
		t.Error("distinct payloads produced identical digests")
	}
}
