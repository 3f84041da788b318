package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Protocol-fixed widths. Any mismatch on input or output is a hard failure,
// never a warning.
const (
	// PrivateKeyLength is the protocol encoding of an API private key.
	PrivateKeyLength = 40
	// CompactPrivateKeyLength is the standard 256-bit key width, also accepted.
	CompactPrivateKeyLength = 32
	// DigestLength is the fixed width of a transaction digest (five 8-byte limbs).
	DigestLength = 40
	// PublicKeyLength is the compressed group-element encoding.
	PublicKeyLength = 33
	// SignatureLength is the compressed commitment point followed by a 32-byte scalar.
	SignatureLength = PublicKeyLength + 32
)

// KeyManager owns a private scalar and the public key derived from it once at
// construction. It is immutable afterwards and safe for unlimited concurrent
// use; signing is CPU-bound and never touches the network or the logger.
type KeyManager struct {
	privKey []byte   // raw key bytes as supplied, 32 or 40
	scalar  *big.Int // decoded little-endian, reduced mod group order
	pubKey  []byte   // compressed, PublicKeyLength bytes
}

// NewKeyManager builds a KeyManager from raw key bytes. Only the 40-byte
// protocol encoding and the 32-byte compact form are accepted.
func NewKeyManager(privateKey []byte) (*KeyManager, error) {
	if len(privateKey) != CompactPrivateKeyLength && len(privateKey) != PrivateKeyLength {
		return nil, &InvalidPrivateKeyLengthError{Expected: PrivateKeyLength, Actual: len(privateKey)}
	}

	scalar := scalarFromLE(privateKey)
	if scalar.Sign() == 0 {
		return nil, &CryptoError{Reason: "private key reduces to the zero scalar"}
	}

	pubKey, err := derivePublicKey(scalar)
	if err != nil {
		return nil, err
	}

	km := &KeyManager{
		privKey: append([]byte(nil), privateKey...),
		scalar:  scalar,
		pubKey:  pubKey,
	}
	return km, nil
}

// FromHex builds a KeyManager from a hex-encoded private key, with or without
// a "0x" prefix.
func FromHex(hexKey string) (*KeyManager, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(hexKey, "0x"), "0X")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key hex: %w", err)
	}
	return NewKeyManager(raw)
}

// PubKey returns the compressed public key. The result is a copy; the cached
// encoding never changes after construction.
func (km *KeyManager) PubKey() []byte {
	return append([]byte(nil), km.pubKey...)
}

// PubKeyHex returns the compressed public key as a hex string without prefix.
func (km *KeyManager) PubKeyHex() string {
	return hex.EncodeToString(km.pubKey)
}

// Sign produces a deterministic Schnorr signature over a fixed-width digest:
//
//	k = scalar(SHA-256(privKey || digest))   per-message signing nonce
//	R = k*G
//	e = scalar(SHA-256(enc(R) || pubKey || digest))
//	s = k + e*x mod n
//	sig = enc(R) || s
//
// The signing nonce is derived with a hash distinct from the digest function,
// so the same (key, digest) pair always yields the same signature and two
// distinct digests yield distinct nonces with overwhelming probability.
func (km *KeyManager) Sign(digest []byte) ([]byte, error) {
	if len(digest) != DigestLength {
		return nil, &InvalidDigestLengthError{Expected: DigestLength, Actual: len(digest)}
	}

	k := km.signingNonce(digest)
	if k.Sign() == 0 {
		return nil, &CryptoError{Reason: "signing nonce reduces to the zero scalar"}
	}

	commitment, err := encodePoint(curve().ScalarBaseMult(k.Bytes()))
	if err != nil {
		return nil, err
	}

	e := challengeScalar(commitment, km.pubKey, digest)

	n := curve().Params().N
	s := new(big.Int).Mul(e, km.scalar)
	s.Add(s, k)
	s.Mod(s, n)

	sig := make([]byte, SignatureLength)
	copy(sig, commitment)
	s.FillBytes(sig[PublicKeyLength:])

	if len(sig) != SignatureLength {
		return nil, &CryptoError{Reason: fmt.Sprintf("signature length %d, want %d", len(sig), SignatureLength)}
	}
	return sig, nil
}

// signingNonce derives the deterministic per-message scalar from the private
// key and the digest. SHA-256 here is intentionally a different function from
// the transaction digest, which gives the derivation its domain separation.
func (km *KeyManager) signingNonce(digest []byte) *big.Int {
	h := sha256.New()
	h.Write(km.privKey)
	h.Write(digest)
	return scalarFromLE(h.Sum(nil))
}

func derivePublicKey(scalar *big.Int) ([]byte, error) {
	return encodePoint(curve().ScalarBaseMult(scalar.Bytes()))
}

func encodePoint(x, y *big.Int) ([]byte, error) {
	encoded := ethcrypto.CompressPubkey(&ecdsa.PublicKey{Curve: curve(), X: x, Y: y})
	if len(encoded) != PublicKeyLength {
		return nil, &CryptoError{Reason: fmt.Sprintf("point encoding length %d, want %d", len(encoded), PublicKeyLength)}
	}
	return encoded, nil
}

// challengeScalar binds the commitment, the public key, and the digest into
// the signature equation.
func challengeScalar(commitment, pubKey, digest []byte) *big.Int {
	h := sha256.New()
	h.Write(commitment)
	h.Write(pubKey)
	h.Write(digest)
	return scalarFromLE(h.Sum(nil))
}

// scalarFromLE decodes little-endian bytes into a scalar reduced mod the
// group order, matching the protocol's field-element byte order.
func scalarFromLE(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i := range b {
		be[i] = b[len(b)-1-i]
	}
	s := new(big.Int).SetBytes(be)
	return s.Mod(s, curve().Params().N)
}

func curve() elliptic.Curve { return ethcrypto.S256() }
