package crypto

import "golang.org/x/crypto/blake2b"

// TxDigest maps a canonical transaction encoding to the protocol's
// fixed-width digest. The digest function is a collision-resistant primitive
// with a DigestLength-byte output; everything downstream (nonce derivation,
// signing) treats the result as opaque bytes of exactly that width.
func TxDigest(encoded []byte) ([]byte, error) {
	h, err := blake2b.New(DigestLength, nil)
	if err != nil {
		return nil, &CryptoError{Reason: "failed to initialize digest: " + err.Error()}
	}
	h.Write(encoded)
	return h.Sum(nil), nil
}
