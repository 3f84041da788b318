package crypto

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Verify checks a Schnorr signature against a compressed public key and a
// fixed-width digest: s*G == R + e*P. Returns false on any malformed input.
func Verify(pubKey, digest, sig []byte) bool {
	if len(pubKey) != PublicKeyLength || len(digest) != DigestLength || len(sig) != SignatureLength {
		return false
	}

	commitment := sig[:PublicKeyLength]
	r, err := ethcrypto.DecompressPubkey(commitment)
	if err != nil {
		return false
	}
	p, err := ethcrypto.DecompressPubkey(pubKey)
	if err != nil {
		return false
	}

	n := curve().Params().N
	s := new(big.Int).SetBytes(sig[PublicKeyLength:])
	if s.Sign() == 0 || s.Cmp(n) >= 0 {
		return false
	}

	e := challengeScalar(commitment, pubKey, digest)

	lhsX, lhsY := curve().ScalarBaseMult(s.Bytes())
	epX, epY := curve().ScalarMult(p.X, p.Y, e.Bytes())
	rhsX, rhsY := curve().Add(r.X, r.Y, epX, epY)

	return lhsX.Cmp(rhsX) == 0 && lhsY.Cmp(rhsY) == 0
}
