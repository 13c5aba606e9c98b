package occrypto

import (
	"crypto/sha512"
	"fmt"
	"hash"
)

var (
	hashToScalarPrefix = []byte("OCCv1|hash_to_scalar|")
	commitPrefix       = []byte("OCCv1|commit|")
)

func updateLenBytes(h hash.Hash, b []byte) {
	h.Write(u32le(uint32(len(b))))
	h.Write(b)
}

// HashToScalar derives a scalar from domain-separated, length-prefixed input.
func HashToScalar(domainSep string, msgs ...[]byte) (Scalar, error) {
	h := sha512.New()
	h.Write(hashToScalarPrefix)
	updateLenBytes(h, []byte(domainSep))
	for _, m := range msgs {
		if m == nil {
			return Scalar{}, fmt.Errorf("hashToScalar: nil msg")
		}
		updateLenBytes(h, m)
	}
	digest := h.Sum(nil) // 64 bytes
	return ScalarFromUniformBytes(digest)
}

// CommitDigest is the binding hash behind commitment artifacts: a 32-byte
// sha512/256 digest over domain-separated, length-prefixed messages.
func CommitDigest(domainSep string, msgs ...[]byte) ([]byte, error) {
	h := sha512.New512_256()
	h.Write(commitPrefix)
	updateLenBytes(h, []byte(domainSep))
	for _, m := range msgs {
		if m == nil {
			return nil, fmt.Errorf("commitDigest: nil msg")
		}
		updateLenBytes(h, m)
	}
	return h.Sum(nil), nil
}
