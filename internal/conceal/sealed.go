package conceal

import (
	"bytes"
	"fmt"

	"onchaincourt/internal/occrypto"
)

const (
	sealedRandDomain = "occ/v1/conceal/sealed/rand"
	sealedKeyDomain  = "occ/v1/conceal/sealed/key"
)

// sealedBackend is the symmetric "sealed card" variant realized as ElGamal
// over ristretto255 under a per-round room key. The artifact is the 64-byte
// ciphertext c1||c2; the secret is the seed of the encryption randomness, so
// an opening is checked by re-encrypting.
type sealedBackend struct {
	pk occrypto.Point
}

func newSealedBackend(roomKey []byte) (Backend, error) {
	pk, err := occrypto.PointFromBytesCanonical(roomKey)
	if err != nil {
		return nil, fmt.Errorf("sealed: bad room key: %w", err)
	}
	return sealedBackend{pk: pk}, nil
}

func (sealedBackend) Name() string { return TagSealed }

// cardPoint maps a card value to a group element. Collision-free for small v:
//   M_v = (v+1)*G
func cardPoint(value uint8) occrypto.Point {
	return occrypto.MulBase(occrypto.ScalarFromUint64(uint64(value) + 1))
}

func sealedRand(slot, generation uint8, secret []byte) (occrypto.Scalar, error) {
	r, err := occrypto.HashToScalar(sealedRandDomain, []byte{slot, generation}, secret)
	if err != nil {
		return occrypto.Scalar{}, err
	}
	if r.IsZero() {
		return occrypto.Scalar{}, fmt.Errorf("sealed: derived zero randomness")
	}
	return r, nil
}

func (b sealedBackend) Bind(slot, generation uint8, value uint8, secret []byte) ([]byte, error) {
	r, err := sealedRand(slot, generation, secret)
	if err != nil {
		return nil, err
	}
	ct, err := occrypto.ElGamalEncrypt(b.pk, cardPoint(value), r)
	if err != nil {
		return nil, err
	}
	return append(ct.C1.Bytes(), ct.C2.Bytes()...), nil
}

func (b sealedBackend) Verify(artifact []byte, slot, generation uint8, value uint8, secret []byte) bool {
	want, err := b.Bind(slot, generation, value, secret)
	if err != nil {
		return false
	}
	return bytes.Equal(artifact, want)
}

// SealedRoomKey derives a round's (secret, public) key pair from an opaque
// seed. The node holds the seed; the public key is what rooms store.
func SealedRoomKey(seed []byte) (sk occrypto.Scalar, pub []byte, err error) {
	sk, err = occrypto.HashToScalar(sealedKeyDomain, seed)
	if err != nil {
		return occrypto.Scalar{}, nil, err
	}
	if sk.IsZero() {
		return occrypto.Scalar{}, nil, fmt.Errorf("sealed: derived zero key")
	}
	return sk, occrypto.MulBase(sk).Bytes(), nil
}

// SealedForceOpen decrypts an artifact with the round key and returns the card
// value plus a Chaum-Pedersen proof that the decryption share d = sk*c1 is
// consistent with the room key. This backs the timeout path: an unanswered
// challenge is resolved by a publicly checkable forced reveal.
func SealedForceOpen(seed []byte, artifact []byte, maxValue uint8) (uint8, []byte, error) {
	sk, _, err := SealedRoomKey(seed)
	if err != nil {
		return 0, nil, err
	}
	ct, err := decodeCiphertext(artifact)
	if err != nil {
		return 0, nil, err
	}

	m := occrypto.ElGamalDecrypt(sk, ct)
	value, ok := uint8(0), false
	for v := uint8(0); v <= maxValue; v++ {
		if occrypto.PointEq(m, cardPoint(v)) {
			value, ok = v, true
			break
		}
	}
	if !ok {
		return 0, nil, fmt.Errorf("sealed: plaintext does not map to a card value")
	}

	d := occrypto.MulPoint(ct.C1, sk)
	w, err := occrypto.HashToScalar(sealedRandDomain, []byte("force-open-nonce"), artifact, seed)
	if err != nil {
		return 0, nil, err
	}
	proof, err := occrypto.ChaumPedersenProve(occrypto.MulBase(sk), ct.C1, d, sk, w)
	if err != nil {
		return 0, nil, err
	}
	return value, occrypto.EncodeChaumPedersenProof(proof), nil
}

// VerifySealedForceOpen checks a forced reveal: the proof must tie d = sk*c1
// to the room key, and c2 - d must equal the claimed value's card point.
func VerifySealedForceOpen(roomKey, artifact, proofBytes []byte, value uint8) bool {
	pk, err := occrypto.PointFromBytesCanonical(roomKey)
	if err != nil {
		return false
	}
	ct, err := decodeCiphertext(artifact)
	if err != nil {
		return false
	}
	proof, err := occrypto.DecodeChaumPedersenProof(proofBytes)
	if err != nil {
		return false
	}
	d := occrypto.PointSub(ct.C2, cardPoint(value))
	ok, err := occrypto.ChaumPedersenVerify(pk, ct.C1, d, proof)
	return err == nil && ok
}

func decodeCiphertext(artifact []byte) (occrypto.ElGamalCiphertext, error) {
	if len(artifact) != 64 {
		return occrypto.ElGamalCiphertext{}, fmt.Errorf("sealed: expected 64-byte artifact")
	}
	c1, err := occrypto.PointFromBytesCanonical(artifact[:32])
	if err != nil {
		return occrypto.ElGamalCiphertext{}, err
	}
	c2, err := occrypto.PointFromBytesCanonical(artifact[32:])
	if err != nil {
		return occrypto.ElGamalCiphertext{}, err
	}
	return occrypto.ElGamalCiphertext{C1: c1, C2: c2}, nil
}
