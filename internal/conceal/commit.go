package conceal

import (
	"crypto/subtle"

	"onchaincourt/internal/occrypto"
)

const commitDomain = "occ/v1/conceal/commit"

// commitBackend is the hash-commitment variant: artifact =
// H(slot || generation || value || secret). Binding comes from the digest,
// hiding from the 32-byte secret.
type commitBackend struct{}

func (commitBackend) Name() string { return TagCommit }

func (commitBackend) Bind(slot, generation uint8, value uint8, secret []byte) ([]byte, error) {
	return occrypto.CommitDigest(commitDomain, []byte{slot, generation}, []byte{value}, secret)
}

func (commitBackend) Verify(artifact []byte, slot, generation uint8, value uint8, secret []byte) bool {
	want, err := occrypto.CommitDigest(commitDomain, []byte{slot, generation}, []byte{value}, secret)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(artifact, want) == 1
}
