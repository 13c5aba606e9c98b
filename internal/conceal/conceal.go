// Package conceal defines the concealment capability that binds a hidden card
// value to a public artifact until a rule-defined reveal. The turn resolver
// depends only on this interface; rooms pick a backend at creation.
package conceal

import "fmt"

const (
	TagPlaintext = "plaintext"
	TagCommit    = "commit"
	TagSealed    = "sealed"
)

// Backend binds (value, secret) pairs to artifacts and verifies claimed
// reveals. Both operations are pure: verification is deterministic and total,
// and repeated calls with the same inputs agree.
//
// Slot and generation are part of the binding so a (value, secret) opening for
// one card can never be replayed against another card's artifact, and so a
// rebound card (Prince replacement, King swap) gets a genuinely fresh artifact.
type Backend interface {
	Name() string
	Bind(slot, generation uint8, value uint8, secret []byte) ([]byte, error)
	Verify(artifact []byte, slot, generation uint8, value uint8, secret []byte) bool
}

// New returns the backend for a tag. roomKey is the sealed backend's round
// public key (32-byte ristretto point); other backends ignore it.
func New(tag string, roomKey []byte) (Backend, error) {
	switch tag {
	case TagPlaintext:
		return plaintextBackend{}, nil
	case TagCommit:
		return commitBackend{}, nil
	case TagSealed:
		return newSealedBackend(roomKey)
	default:
		return nil, fmt.Errorf("unknown conceal backend %q", tag)
	}
}

func ValidTag(tag string) bool {
	switch tag {
	case TagPlaintext, TagCommit, TagSealed:
		return true
	}
	return false
}
