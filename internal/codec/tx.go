package codec

import (
	"encoding/json"
	"fmt"
)

// TxEnvelope is the transaction container.
//
// CometBFT transactions are opaque bytes; the engine uses JSON-encoded txs.
// Auth fields are optional until an account registers a key:
// - Nonce: included in the signed message for replay protection (must increase per signer).
// - Signer: logical signer id (the player address).
// - Sig: Ed25519 signature over (type, nonce, signer, sha256(value)).
type TxEnvelope struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`

	Nonce  string `json:"nonce,omitempty"`
	Signer string `json:"signer,omitempty"`
	Sig    []byte `json:"sig,omitempty"`
}

func DecodeTxEnvelope(txBytes []byte) (TxEnvelope, error) {
	var env TxEnvelope
	if err := json.Unmarshal(txBytes, &env); err != nil {
		return TxEnvelope{}, fmt.Errorf("invalid tx json: %w", err)
	}
	if env.Type == "" {
		return TxEnvelope{}, fmt.Errorf("missing tx.type")
	}
	return env, nil
}

// ---- Auth ----

type AuthRegisterAccountTx struct {
	Account string `json:"account"`
	PubKey  []byte `json:"pubKey"` // base64 (32 bytes)
}

// ---- Rooms ----

type RoomCreateTx struct {
	Creator    string `json:"creator"`
	Name       string `json:"name"`
	MaxPlayers uint8  `json:"maxPlayers,omitempty"` // default 4, range 2..6

	TokensToWin uint8  `json:"tokensToWin,omitempty"` // 0 = default by player count
	Edition     string `json:"edition,omitempty"`     // deluxe21 (default) | classic16
	Conceal     string `json:"conceal,omitempty"`     // plaintext | commit (default) | sealed

	ResponseTimeoutSecs uint64 `json:"responseTimeoutSecs,omitempty"`
}

type RoomJoinTx struct {
	Player string `json:"player"`
	RoomID uint64 `json:"roomId"`
}

// RoomStartRoundTx deals a fresh round. Entropy, when present, is 32 bytes of
// caller-supplied randomness folded into the round seed; without it the seed
// derives from public chain inputs alone and the shuffle is predictable.
type RoomStartRoundTx struct {
	Caller  string `json:"caller"`
	RoomID  uint64 `json:"roomId"`
	Entropy []byte `json:"entropy,omitempty"` // base64 (32 bytes or omitted)
}

// RoomPlayTurnTx plays one card. CardSlot is a deck slot id that must be in
// the caller's post-draw hand. Target is a player index; Guess a card value.
// Both are optional because their necessity is card-dependent.
type RoomPlayTurnTx struct {
	Player   string `json:"player"`
	RoomID   uint64 `json:"roomId"`
	CardSlot uint8  `json:"cardSlot"`
	Target   *uint8 `json:"target,omitempty"`
	Guess    *uint8 `json:"guess,omitempty"`
}

// RoomRespondTx answers an outstanding challenge by opening the responder's
// concealed card: the claimed value plus the secret bound at deal time. One
// shape serves guard/baron/prince/king responses; the tx type disambiguates.
type RoomRespondTx struct {
	Player        string `json:"player"`
	RoomID        uint64 `json:"roomId"`
	RevealedValue uint8  `json:"revealedValue"`
	Secret        []byte `json:"secret"` // base64 in JSON
}

type RoomResolveChancellorTx struct {
	Player string  `json:"player"`
	RoomID uint64  `json:"roomId"`
	Keep   uint8   `json:"keep"`             // slot id to keep
	Return []uint8 `json:"return,omitempty"` // slot ids, deck-bottom order
}

type RoomTimeoutTx struct {
	Caller string `json:"caller"`
	RoomID uint64 `json:"roomId"`
}
