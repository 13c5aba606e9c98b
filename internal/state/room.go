package state

import (
	"crypto/sha256"
	"encoding/binary"
)

type RoomStatus uint8

// Wire-format status codes.
const (
	StatusWaiting  RoomStatus = 0
	StatusPlaying  RoomStatus = 1
	StatusRoundEnd RoomStatus = 2
	StatusFinished RoomStatus = 3
)

func (s RoomStatus) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusPlaying:
		return "playing"
	case StatusRoundEnd:
		return "roundEnd"
	case StatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

type Player struct {
	Address string `json:"address"`

	// Hand holds deck slot indices, not values. Slot index is the public
	// identity of a card; the value stays behind its concealment artifact.
	Hand     []uint8 `json:"hand"`
	Discards []Card  `json:"discards"` // revealed values, public record

	Alive  bool  `json:"alive"`
	Immune bool  `json:"immune,omitempty"`
	Tokens uint8 `json:"tokens"`

	// SpyDiscarded is set whenever a spy of this player's reaches the discard
	// pile. Forced discards and elimination reveals count the same as plays.
	SpyDiscarded bool `json:"spyDiscarded,omitempty"`
}

// Slot is one deck position. Value is engine-held: honest clients only ever see
// the artifact until a rule-defined reveal (queries redact values; see
// RedactedView). Generation bumps each time a fresh artifact is bound after a
// Prince replacement or King swap.
type Slot struct {
	Value      Card   `json:"value"`
	Artifact   []byte `json:"artifact"`
	Generation uint8  `json:"generation,omitempty"`
}

type PendingKind string

const (
	PendingGuard  PendingKind = "guardChallenge"
	PendingBaron  PendingKind = "baronChallenge"
	PendingPrince PendingKind = "princeResponse"
	PendingKing   PendingKind = "kingResponse"
)

// PendingAction is the one-slot challenge/response register. At most one may
// exist per room; turns do not advance while it is set.
type PendingAction struct {
	Kind      PendingKind `json:"kind"`
	Initiator int         `json:"initiator"`
	Responder int         `json:"responder"`
	Guess     Card        `json:"guess,omitempty"` // GuardChallenge only
	Deadline  int64       `json:"deadline"`        // unix seconds
}

// ChancellorState tracks a keep-one/return-rest choice in progress. It shares
// the one-slot rule with PendingAction: never both set.
type ChancellorState struct {
	Player         int     `json:"player"`
	Drawn          []uint8 `json:"drawn"`
	HandSizeAtDraw int     `json:"handSizeAtDraw"`
	Deadline       int64   `json:"deadline"`
}

// PeekGrant records one-turn read access to a target's concealed card
// (Priest). Cleared when the viewer's next turn begins. Read-side only: it
// never gates a state transition.
type PeekGrant struct {
	Viewer int   `json:"viewer"`
	Target int   `json:"target"`
	Slot   uint8 `json:"slot"`
}

type RoomParams struct {
	MaxPlayers          uint8  `json:"maxPlayers"`
	TokensToWin         uint8  `json:"tokensToWin,omitempty"` // 0 = default by player count at first deal
	Edition             string `json:"edition"`
	Conceal             string `json:"conceal"`
	ResponseTimeoutSecs uint64 `json:"responseTimeoutSecs,omitempty"`
}

type Room struct {
	ID      uint64     `json:"id"`
	Name    string     `json:"name"`
	Creator string     `json:"creator"`
	Params  RoomParams `json:"params"`

	Status      RoomStatus `json:"status"`
	Players     []*Player  `json:"players"` // join order = turn order
	CurrentTurn int        `json:"currentTurn"`
	RoundNumber uint32     `json:"roundNumber"`
	// Index of the previous round's winner; first to act next round. -1 = none.
	LastWinner int `json:"lastWinner"`

	// Round-scoped deck state.
	Seed    []byte  `json:"seed,omitempty"`    // round seed; per-slot secrets derive from it
	RoomKey []byte  `json:"roomKey,omitempty"` // sealed backend public key for this round
	Slots   []Slot  `json:"slots,omitempty"`
	Deck    []uint8 `json:"deck,omitempty"` // slot ids in draw order; bottom = end
	Cursor  uint8   `json:"cursor"`
	Burned  int16   `json:"burned"` // slot id, -1 = none/consumed
	Public  []uint8 `json:"public,omitempty"`

	Pending    *PendingAction   `json:"pending,omitempty"`
	Chancellor *ChancellorState `json:"chancellor,omitempty"`
	Peek       *PeekGrant       `json:"peek,omitempty"`
}

func (r *Room) PlayerIndex(addr string) int {
	for i, p := range r.Players {
		if p.Address == addr {
			return i
		}
	}
	return -1
}

func (r *Room) AliveCount() int {
	n := 0
	for _, p := range r.Players {
		if p.Alive {
			n++
		}
	}
	return n
}

// NextLiving returns the next living player index after from, wrapping.
// Eliminated players are skipped, not removed from the modulus.
func (r *Room) NextLiving(from int) int {
	n := len(r.Players)
	for step := 1; step <= n; step++ {
		i := (from + step) % n
		if r.Players[i].Alive {
			return i
		}
	}
	return from
}

// Remaining reports how many slots the deck can still serve.
func (r *Room) Remaining() int {
	return len(r.Deck) - int(r.Cursor)
}

// SlotValue resolves a slot id to its engine-held value.
func (r *Room) SlotValue(slot uint8) Card {
	if int(slot) >= len(r.Slots) {
		return 0
	}
	return r.Slots[slot].Value
}

// HasSlot reports whether a player's hand references the given slot id.
func (p *Player) HasSlot(slot uint8) bool {
	for _, s := range p.Hand {
		if s == slot {
			return true
		}
	}
	return false
}

// RemoveSlot drops one occurrence of slot from the hand, preserving order.
func (p *Player) RemoveSlot(slot uint8) {
	for i, s := range p.Hand {
		if s == slot {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return
		}
	}
}

// DiscardSum is the round-end tie-break metric: sum of revealed discard values.
func (p *Player) DiscardSum() int {
	sum := 0
	for _, c := range p.Discards {
		sum += int(c)
	}
	return sum
}

// ShuffledComposition deals an edition's canonical multiset into slot order
// using a Fisher-Yates shuffle driven by a sha256-based stream, so every node
// derives the identical deck from the same seed.
func ShuffledComposition(edition string, seed []byte) ([]Card, error) {
	cards, err := CanonicalComposition(edition)
	if err != nil {
		return nil, err
	}
	var counter uint64
	for i := len(cards) - 1; i > 0; i-- {
		buf := make([]byte, len(seed)+8)
		copy(buf, seed)
		binary.LittleEndian.PutUint64(buf[len(seed):], counter)
		h := sha256.Sum256(buf)
		counter++
		j := int(binary.LittleEndian.Uint64(h[:8]) % uint64(i+1))
		cards[i], cards[j] = cards[j], cards[i]
	}
	return cards, nil
}

// RedactedView is the query-safe projection of a room: slot values and the
// round seed never leave the node through the query surface.
func (r *Room) RedactedView() map[string]any {
	slots := make([]map[string]any, len(r.Slots))
	for i, s := range r.Slots {
		slots[i] = map[string]any{
			"artifact":   s.Artifact,
			"generation": s.Generation,
		}
	}
	players := make([]map[string]any, len(r.Players))
	for i, p := range r.Players {
		players[i] = map[string]any{
			"address":  p.Address,
			"hand":     p.Hand,
			"discards": p.Discards,
			"alive":    p.Alive,
			"immune":   p.Immune,
			"tokens":   p.Tokens,
		}
	}
	publicValues := make([]Card, 0, len(r.Public))
	for _, s := range r.Public {
		publicValues = append(publicValues, r.SlotValue(s))
	}
	return map[string]any{
		"id":          r.ID,
		"name":        r.Name,
		"creator":     r.Creator,
		"params":      r.Params,
		"status":      uint8(r.Status),
		"players":     players,
		"currentTurn": r.CurrentTurn,
		"roundNumber": r.RoundNumber,
		"slots":       slots,
		"remaining":   r.Remaining(),
		"public":      publicValues,
		"pending":     r.Pending,
		"chancellor":  r.Chancellor,
	}
}
