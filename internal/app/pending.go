package app

import (
	abci "github.com/cometbft/cometbft/abci/types"

	"onchaincourt/internal/codec"
	"onchaincourt/internal/conceal"
	"onchaincourt/internal/state"
)

// pendingForRespond checks the shared preconditions of every respond tx and
// verifies the opened commitment against the responder's hand slot.
func pendingForRespond(st *state.State, msg codec.RoomRespondTx, kind state.PendingKind) (*state.Room, conceal.Backend, uint8, error) {
	r := st.Rooms[msg.RoomID]
	if r == nil {
		return nil, nil, 0, errf(codeRoomNotFound, "room %d not found", msg.RoomID)
	}
	if r.Status != state.StatusPlaying {
		return nil, nil, 0, errf(codeGameNotStarted, "room %d has no round in progress", msg.RoomID)
	}
	if r.Pending == nil {
		return nil, nil, 0, errf(codeNoPendingAction, "no pending action in room %d", msg.RoomID)
	}
	if r.Pending.Kind != kind {
		return nil, nil, 0, errf(codeNoPendingAction, "pending action is %s, not %s", r.Pending.Kind, kind)
	}
	idx := r.PlayerIndex(msg.Player)
	if idx < 0 {
		return nil, nil, 0, errf(codeNotInRoom, "%s is not in room %d", msg.Player, msg.RoomID)
	}
	if idx != r.Pending.Responder {
		return nil, nil, 0, errf(codeNotPendingResponder, "player %d is not the pending responder", idx)
	}
	p := r.Players[idx]
	if len(p.Hand) != 1 {
		return nil, nil, 0, errf(codeInvalidReveal, "responder holds %d cards, expected 1", len(p.Hand))
	}
	slot := p.Hand[0]

	backend, err := roomBackend(r)
	if err != nil {
		return nil, nil, 0, err
	}
	s := r.Slots[slot]
	if !backend.Verify(s.Artifact, slot, s.Generation, msg.RevealedValue, msg.Secret) {
		return nil, nil, 0, errf(codeInvalidReveal, "reveal does not open the slot %d artifact", slot)
	}
	if state.Card(msg.RevealedValue) != s.Value {
		return nil, nil, 0, errf(codeInvalidReveal, "revealed value does not match slot %d", slot)
	}
	return r, backend, slot, nil
}

func roomRespondGuard(st *state.State, msg codec.RoomRespondTx) (*abci.ExecTxResult, error) {
	r, _, _, err := pendingForRespond(st, msg, state.PendingGuard)
	if err != nil {
		return nil, err
	}
	events := resolveGuard(r, state.Card(msg.RevealedValue))
	return &abci.ExecTxResult{Code: codeOK, Events: events}, nil
}

func resolveGuard(r *state.Room, revealed state.Card) []abci.Event {
	pending := r.Pending
	r.Pending = nil
	hit := revealed == pending.Guess
	events := []abci.Event{event("GuardResolved", map[string]string{
		"roomId":    u64s(r.ID),
		"initiator": ints(pending.Initiator),
		"responder": ints(pending.Responder),
		"guess":     ints(int(pending.Guess)),
		"hit":       boolAttr(hit),
	})}
	if hit {
		events = append(events, eliminatePlayer(r, pending.Responder, "guardGuess"))
	}
	return append(events, advanceTurn(r)...)
}

func roomRespondBaron(st *state.State, msg codec.RoomRespondTx) (*abci.ExecTxResult, error) {
	r, _, _, err := pendingForRespond(st, msg, state.PendingBaron)
	if err != nil {
		return nil, err
	}
	events := resolveBaron(r, state.Card(msg.RevealedValue))
	return &abci.ExecTxResult{Code: codeOK, Events: events}, nil
}

func resolveBaron(r *state.Room, revealed state.Card) []abci.Event {
	pending := r.Pending
	r.Pending = nil
	initiator := r.Players[pending.Initiator]
	mine := r.SlotValue(initiator.Hand[0])

	events := []abci.Event{event("BaronResolved", map[string]string{
		"roomId":    u64s(r.ID),
		"initiator": ints(pending.Initiator),
		"responder": ints(pending.Responder),
	})}
	switch {
	case revealed < mine:
		events = append(events, eliminatePlayer(r, pending.Responder, "baronCompare"))
	case revealed > mine:
		events = append(events, eliminatePlayer(r, pending.Initiator, "baronCompare"))
	}
	return append(events, advanceTurn(r)...)
}

func roomRespondPrince(st *state.State, msg codec.RoomRespondTx) (*abci.ExecTxResult, error) {
	r, backend, slot, err := pendingForRespond(st, msg, state.PendingPrince)
	if err != nil {
		return nil, err
	}
	events, err := resolvePrince(r, backend, slot, state.Card(msg.RevealedValue))
	if err != nil {
		return nil, err
	}
	return &abci.ExecTxResult{Code: codeOK, Events: events}, nil
}

// resolvePrince discards the responder's revealed card and deals them a
// replacement. When the deck is empty the burned card is dealt instead.
// A discarded princess eliminates the responder with no replacement.
func resolvePrince(r *state.Room, backend conceal.Backend, slot uint8, revealed state.Card) ([]abci.Event, error) {
	pending := r.Pending
	p := r.Players[pending.Responder]

	// Pick the replacement and compute its artifact before writing anything.
	replacement := -1
	fromBurned := false
	if revealed != state.CardPrincess {
		switch {
		case r.Remaining() > 0:
			replacement = int(r.Deck[r.Cursor])
		case r.Burned >= 0:
			replacement = int(r.Burned)
			fromBurned = true
		}
	}
	var artifact []byte
	if replacement >= 0 {
		var err error
		artifact, err = rebindArtifact(r, backend, uint8(replacement))
		if err != nil {
			return nil, err
		}
	}

	r.Pending = nil
	p.RemoveSlot(slot)
	discardCard(p, revealed)

	events := []abci.Event{event("PrinceResolved", map[string]string{
		"roomId":    u64s(r.ID),
		"initiator": ints(pending.Initiator),
		"responder": ints(pending.Responder),
		"discarded": ints(int(revealed)),
	})}

	if revealed == state.CardPrincess {
		events = append(events, eliminatePlayer(r, pending.Responder, "princessDiscarded"))
		return append(events, advanceTurn(r)...), nil
	}
	if replacement < 0 {
		// No card left to deal; the round is about to end anyway.
		return append(events, advanceTurn(r)...), nil
	}

	if fromBurned {
		r.Burned = -1
	} else {
		r.Cursor++
	}
	commitRebind(r, uint8(replacement), artifact)
	p.Hand = append(p.Hand, uint8(replacement))

	events = append(events, event("CardDealt", map[string]string{
		"roomId": u64s(r.ID),
		"player": ints(pending.Responder),
		"slot":   u64s(uint64(replacement)),
	}))
	return append(events, advanceTurn(r)...), nil
}

func roomRespondKing(st *state.State, msg codec.RoomRespondTx) (*abci.ExecTxResult, error) {
	r, backend, slot, err := pendingForRespond(st, msg, state.PendingKing)
	if err != nil {
		return nil, err
	}
	events, err := resolveKing(r, backend, slot)
	if err != nil {
		return nil, err
	}
	return &abci.ExecTxResult{Code: codeOK, Events: events}, nil
}

// resolveKing swaps the two hands and binds fresh artifacts to both slots so
// the post-swap cards cannot be linked to their pre-swap openings.
func resolveKing(r *state.Room, backend conceal.Backend, responderSlot uint8) ([]abci.Event, error) {
	pending := r.Pending
	initiator := r.Players[pending.Initiator]
	responder := r.Players[pending.Responder]
	initiatorSlot := initiator.Hand[0]

	initiatorArtifact, err := rebindArtifact(r, backend, initiatorSlot)
	if err != nil {
		return nil, err
	}
	responderArtifact, err := rebindArtifact(r, backend, responderSlot)
	if err != nil {
		return nil, err
	}

	r.Pending = nil
	initiator.Hand[0] = responderSlot
	responder.Hand[0] = initiatorSlot
	commitRebind(r, initiatorSlot, initiatorArtifact)
	commitRebind(r, responderSlot, responderArtifact)

	events := []abci.Event{event("KingResolved", map[string]string{
		"roomId":    u64s(r.ID),
		"initiator": ints(pending.Initiator),
		"responder": ints(pending.Responder),
	})}
	return append(events, advanceTurn(r)...), nil
}

func roomResolveChancellor(st *state.State, msg codec.RoomResolveChancellorTx) (*abci.ExecTxResult, error) {
	r := st.Rooms[msg.RoomID]
	if r == nil {
		return nil, errf(codeRoomNotFound, "room %d not found", msg.RoomID)
	}
	if r.Status != state.StatusPlaying {
		return nil, errf(codeGameNotStarted, "room %d has no round in progress", msg.RoomID)
	}
	if r.Chancellor == nil {
		return nil, errf(codeChancellorNotPending, "no chancellor selection pending in room %d", msg.RoomID)
	}
	idx := r.PlayerIndex(msg.Player)
	if idx < 0 {
		return nil, errf(codeNotInRoom, "%s is not in room %d", msg.Player, msg.RoomID)
	}
	if idx != r.Chancellor.Player {
		return nil, errf(codeNotPendingResponder, "player %d did not play the chancellor", idx)
	}

	if err := validateChancellorSelection(r, msg.Keep, msg.Return); err != nil {
		return nil, err
	}
	events := applyChancellorSelection(r, msg.Keep, msg.Return)
	return &abci.ExecTxResult{Code: codeOK, Events: events}, nil
}

func validateChancellorSelection(r *state.Room, keep uint8, ret []uint8) error {
	ch := r.Chancellor
	p := r.Players[ch.Player]
	if 1+len(ret) != ch.HandSizeAtDraw {
		return errf(codeChancellorInvalidSelection, "must return %d cards, got %d", ch.HandSizeAtDraw-1, len(ret))
	}

	pool := map[uint8]int{}
	for _, s := range p.Hand {
		pool[s]++
	}
	for _, s := range ch.Drawn {
		pool[s]++
	}
	if pool[keep] == 0 {
		return errf(codeChancellorInvalidSelection, "kept slot %d is not held", keep)
	}
	pool[keep]--
	for _, s := range ret {
		if s == keep {
			return errf(codeChancellorMustKeepOne, "kept slot %d cannot also be returned", keep)
		}
		if pool[s] == 0 {
			return errf(codeChancellorInvalidSelection, "returned slot %d is not held", s)
		}
		pool[s]--
	}
	return nil
}

// applyChancellorSelection keeps one slot and puts the rest under the deck in
// the order given. The kept value stays concealed.
func applyChancellorSelection(r *state.Room, keep uint8, ret []uint8) []abci.Event {
	ch := r.Chancellor
	r.Chancellor = nil
	p := r.Players[ch.Player]

	p.Hand = []uint8{keep}
	r.Deck = append(r.Deck, ret...)

	events := []abci.Event{event("ChancellorResolved", map[string]string{
		"roomId":   u64s(r.ID),
		"player":   ints(ch.Player),
		"returned": joinSlots(ret),
	})}
	return append(events, advanceTurn(r)...)
}

func boolAttr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
