package app

import (
	"encoding/hex"
	"math"

	abci "github.com/cometbft/cometbft/abci/types"

	"onchaincourt/internal/codec"
	"onchaincourt/internal/conceal"
	"onchaincourt/internal/state"
)

const defaultResponseTimeoutSecs = 120

func deadlineFor(r *state.Room, nowUnix int64) int64 {
	secs := r.Params.ResponseTimeoutSecs
	if secs == 0 {
		secs = defaultResponseTimeoutSecs
	}
	d, err := addInt64AndU64Checked(nowUnix, secs, "response deadline")
	if err != nil {
		return math.MaxInt64
	}
	return d
}

// roomTimeout resolves an expired pending action or chancellor selection on
// behalf of a silent player. Pending actions are resolved by force-opening
// the responder's slot from engine state; sealed rooms attach an equal
// discrete log proof so observers can check the opening against the room key.
func roomTimeout(st *state.State, msg codec.RoomTimeoutTx, nowUnix int64) (*abci.ExecTxResult, error) {
	r := st.Rooms[msg.RoomID]
	if r == nil {
		return nil, errf(codeRoomNotFound, "room %d not found", msg.RoomID)
	}
	if r.Status != state.StatusPlaying {
		return nil, errf(codeGameNotStarted, "room %d has no round in progress", msg.RoomID)
	}
	if r.PlayerIndex(msg.Caller) < 0 {
		return nil, errf(codeNotInRoom, "%s is not in room %d", msg.Caller, msg.RoomID)
	}

	switch {
	case r.Pending != nil:
		if nowUnix < r.Pending.Deadline {
			return nil, errf(codeDeadlineNotReached, "pending deadline is %d, now %d", r.Pending.Deadline, nowUnix)
		}
		return forceResolvePending(r)

	case r.Chancellor != nil:
		if nowUnix < r.Chancellor.Deadline {
			return nil, errf(codeDeadlineNotReached, "chancellor deadline is %d, now %d", r.Chancellor.Deadline, nowUnix)
		}
		return forceResolveChancellor(r)

	default:
		return nil, errf(codeNoPendingAction, "nothing is awaiting a response in room %d", msg.RoomID)
	}
}

func forceResolvePending(r *state.Room) (*abci.ExecTxResult, error) {
	pending := r.Pending
	responder := r.Players[pending.Responder]
	if len(responder.Hand) != 1 {
		return nil, errf(codeInvalidReveal, "responder holds %d cards, expected 1", len(responder.Hand))
	}
	slot := responder.Hand[0]
	revealed := r.SlotValue(slot)

	attrs := map[string]string{
		"roomId":    u64s(r.ID),
		"kind":      string(pending.Kind),
		"responder": ints(pending.Responder),
		"slot":      u64s(uint64(slot)),
		"value":     ints(int(revealed)),
	}
	if r.Params.Conceal == conceal.TagSealed {
		value, proof, err := conceal.SealedForceOpen(r.Seed, r.Slots[slot].Artifact, uint8(state.CardPrincess))
		if err != nil {
			return nil, errf(codeInvalidReveal, "force open slot %d: %v", slot, err)
		}
		if state.Card(value) != revealed {
			return nil, errf(codeInvalidReveal, "force open disagrees with slot %d", slot)
		}
		attrs["proof"] = hex.EncodeToString(proof)
	}
	events := []abci.Event{event("TimeoutResolved", attrs)}

	backend, err := roomBackend(r)
	if err != nil {
		return nil, err
	}
	var resolved []abci.Event
	switch pending.Kind {
	case state.PendingGuard:
		resolved = resolveGuard(r, revealed)
	case state.PendingBaron:
		resolved = resolveBaron(r, revealed)
	case state.PendingPrince:
		resolved, err = resolvePrince(r, backend, slot, revealed)
	case state.PendingKing:
		resolved, err = resolveKing(r, backend, slot)
	default:
		return nil, errf(codeNoPendingAction, "unknown pending kind %s", pending.Kind)
	}
	if err != nil {
		return nil, err
	}
	return &abci.ExecTxResult{Code: codeOK, Events: append(events, resolved...)}, nil
}

// forceResolveChancellor keeps the card held before the draw and returns the
// drawn cards in draw order.
func forceResolveChancellor(r *state.Room) (*abci.ExecTxResult, error) {
	ch := r.Chancellor
	p := r.Players[ch.Player]
	keep := p.Hand[0]

	events := []abci.Event{event("TimeoutResolved", map[string]string{
		"roomId": u64s(r.ID),
		"kind":   "chancellorSelection",
		"player": ints(ch.Player),
	})}
	events = append(events, applyChancellorSelection(r, keep, ch.Drawn)...)
	return &abci.ExecTxResult{Code: codeOK, Events: events}, nil
}
