package app

import (
	abci "github.com/cometbft/cometbft/abci/types"

	"onchaincourt/internal/codec"
	"onchaincourt/internal/state"
)

// playValidation carries everything checked before any state is mutated.
// Play is validate-then-commit: the drawn slot is peeked, the full move is
// checked against the post-draw hand, and only then does the cursor move.
type playValidation struct {
	room     *state.Room
	player   int
	drawSlot uint8
	postHand []uint8
	playSlot uint8
	card     state.Card
	target   int // -1 when the card is played without a target
	guess    state.Card
}

func roomPlayTurn(st *state.State, msg codec.RoomPlayTurnTx, nowUnix int64) (*abci.ExecTxResult, error) {
	v, err := validatePlay(st, msg)
	if err != nil {
		return nil, err
	}
	return commitPlay(v, nowUnix)
}

func validatePlay(st *state.State, msg codec.RoomPlayTurnTx) (*playValidation, error) {
	r := st.Rooms[msg.RoomID]
	if r == nil {
		return nil, errf(codeRoomNotFound, "room %d not found", msg.RoomID)
	}
	if r.Status != state.StatusPlaying {
		return nil, errf(codeGameNotStarted, "room %d has no round in progress", msg.RoomID)
	}
	if r.Pending != nil {
		return nil, errf(codePendingAction, "a %s is awaiting a response", r.Pending.Kind)
	}
	if r.Chancellor != nil {
		return nil, errf(codeChancellorPending, "chancellor selection is awaiting resolution")
	}
	idx := r.PlayerIndex(msg.Player)
	if idx < 0 {
		return nil, errf(codeNotInRoom, "%s is not in room %d", msg.Player, msg.RoomID)
	}
	p := r.Players[idx]
	if !p.Alive {
		return nil, errf(codePlayerEliminated, "%s was eliminated this round", msg.Player)
	}
	if idx != r.CurrentTurn {
		return nil, errf(codeNotYourTurn, "it is player %d's turn", r.CurrentTurn)
	}
	if r.Remaining() == 0 {
		return nil, errf(codeDeckEmpty, "deck is exhausted")
	}

	drawSlot := r.Deck[r.Cursor]
	postHand := make([]uint8, 0, len(p.Hand)+1)
	postHand = append(postHand, p.Hand...)
	postHand = append(postHand, drawSlot)

	playSlot := msg.CardSlot
	inHand := false
	for _, s := range postHand {
		if s == playSlot {
			inHand = true
			break
		}
	}
	if !inHand {
		return nil, errf(codeCardNotInHand, "slot %d is not in the post-draw hand", playSlot)
	}
	card := r.SlotValue(playSlot)

	if mustPlayCountess(r, postHand) && card != state.CardCountess {
		return nil, errf(codeMustDiscardCountess, "countess must be discarded when held with king or prince")
	}

	traits := card.Traits()
	target := -1
	if traits.NeedsTarget {
		hasTarget := validTargetExists(r, idx, traits.AllowSelf)
		if msg.Target == nil {
			if hasTarget {
				return nil, errf(codeTargetRequired, "%s requires a target", traits.Name)
			}
			// No legal target: the card is played with no effect.
		} else {
			t := int(*msg.Target)
			if t < 0 || t >= len(r.Players) {
				return nil, errf(codeInvalidTarget, "no player at index %d", t)
			}
			if t == idx && !traits.AllowSelf {
				return nil, errf(codeCannotTargetSelf, "%s cannot target its own player", traits.Name)
			}
			tp := r.Players[t]
			if !tp.Alive {
				return nil, errf(codeTargetEliminated, "player %d was eliminated this round", t)
			}
			if tp.Immune && t != idx {
				return nil, errf(codeTargetImmune, "player %d is immune this turn", t)
			}
			target = t
		}
	} else if msg.Target != nil {
		return nil, errf(codeInvalidTarget, "%s takes no target", traits.Name)
	}

	guess := state.Card(0)
	if traits.NeedsGuess && target >= 0 {
		if msg.Guess == nil {
			return nil, errf(codeGuessRequired, "%s requires a guess", traits.Name)
		}
		guess = state.Card(*msg.Guess)
		if !guess.Valid() || guess == state.CardGuard {
			return nil, errf(codeInvalidGuess, "guess must be a non-guard card value")
		}
	} else if msg.Guess != nil {
		return nil, errf(codeInvalidGuess, "guess is only meaningful on a targeted guard")
	}

	return &playValidation{
		room:     r,
		player:   idx,
		drawSlot: drawSlot,
		postHand: postHand,
		playSlot: playSlot,
		card:     card,
		target:   target,
		guess:    guess,
	}, nil
}

// mustPlayCountess reports whether the post-draw hand is countess with king
// or prince, which forces the countess.
func mustPlayCountess(r *state.Room, hand []uint8) bool {
	var hasCountess, hasRoyal bool
	for _, s := range hand {
		switch r.SlotValue(s) {
		case state.CardCountess:
			hasCountess = true
		case state.CardKing, state.CardPrince:
			hasRoyal = true
		}
	}
	return hasCountess && hasRoyal
}

func validTargetExists(r *state.Room, self int, allowSelf bool) bool {
	for i, p := range r.Players {
		if !p.Alive {
			continue
		}
		if i == self {
			if allowSelf {
				return true
			}
			continue
		}
		if p.Immune {
			continue
		}
		return true
	}
	return false
}

func commitPlay(v *playValidation, nowUnix int64) (*abci.ExecTxResult, error) {
	r := v.room
	p := r.Players[v.player]

	r.Cursor++

	hand := make([]uint8, 0, len(v.postHand)-1)
	for _, s := range v.postHand {
		if s == v.playSlot {
			continue
		}
		hand = append(hand, s)
	}
	p.Hand = hand
	discardCard(p, v.card)

	attrs := map[string]string{
		"roomId": u64s(r.ID),
		"player": ints(v.player),
		"card":   v.card.String(),
		"value":  ints(int(v.card)),
		"slot":   u64s(uint64(v.playSlot)),
	}
	if v.target >= 0 {
		attrs["target"] = ints(v.target)
	}
	events := []abci.Event{event("CardPlayed", attrs)}

	advance := true
	switch v.card {
	case state.CardSpy, state.CardCountess:
		// No immediate effect.

	case state.CardGuard:
		if v.target >= 0 {
			r.Pending = &state.PendingAction{
				Kind:      state.PendingGuard,
				Initiator: v.player,
				Responder: v.target,
				Guess:     v.guess,
				Deadline:  deadlineFor(r, nowUnix),
			}
			events = append(events, pendingEvent(r, v.guess))
			advance = false
		}

	case state.CardPriest:
		if v.target >= 0 {
			tp := r.Players[v.target]
			r.Peek = &state.PeekGrant{Viewer: v.player, Target: v.target, Slot: tp.Hand[0]}
			events = append(events, event("PriestPeek", map[string]string{
				"roomId": u64s(r.ID),
				"viewer": ints(v.player),
				"target": ints(v.target),
				"slot":   u64s(uint64(tp.Hand[0])),
			}))
		}

	case state.CardBaron:
		if v.target >= 0 {
			r.Pending = &state.PendingAction{
				Kind:      state.PendingBaron,
				Initiator: v.player,
				Responder: v.target,
				Deadline:  deadlineFor(r, nowUnix),
			}
			events = append(events, pendingEvent(r, 0))
			advance = false
		}

	case state.CardHandmaid:
		p.Immune = true

	case state.CardPrince:
		if v.target >= 0 {
			r.Pending = &state.PendingAction{
				Kind:      state.PendingPrince,
				Initiator: v.player,
				Responder: v.target,
				Deadline:  deadlineFor(r, nowUnix),
			}
			events = append(events, pendingEvent(r, 0))
			advance = false
		}

	case state.CardChancellor:
		drawn := chancellorDraw(r)
		if len(drawn) > 0 {
			r.Chancellor = &state.ChancellorState{
				Player:         v.player,
				Drawn:          drawn,
				HandSizeAtDraw: len(p.Hand) + len(drawn),
				Deadline:       deadlineFor(r, nowUnix),
			}
			events = append(events, event("ChancellorDrew", map[string]string{
				"roomId": u64s(r.ID),
				"player": ints(v.player),
				"slots":  joinSlots(drawn),
			}))
			advance = false
		}

	case state.CardKing:
		if v.target >= 0 {
			r.Pending = &state.PendingAction{
				Kind:      state.PendingKing,
				Initiator: v.player,
				Responder: v.target,
				Deadline:  deadlineFor(r, nowUnix),
			}
			events = append(events, pendingEvent(r, 0))
			advance = false
		}

	case state.CardPrincess:
		events = append(events, eliminatePlayer(r, v.player, "princessDiscarded"))
	}

	if advance {
		events = append(events, advanceTurn(r)...)
	}

	res := &abci.ExecTxResult{Code: codeOK, Events: events}
	return res, nil
}

func pendingEvent(r *state.Room, guess state.Card) abci.Event {
	attrs := map[string]string{
		"roomId":    u64s(r.ID),
		"kind":      string(r.Pending.Kind),
		"initiator": ints(r.Pending.Initiator),
		"responder": ints(r.Pending.Responder),
		"deadline":  i64s(r.Pending.Deadline),
	}
	if r.Pending.Kind == state.PendingGuard {
		attrs["guess"] = ints(int(guess))
	}
	return event("PendingCreated", attrs)
}

// chancellorDraw takes up to two slots off the top of the deck.
func chancellorDraw(r *state.Room) []uint8 {
	var drawn []uint8
	for len(drawn) < 2 && r.Remaining() > 0 {
		drawn = append(drawn, r.Deck[r.Cursor])
		r.Cursor++
	}
	return drawn
}

// eliminatePlayer knocks a player out and reveals their remaining hand. The
// caller is responsible for advancing the turn or ending the round afterward.
// discardCard moves a revealed value onto a player's discard pile. The spy
// marker tracks every route into the pile, not just voluntary plays.
func discardCard(p *state.Player, c state.Card) {
	p.Discards = append(p.Discards, c)
	if c == state.CardSpy {
		p.SpyDiscarded = true
	}
}

func eliminatePlayer(r *state.Room, idx int, reason string) abci.Event {
	p := r.Players[idx]
	revealed := make([]state.Card, 0, len(p.Hand))
	for _, s := range p.Hand {
		c := r.SlotValue(s)
		revealed = append(revealed, c)
		discardCard(p, c)
	}
	p.Hand = nil
	p.Alive = false
	if r.Peek != nil && (r.Peek.Viewer == idx || r.Peek.Target == idx) {
		r.Peek = nil
	}
	return eliminationEvent(r, idx, reason, revealed)
}

// advanceTurn hands play to the next living player, clearing their immunity
// and any peek they held. Ends the round when one player remains or the deck
// is exhausted.
func advanceTurn(r *state.Room) []abci.Event {
	if r.AliveCount() <= 1 || r.Remaining() == 0 {
		return endRound(r)
	}
	next := r.NextLiving(r.CurrentTurn)
	r.CurrentTurn = next
	r.Players[next].Immune = false
	if r.Peek != nil && r.Peek.Viewer == next {
		r.Peek = nil
	}
	return []abci.Event{event("TurnAdvanced", map[string]string{
		"roomId": u64s(r.ID),
		"player": ints(next),
	})}
}
