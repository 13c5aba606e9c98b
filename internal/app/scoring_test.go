package app

import (
	"testing"

	"onchaincourt/internal/conceal"
	"onchaincourt/internal/state"
)

func TestRoundEndsWhenDeckExhausted(t *testing.T) {
	a := newTestApp(t)
	// One card left: alice draws it and plays it, then the round ends with
	// bob's baron beating alice's priest.
	r := buildPlayingRoom(t, a, conceal.TagCommit,
		[]state.Card{state.CardPriest, state.CardBaron},
		[]state.Card{state.CardSpy},
		state.CardKing)

	spySlot := r.Deck[r.Cursor]
	res := mustOk(t, a.deliverTx(playTx(t, r, 0, spySlot, nil, nil), 1, 1000))

	if findEvent(res.Events, "RoundEnded") == nil {
		t.Fatalf("expected RoundEnded when the deck runs out")
	}
	if r.Status != state.StatusRoundEnd {
		t.Fatalf("status = %v, want roundEnd", r.Status)
	}
	if r.LastWinner != 1 {
		t.Fatalf("lastWinner = %d, want bob", r.LastWinner)
	}
	if r.Players[1].Tokens != 1 || r.Players[0].Tokens != 0 {
		t.Fatalf("tokens = %d/%d, want 0/1", r.Players[0].Tokens, r.Players[1].Tokens)
	}
}

func TestRoundEndsOnLastElimination(t *testing.T) {
	a := newTestApp(t)
	r := buildPlayingRoom(t, a, conceal.TagCommit,
		[]state.Card{state.CardGuard, state.CardPriest},
		[]state.Card{state.CardSpy, state.CardSpy, state.CardSpy},
		state.CardKing)

	mustOk(t, a.deliverTx(playTx(t, r, 0, r.Players[0].Hand[0], intp(1), cardp(state.CardPriest)), 1, 1000))
	res := mustOk(t, a.deliverTx(respondTx(t, r, "room/respond_guard", 1), 1, 1000))

	if findEvent(res.Events, "RoundEnded") == nil {
		t.Fatalf("expected RoundEnded when one player remains")
	}
	if r.LastWinner != 0 || r.Players[0].Tokens != 1 {
		t.Fatalf("alice should take the round, lastWinner=%d tokens=%d", r.LastWinner, r.Players[0].Tokens)
	}
}

func TestDiscardSumBreaksValueTie(t *testing.T) {
	a := newTestApp(t)
	r := buildPlayingRoom(t, a, conceal.TagCommit,
		[]state.Card{state.CardBaron, state.CardBaron},
		[]state.Card{state.CardSpy},
		state.CardKing)
	r.Players[0].Discards = []state.Card{state.CardPriest}
	r.Players[1].Discards = []state.Card{state.CardGuard}

	spySlot := r.Deck[r.Cursor]
	mustOk(t, a.deliverTx(playTx(t, r, 0, spySlot, nil, nil), 1, 1000))

	if r.LastWinner != 0 {
		t.Fatalf("alice has the higher discard sum, lastWinner=%d", r.LastWinner)
	}
	if r.Players[0].Tokens != 1 || r.Players[1].Tokens != 0 {
		t.Fatalf("tokens = %d/%d, want 1/0", r.Players[0].Tokens, r.Players[1].Tokens)
	}
}

func TestFullTieSplitsTheToken(t *testing.T) {
	a := newTestApp(t)
	r := buildPlayingRoom(t, a, conceal.TagCommit,
		[]state.Card{state.CardBaron, state.CardBaron},
		[]state.Card{state.CardGuard},
		state.CardKing)
	// Equal held values; the played guard makes the discard sums equal too.
	r.Players[1].Discards = []state.Card{state.CardGuard}

	guardSlot := r.Deck[r.Cursor]
	// Both non-immune targets hold barons; the guard targets bob.
	mustOk(t, a.deliverTx(playTx(t, r, 0, guardSlot, intp(1), cardp(state.CardPriest)), 1, 1000))
	mustOk(t, a.deliverTx(respondTx(t, r, "room/respond_guard", 1), 1, 1000))

	if r.Players[0].Tokens != 1 || r.Players[1].Tokens != 1 {
		t.Fatalf("a full tie awards both, got %d/%d", r.Players[0].Tokens, r.Players[1].Tokens)
	}
	if r.LastWinner != 0 {
		t.Fatalf("lastWinner = %d, want the lowest tied index", r.LastWinner)
	}
}

func TestSpyBonusForSoleSurvivingSpy(t *testing.T) {
	a := newTestApp(t)
	r := buildPlayingRoom(t, a, conceal.TagCommit,
		[]state.Card{state.CardPrincess, state.CardBaron},
		[]state.Card{state.CardSpy},
		state.CardKing)

	// alice draws and plays the spy; the deck empties and the round ends with
	// alice as the only player who discarded a spy.
	spySlot := r.Deck[r.Cursor]
	mustOk(t, a.deliverTx(playTx(t, r, 0, spySlot, nil, nil), 1, 1000))

	// alice wins on value (princess) and adds the spy bonus.
	if r.Players[0].Tokens != 2 {
		t.Fatalf("alice tokens = %d, want round win plus spy bonus", r.Players[0].Tokens)
	}
	if r.Players[1].Tokens != 0 {
		t.Fatalf("bob tokens = %d, want 0", r.Players[1].Tokens)
	}
}

func TestNoSpyBonusWhenTwoSpiesSurvive(t *testing.T) {
	a := newTestApp(t)
	r := buildPlayingRoom(t, a, conceal.TagCommit,
		[]state.Card{state.CardPrincess, state.CardBaron},
		[]state.Card{state.CardSpy},
		state.CardKing)
	r.Players[1].SpyDiscarded = true

	spySlot := r.Deck[r.Cursor]
	mustOk(t, a.deliverTx(playTx(t, r, 0, spySlot, nil, nil), 1, 1000))

	if r.Players[0].Tokens != 1 {
		t.Fatalf("alice tokens = %d, two spies cancel the bonus", r.Players[0].Tokens)
	}
}

func TestGameFinishesAtTokenTarget(t *testing.T) {
	a := newTestApp(t)
	r := buildPlayingRoom(t, a, conceal.TagCommit,
		[]state.Card{state.CardPriest, state.CardBaron},
		[]state.Card{state.CardSpy},
		state.CardKing)
	r.Params.TokensToWin = 3
	r.Players[1].Tokens = 2

	spySlot := r.Deck[r.Cursor]
	res := mustOk(t, a.deliverTx(playTx(t, r, 0, spySlot, nil, nil), 1, 1000))

	ev := findEvent(res.Events, "GameFinished")
	if ev == nil {
		t.Fatalf("expected GameFinished")
	}
	if attr(ev, "winner") != "1" {
		t.Fatalf("winner = %q, want bob", attr(ev, "winner"))
	}
	if r.Status != state.StatusFinished {
		t.Fatalf("status = %v, want finished", r.Status)
	}

	mustCode(t, a.deliverTx(txBytes(t, "room/start_round", map[string]any{
		"caller": "alice", "roomId": r.ID,
	}), 2, 2000), codeGameFinished)
}

func TestNextRoundStartsWithLastWinner(t *testing.T) {
	a := newTestApp(t)
	r := buildPlayingRoom(t, a, conceal.TagCommit,
		[]state.Card{state.CardPriest, state.CardBaron},
		[]state.Card{state.CardSpy},
		state.CardKing)

	spySlot := r.Deck[r.Cursor]
	mustOk(t, a.deliverTx(playTx(t, r, 0, spySlot, nil, nil), 1, 1000))
	if r.Status != state.StatusRoundEnd || r.LastWinner != 1 {
		t.Fatalf("round should end with bob winning")
	}

	mustOk(t, a.deliverTx(txBytes(t, "room/start_round", map[string]any{
		"caller": "alice", "roomId": r.ID,
	}), 2, 2000))
	if r.RoundNumber != 2 {
		t.Fatalf("roundNumber = %d, want 2", r.RoundNumber)
	}
	if r.CurrentTurn != 1 {
		t.Fatalf("the previous winner leads the next round, currentTurn=%d", r.CurrentTurn)
	}
	for i, p := range r.Players {
		if !p.Alive || len(p.Hand) != 1 || len(p.Discards) != 0 || p.SpyDiscarded {
			t.Fatalf("player %d not reset: %+v", i, p)
		}
	}
}

func TestSpyBonusForPrinceForcedDiscard(t *testing.T) {
	a := newTestApp(t)
	r := buildPlayingRoom(t, a, conceal.TagCommit,
		[]state.Card{state.CardPrince, state.CardSpy},
		[]state.Card{state.CardHandmaid, state.CardPriest},
		state.CardKing)

	// alice princes bob, who is forced to discard his spy and redraw the
	// last deck card. The empty deck then ends the round.
	mustOk(t, a.deliverTx(playTx(t, r, 0, r.Players[0].Hand[0], intp(1), nil), 1, 1000))
	mustOk(t, a.deliverTx(respondTx(t, r, "room/respond_prince", 1), 1, 1000))

	if r.Status != state.StatusRoundEnd {
		t.Fatalf("status = %v, want roundEnd", r.Status)
	}
	if !r.Players[1].SpyDiscarded {
		t.Fatalf("a prince-forced spy discard must mark the spy flag")
	}
	// alice takes the round on handmaid vs priest; bob keeps the spy bonus
	// despite never playing the spy himself.
	if r.Players[0].Tokens != 1 {
		t.Fatalf("alice tokens = %d, want 1", r.Players[0].Tokens)
	}
	if r.Players[1].Tokens != 1 {
		t.Fatalf("bob tokens = %d, want 1 (spy bonus for the forced discard)", r.Players[1].Tokens)
	}
}

func TestEliminatedSpyHolderCountsTowardExclusivity(t *testing.T) {
	a := newTestApp(t)
	r := buildPlayingRoom(t, a, conceal.TagCommit,
		[]state.Card{state.CardGuard, state.CardSpy},
		[]state.Card{state.CardHandmaid},
		state.CardKing)
	r.Players[0].SpyDiscarded = true

	// bob's spy hits his discard pile through elimination, making him a
	// second qualifier and cancelling alice's bonus.
	mustOk(t, a.deliverTx(playTx(t, r, 0, r.Players[0].Hand[0], intp(1), cardp(state.CardSpy)), 1, 1000))
	mustOk(t, a.deliverTx(respondTx(t, r, "room/respond_guard", 1), 1, 1000))

	if r.Players[1].Alive {
		t.Fatalf("bob should be eliminated by the guard hit")
	}
	if !r.Players[1].SpyDiscarded {
		t.Fatalf("an elimination reveal of the spy must mark the spy flag")
	}
	if r.Players[0].Tokens != 1 {
		t.Fatalf("alice tokens = %d, want round win only", r.Players[0].Tokens)
	}
	if r.Players[1].Tokens != 0 {
		t.Fatalf("bob tokens = %d, want 0", r.Players[1].Tokens)
	}
}

func TestEliminatedSoleSpyHolderEarnsBonus(t *testing.T) {
	a := newTestApp(t)
	r := buildPlayingRoom(t, a, conceal.TagCommit,
		[]state.Card{state.CardGuard, state.CardSpy},
		[]state.Card{state.CardHandmaid},
		state.CardKing)

	mustOk(t, a.deliverTx(playTx(t, r, 0, r.Players[0].Hand[0], intp(1), cardp(state.CardSpy)), 1, 1000))
	res := mustOk(t, a.deliverTx(respondTx(t, r, "room/respond_guard", 1), 1, 1000))

	// bob is out, but his was the only spy in a discard pile this round.
	if r.Players[1].Tokens != 1 {
		t.Fatalf("bob tokens = %d, want spy bonus despite elimination", r.Players[1].Tokens)
	}
	if r.Players[0].Tokens != 1 {
		t.Fatalf("alice tokens = %d, want round win", r.Players[0].Tokens)
	}
	found := false
	for _, ev := range res.Events {
		if ev.Type == "TokenAwarded" && attr(&ev, "reason") == "spyBonus" && attr(&ev, "player") == "1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a spyBonus TokenAwarded event for bob")
	}
}
