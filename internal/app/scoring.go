package app

import (
	"fmt"

	abci "github.com/cometbft/cometbft/abci/types"

	"onchaincourt/internal/state"
)

// endRound reveals the surviving hands, awards favor tokens, and moves the
// room to roundEnd or finished. Winner selection is highest held card, then
// highest discard sum, then a split award to every remaining tied player.
func endRound(r *state.Room) []abci.Event {
	attrs := map[string]string{
		"roomId": u64s(r.ID),
		"round":  u64s(uint64(r.RoundNumber)),
	}

	type survivor struct {
		idx  int
		held state.Card
		sum  int
	}
	var survivors []survivor
	for i, p := range r.Players {
		if !p.Alive {
			continue
		}
		held := state.Card(0)
		for _, s := range p.Hand {
			if v := r.SlotValue(s); v > held {
				held = v
			}
		}
		survivors = append(survivors, survivor{idx: i, held: held, sum: p.DiscardSum()})
		attrs[fmt.Sprintf("revealed%d", i)] = ints(int(held))
	}

	best := survivor{idx: -1}
	for _, s := range survivors {
		if s.held > best.held || (s.held == best.held && s.sum > best.sum) {
			best = s
		}
	}
	var winners []int
	for _, s := range survivors {
		if s.held == best.held && s.sum == best.sum {
			winners = append(winners, s.idx)
		}
	}

	events := []abci.Event{}
	for _, w := range winners {
		r.Players[w].Tokens++
		events = append(events, event("TokenAwarded", map[string]string{
			"roomId": u64s(r.ID),
			"player": ints(w),
			"reason": "roundWin",
			"tokens": u64s(uint64(r.Players[w].Tokens)),
		}))
	}
	if len(winners) > 0 {
		r.LastWinner = winners[0]
		attrs["winners"] = joinInts(winners)
	}

	if spy := spyBonusWinner(r); spy >= 0 {
		r.Players[spy].Tokens++
		events = append(events, event("TokenAwarded", map[string]string{
			"roomId": u64s(r.ID),
			"player": ints(spy),
			"reason": "spyBonus",
			"tokens": u64s(uint64(r.Players[spy].Tokens)),
		}))
	}

	events = append([]abci.Event{event("RoundEnded", attrs)}, events...)

	r.Pending = nil
	r.Chancellor = nil
	r.Peek = nil
	r.Status = state.StatusRoundEnd

	target := r.Params.TokensToWin
	champion := -1
	for i, p := range r.Players {
		if target > 0 && p.Tokens >= target {
			if champion < 0 || p.Tokens > r.Players[champion].Tokens {
				champion = i
			}
		}
	}
	if champion >= 0 {
		r.Status = state.StatusFinished
		events = append(events, event("GameFinished", map[string]string{
			"roomId": u64s(r.ID),
			"winner": ints(champion),
			"tokens": u64s(uint64(r.Players[champion].Tokens)),
		}))
	}
	return events
}

// spyBonusWinner returns the index of the only player, living or eliminated,
// whose spy reached a discard pile this round, or -1 when zero or several
// qualify. Eliminated players count toward exclusivity and can themselves
// collect the bonus.
func spyBonusWinner(r *state.Room) int {
	found := -1
	for i, p := range r.Players {
		if !p.SpyDiscarded {
			continue
		}
		if found >= 0 {
			return -1
		}
		found = i
	}
	return found
}

func joinInts(vs []int) string {
	out := ""
	for i, v := range vs {
		if i > 0 {
			out += ","
		}
		out += ints(v)
	}
	return out
}
