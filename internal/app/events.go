package app

import (
	"fmt"
	"sort"
	"strings"

	abci "github.com/cometbft/cometbft/abci/types"

	"onchaincourt/internal/state"
)

func okEvent(typ string, attrs map[string]string) *abci.ExecTxResult {
	return &abci.ExecTxResult{
		Code:   codeOK,
		Events: []abci.Event{event(typ, attrs)},
	}
}

func event(typ string, attrs map[string]string) abci.Event {
	ev := abci.Event{Type: typ}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ev.Attributes = append(ev.Attributes, abci.EventAttribute{Key: k, Value: attrs[k], Index: true})
	}
	return ev
}

func u64s(v uint64) string { return fmt.Sprintf("%d", v) }
func ints(v int) string    { return fmt.Sprintf("%d", v) }
func i64s(v int64) string  { return fmt.Sprintf("%d", v) }

func joinSlots(slots []uint8) string {
	parts := make([]string, 0, len(slots))
	for _, s := range slots {
		parts = append(parts, fmt.Sprintf("%d", s))
	}
	return strings.Join(parts, ",")
}

func joinCards(cards []state.Card) string {
	parts := make([]string, 0, len(cards))
	for _, c := range cards {
		parts = append(parts, fmt.Sprintf("%d", uint8(c)))
	}
	return strings.Join(parts, ",")
}

func eliminationEvent(r *state.Room, idx int, reason string, revealed []state.Card) abci.Event {
	return event("PlayerEliminated", map[string]string{
		"roomId":   u64s(r.ID),
		"player":   r.Players[idx].Address,
		"index":    ints(idx),
		"reason":   reason,
		"revealed": joinCards(revealed),
	})
}
