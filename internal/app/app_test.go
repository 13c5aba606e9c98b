package app

import (
	"bytes"
	"encoding/json"
	"strconv"
	"testing"

	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"

	"onchaincourt/internal/conceal"
	"onchaincourt/internal/state"
)

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func txBytes(t *testing.T, typ string, value any) []byte {
	t.Helper()
	return mustMarshal(t, map[string]any{
		"type":  typ,
		"value": value,
	})
}

func findEvent(events []abci.Event, typ string) *abci.Event {
	for i := range events {
		if events[i].Type == typ {
			return &events[i]
		}
	}
	return nil
}

func attr(ev *abci.Event, key string) string {
	if ev == nil {
		return ""
	}
	for _, a := range ev.Attributes {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

func parseU64(t *testing.T, s string) uint64 {
	t.Helper()
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		t.Fatalf("parse uint64 %q: %v", s, err)
	}
	return n
}

func newTestApp(t *testing.T) *OCCApp {
	t.Helper()
	a, err := New(t.TempDir(), log.NewNopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func mustOk(t *testing.T, res *abci.ExecTxResult) *abci.ExecTxResult {
	t.Helper()
	if res.Code != codeOK {
		t.Fatalf("expected ok, got code=%d log=%q", res.Code, res.Log)
	}
	return res
}

func mustCode(t *testing.T, res *abci.ExecTxResult, code uint32) *abci.ExecTxResult {
	t.Helper()
	if res.Code != code {
		t.Fatalf("expected code=%d, got code=%d log=%q", code, res.Code, res.Log)
	}
	return res
}

var testNames = []string{"alice", "bob", "carol", "dave", "erin", "frank"}

// setupRoom creates a room via txs and joins n players total.
func setupRoom(t *testing.T, a *OCCApp, n int, extra map[string]any) uint64 {
	t.Helper()
	create := map[string]any{"creator": testNames[0], "name": "parlor", "maxPlayers": 6}
	for k, v := range extra {
		create[k] = v
	}
	res := mustOk(t, a.deliverTx(txBytes(t, "room/create", create), 1, 1000))
	roomID := parseU64(t, attr(findEvent(res.Events, "RoomCreated"), "roomId"))
	for i := 1; i < n; i++ {
		mustOk(t, a.deliverTx(txBytes(t, "room/join", map[string]any{
			"player": testNames[i], "roomId": roomID,
		}), 1, 1000))
	}
	return roomID
}

// buildPlayingRoom creates a room via txs, then installs a scripted round:
// player i holds the i-th hand value, the draw pile holds the deck values in
// order, and one card is burned. Artifacts are bound with the room's backend
// so respond txs exercise the real verification path.
func buildPlayingRoom(t *testing.T, a *OCCApp, tag string, hands []state.Card, deck []state.Card, burned state.Card) *state.Room {
	t.Helper()
	roomID := setupRoom(t, a, len(hands), map[string]any{"conceal": tag})
	r := a.st.Rooms[roomID]

	seed := roundSeed(1, roomID, 1, nil)
	r.Seed = seed
	if tag == conceal.TagSealed {
		_, pub, err := conceal.SealedRoomKey(seed)
		if err != nil {
			t.Fatalf("sealed room key: %v", err)
		}
		r.RoomKey = pub
	}

	values := make([]state.Card, 0, len(hands)+len(deck)+1)
	values = append(values, hands...)
	values = append(values, deck...)
	values = append(values, burned)
	r.Slots = make([]state.Slot, len(values))
	for i, v := range values {
		r.Slots[i] = state.Slot{Value: v}
	}
	backend, err := roomBackend(r)
	if err != nil {
		t.Fatalf("backend: %v", err)
	}
	for i := range r.Slots {
		if err := bindSlot(r, backend, uint8(i)); err != nil {
			t.Fatalf("bind slot %d: %v", i, err)
		}
	}

	for i := range hands {
		r.Players[i].Hand = []uint8{uint8(i)}
	}
	r.Deck = nil
	for i := range deck {
		r.Deck = append(r.Deck, uint8(len(hands)+i))
	}
	r.Cursor = 0
	r.Burned = int16(len(values) - 1)
	r.Public = nil
	r.Status = state.StatusPlaying
	r.RoundNumber = 1
	r.CurrentTurn = 0
	if r.Params.TokensToWin == 0 {
		r.Params.TokensToWin = defaultTokensToWin(len(hands))
	}
	return r
}

func playTx(t *testing.T, r *state.Room, player int, slot uint8, target *int, guess *state.Card) []byte {
	t.Helper()
	v := map[string]any{
		"player":   r.Players[player].Address,
		"roomId":   r.ID,
		"cardSlot": slot,
	}
	if target != nil {
		v["target"] = *target
	}
	if guess != nil {
		v["guess"] = uint8(*guess)
	}
	return txBytes(t, "room/play_turn", v)
}

// respondTx opens the responder's current hand slot with the honest value
// and secret taken from engine state.
func respondTx(t *testing.T, r *state.Room, typ string, player int) []byte {
	t.Helper()
	slot := r.Players[player].Hand[0]
	s := r.Slots[slot]
	return txBytes(t, typ, map[string]any{
		"player":        r.Players[player].Address,
		"roomId":        r.ID,
		"revealedValue": uint8(s.Value),
		"secret":        slotSecret(r.Seed, slot, s.Generation),
	})
}

func intp(v int) *int { return &v }

func cardp(c state.Card) *state.Card { return &c }

func TestRoomCreateAndJoinLifecycle(t *testing.T) {
	a := newTestApp(t)

	res := mustOk(t, a.deliverTx(txBytes(t, "room/create", map[string]any{
		"creator": "alice", "name": "parlor",
	}), 1, 1000))
	ev := findEvent(res.Events, "RoomCreated")
	if ev == nil {
		t.Fatalf("expected RoomCreated event")
	}
	roomID := parseU64(t, attr(ev, "roomId"))
	if got := attr(ev, "conceal"); got != conceal.TagCommit {
		t.Fatalf("default conceal = %q, want %q", got, conceal.TagCommit)
	}

	mustOk(t, a.deliverTx(txBytes(t, "room/join", map[string]any{"player": "bob", "roomId": roomID}), 1, 1000))
	mustCode(t, a.deliverTx(txBytes(t, "room/join", map[string]any{"player": "bob", "roomId": roomID}), 1, 1000), codeAlreadyJoined)
	mustCode(t, a.deliverTx(txBytes(t, "room/join", map[string]any{"player": "zed", "roomId": 999}), 1, 1000), codeRoomNotFound)

	r := a.st.Rooms[roomID]
	if len(r.Players) != 2 || r.Players[0].Address != "alice" || r.Players[1].Address != "bob" {
		t.Fatalf("unexpected roster: %+v", r.Players)
	}
}

func TestRoomCreateRejectsBadParams(t *testing.T) {
	a := newTestApp(t)

	mustCode(t, a.deliverTx(txBytes(t, "room/create", map[string]any{"creator": "alice"}), 1, 1000), codeEmptyRoomName)
	mustCode(t, a.deliverTx(txBytes(t, "room/create", map[string]any{
		"creator": "alice", "name": "x", "maxPlayers": 1,
	}), 1, 1000), codeInvalidMaxPlayers)
	mustCode(t, a.deliverTx(txBytes(t, "room/create", map[string]any{
		"creator": "alice", "name": "x", "edition": "unknown",
	}), 1, 1000), codeInvalidParams)
	mustCode(t, a.deliverTx(txBytes(t, "room/create", map[string]any{
		"creator": "alice", "name": "x", "conceal": "rot13",
	}), 1, 1000), codeInvalidParams)
}

func TestStartRoundDealsOneCardEach(t *testing.T) {
	a := newTestApp(t)
	roomID := setupRoom(t, a, 3, nil)

	mustCode(t, a.deliverTx(txBytes(t, "room/start_round", map[string]any{
		"caller": "bob", "roomId": roomID,
	}), 1, 1000), codeNotRoomCreator)

	res := mustOk(t, a.deliverTx(txBytes(t, "room/start_round", map[string]any{
		"caller": "alice", "roomId": roomID,
	}), 1, 1000))
	if findEvent(res.Events, "RoundStarted") == nil {
		t.Fatalf("expected RoundStarted event")
	}

	r := a.st.Rooms[roomID]
	if r.Status != state.StatusPlaying {
		t.Fatalf("status = %v, want playing", r.Status)
	}
	for i, p := range r.Players {
		if len(p.Hand) != 1 {
			t.Fatalf("player %d hand size = %d, want 1", i, len(p.Hand))
		}
	}
	// 21 slots, 1 burned, 3 dealt.
	if r.Remaining() != 21-1-3 {
		t.Fatalf("remaining = %d, want 17", r.Remaining())
	}
	if r.Burned < 0 {
		t.Fatalf("expected a burned card")
	}
	if len(r.Public) != 0 {
		t.Fatalf("three-player round should have no public cards")
	}
	if r.Params.TokensToWin != 5 {
		t.Fatalf("tokensToWin = %d, want 5 for three players", r.Params.TokensToWin)
	}

	// Starting again mid-round is rejected; joining too.
	mustCode(t, a.deliverTx(txBytes(t, "room/start_round", map[string]any{
		"caller": "alice", "roomId": roomID,
	}), 1, 1000), codeRoundInProgress)
	mustCode(t, a.deliverTx(txBytes(t, "room/join", map[string]any{
		"player": "dave", "roomId": roomID,
	}), 1, 1000), codeGameAlreadyStarted)
}

func TestStartRoundTwoPlayersExposesThreePublicCards(t *testing.T) {
	a := newTestApp(t)
	roomID := setupRoom(t, a, 2, nil)

	res := mustOk(t, a.deliverTx(txBytes(t, "room/start_round", map[string]any{
		"caller": "alice", "roomId": roomID,
	}), 1, 1000))
	ev := findEvent(res.Events, "RoundStarted")
	if attr(ev, "public") == "" {
		t.Fatalf("expected public slots in RoundStarted")
	}

	r := a.st.Rooms[roomID]
	if len(r.Public) != 3 {
		t.Fatalf("public cards = %d, want 3", len(r.Public))
	}
	// 21 slots: 1 burned, 3 public, 2 dealt.
	if r.Remaining() != 21-1-3-2 {
		t.Fatalf("remaining = %d, want 15", r.Remaining())
	}
	if r.Params.TokensToWin != 6 {
		t.Fatalf("tokensToWin = %d, want 6 heads-up", r.Params.TokensToWin)
	}
}

func TestStartRoundClassicEdition(t *testing.T) {
	a := newTestApp(t)
	roomID := setupRoom(t, a, 4, map[string]any{"edition": state.EditionClassic16})

	mustOk(t, a.deliverTx(txBytes(t, "room/start_round", map[string]any{
		"caller": "alice", "roomId": roomID,
	}), 1, 1000))

	r := a.st.Rooms[roomID]
	if len(r.Slots) != 16 {
		t.Fatalf("classic deck = %d slots, want 16", len(r.Slots))
	}
	for _, s := range r.Slots {
		if s.Value == state.CardSpy || s.Value == state.CardChancellor {
			t.Fatalf("classic deck must not contain spy or chancellor")
		}
	}
}

func TestDeterministicRoundStart(t *testing.T) {
	run := func() []byte {
		a := newTestApp(t)
		roomID := setupRoom(t, a, 3, nil)
		mustOk(t, a.deliverTx(txBytes(t, "room/start_round", map[string]any{
			"caller": "alice", "roomId": roomID,
		}), 7, 1000))
		return a.st.AppHash()
	}
	h1 := run()
	h2 := run()
	if string(h1) != string(h2) {
		t.Fatalf("same txs at same height must produce the same app hash")
	}
}

func TestStartRoundEntropyChangesTheDeal(t *testing.T) {
	run := func(entropy []byte) []state.Card {
		a := newTestApp(t)
		roomID := setupRoom(t, a, 3, nil)
		v := map[string]any{"caller": "alice", "roomId": roomID}
		if entropy != nil {
			v["entropy"] = entropy
		}
		mustOk(t, a.deliverTx(txBytes(t, "room/start_round", v), 7, 1000))
		r := a.st.Rooms[roomID]
		values := make([]state.Card, len(r.Slots))
		for i, s := range r.Slots {
			values[i] = s.Value
		}
		return values
	}

	entropy := bytes.Repeat([]byte{0xa7}, 32)
	withEntropy := run(entropy)

	// A deal recomputed from public chain inputs alone must not match one
	// seeded with caller entropy.
	public := run(nil)
	same := true
	for i := range withEntropy {
		if withEntropy[i] != public[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("entropy-seeded deal must differ from the public-input deal")
	}

	// Replays with identical entropy stay deterministic.
	again := run(entropy)
	for i := range withEntropy {
		if withEntropy[i] != again[i] {
			t.Fatalf("slot %d differs across identical entropy runs", i)
		}
	}
}

func TestStartRoundRejectsShortEntropy(t *testing.T) {
	a := newTestApp(t)
	roomID := setupRoom(t, a, 2, nil)
	mustCode(t, a.deliverTx(txBytes(t, "room/start_round", map[string]any{
		"caller": "alice", "roomId": roomID, "entropy": []byte("too short"),
	}), 1, 1000), codeInvalidParams)
	if a.st.Rooms[roomID].Status != state.StatusWaiting {
		t.Fatalf("a rejected start must leave the room waiting")
	}
}

func TestQueryRedactsSlotValues(t *testing.T) {
	a := newTestApp(t)
	roomID := setupRoom(t, a, 2, nil)
	mustOk(t, a.deliverTx(txBytes(t, "room/start_round", map[string]any{
		"caller": "alice", "roomId": roomID,
	}), 1, 1000))

	res, err := a.Query(nil, &abci.QueryRequest{Path: "/room/" + strconv.FormatUint(roomID, 10)})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Code != codeOK {
		t.Fatalf("query code = %d log=%q", res.Code, res.Log)
	}
	var view map[string]any
	if err := json.Unmarshal(res.Value, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	slots, ok := view["slots"].([]any)
	if !ok || len(slots) == 0 {
		t.Fatalf("expected slots in view")
	}
	for i, s := range slots {
		m := s.(map[string]any)
		if _, leaked := m["value"]; leaked {
			t.Fatalf("slot %d leaks its value", i)
		}
	}
	if _, leaked := view["seed"]; leaked {
		t.Fatalf("view leaks the round seed")
	}
}

func TestUnknownTxTypeRejected(t *testing.T) {
	a := newTestApp(t)
	res := a.deliverTx(txBytes(t, "room/fold", map[string]any{}), 1, 1000)
	if res.Code != codeInvalidTx {
		t.Fatalf("expected invalid tx, got %d", res.Code)
	}
}
