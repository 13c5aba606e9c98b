package app

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	abci "github.com/cometbft/cometbft/abci/types"

	"onchaincourt/internal/codec"
	"onchaincourt/internal/conceal"
	"onchaincourt/internal/state"
)

const (
	roundSeedDomain  = "occ/v1/round-seed"
	slotSecretDomain = "occ/v1/slot-secret"

	defaultMaxPlayers = 4
	minPlayers        = 2
	maxPlayersCap     = 6
)

// defaultTokensToWin mirrors the printed rules: fewer players, longer games.
func defaultTokensToWin(players int) uint8 {
	switch players {
	case 2:
		return 6
	case 3:
		return 5
	case 4:
		return 4
	default:
		return 3
	}
}

// roundSeed is the shared randomness for a round: every node derives the same
// shuffle and the same per-slot secrets from it. The chain inputs are public,
// so any caller-supplied entropy is folded in; without it the deal is
// reproducible by anyone watching the chain.
func roundSeed(height int64, roomID uint64, round uint32, entropy []byte) []byte {
	buf := make([]byte, 0, len(roundSeedDomain)+8+8+4+len(entropy))
	buf = append(buf, []byte(roundSeedDomain)...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(height))
	buf = binary.LittleEndian.AppendUint64(buf, roomID)
	buf = binary.LittleEndian.AppendUint32(buf, round)
	buf = append(buf, entropy...)
	sum := sha256.Sum256(buf)
	return sum[:]
}

// slotSecret derives the secret bound into a slot's concealment artifact.
// Generation is part of the derivation so rebinding after a Prince replacement
// or King swap always produces a fresh (secret, artifact) pair.
func slotSecret(seed []byte, slot, generation uint8) []byte {
	buf := make([]byte, 0, len(slotSecretDomain)+len(seed)+2)
	buf = append(buf, []byte(slotSecretDomain)...)
	buf = append(buf, seed...)
	buf = append(buf, slot, generation)
	sum := sha256.Sum256(buf)
	return sum[:]
}

func roomBackend(r *state.Room) (conceal.Backend, error) {
	return conceal.New(r.Params.Conceal, r.RoomKey)
}

func bindSlot(r *state.Room, backend conceal.Backend, slot uint8) error {
	s := &r.Slots[slot]
	artifact, err := backend.Bind(slot, s.Generation, uint8(s.Value), slotSecret(r.Seed, slot, s.Generation))
	if err != nil {
		return fmt.Errorf("bind slot %d: %w", slot, err)
	}
	s.Artifact = artifact
	return nil
}

// rebindArtifact computes a next-generation artifact for a slot without
// touching state, so callers can fail before their first write. A card that
// changes hands must never keep an artifact that was already opened.
func rebindArtifact(r *state.Room, backend conceal.Backend, slot uint8) ([]byte, error) {
	gen := r.Slots[slot].Generation + 1
	artifact, err := backend.Bind(slot, gen, uint8(r.Slots[slot].Value), slotSecret(r.Seed, slot, gen))
	if err != nil {
		return nil, fmt.Errorf("rebind slot %d: %w", slot, err)
	}
	return artifact, nil
}

func commitRebind(r *state.Room, slot uint8, artifact []byte) {
	r.Slots[slot].Generation++
	r.Slots[slot].Artifact = artifact
}

func roomCreate(st *state.State, msg codec.RoomCreateTx) (*abci.ExecTxResult, error) {
	if msg.Creator == "" {
		return nil, errf(codeInvalidTx, "missing creator")
	}
	if msg.Name == "" {
		return nil, errf(codeEmptyRoomName, "room name must not be empty")
	}
	maxPlayers := msg.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = defaultMaxPlayers
	}
	if maxPlayers < minPlayers || maxPlayers > maxPlayersCap {
		return nil, errf(codeInvalidMaxPlayers, "maxPlayers must be %d..%d, got %d", minPlayers, maxPlayersCap, maxPlayers)
	}
	edition := msg.Edition
	if edition == "" {
		edition = state.EditionDeluxe21
	}
	if !state.ValidEdition(edition) {
		return nil, errf(codeInvalidParams, "unknown edition %q", edition)
	}
	concealTag := msg.Conceal
	if concealTag == "" {
		concealTag = conceal.TagCommit
	}
	if !conceal.ValidTag(concealTag) {
		return nil, errf(codeInvalidParams, "unknown conceal backend %q", concealTag)
	}

	id := st.NextRoomID
	r := &state.Room{
		ID:      id,
		Name:    msg.Name,
		Creator: msg.Creator,
		Params: state.RoomParams{
			MaxPlayers:          maxPlayers,
			TokensToWin:         msg.TokensToWin,
			Edition:             edition,
			Conceal:             concealTag,
			ResponseTimeoutSecs: msg.ResponseTimeoutSecs,
		},
		Status:     state.StatusWaiting,
		Players:    []*state.Player{{Address: msg.Creator, Alive: true}},
		LastWinner: -1,
		Burned:     -1,
	}
	st.NextRoomID++
	st.Rooms[id] = r

	return okEvent("RoomCreated", map[string]string{
		"roomId":  u64s(id),
		"name":    msg.Name,
		"creator": msg.Creator,
		"conceal": concealTag,
		"edition": edition,
	}), nil
}

func roomJoin(st *state.State, msg codec.RoomJoinTx) (*abci.ExecTxResult, error) {
	if msg.Player == "" {
		return nil, errf(codeInvalidTx, "missing player")
	}
	r := st.Rooms[msg.RoomID]
	if r == nil {
		return nil, errf(codeRoomNotFound, "room %d not found", msg.RoomID)
	}
	if r.Status != state.StatusWaiting {
		return nil, errf(codeGameAlreadyStarted, "room %d already started", msg.RoomID)
	}
	if r.PlayerIndex(msg.Player) >= 0 {
		return nil, errf(codeAlreadyJoined, "%s already joined room %d", msg.Player, msg.RoomID)
	}
	if len(r.Players) >= int(r.Params.MaxPlayers) {
		return nil, errf(codeRoomFull, "room %d is full", msg.RoomID)
	}
	r.Players = append(r.Players, &state.Player{Address: msg.Player, Alive: true})

	return okEvent("PlayerJoined", map[string]string{
		"roomId": u64s(msg.RoomID),
		"player": msg.Player,
		"index":  ints(len(r.Players) - 1),
	}), nil
}

func roomStartRound(st *state.State, msg codec.RoomStartRoundTx, height int64) (*abci.ExecTxResult, error) {
	r := st.Rooms[msg.RoomID]
	if r == nil {
		return nil, errf(codeRoomNotFound, "room %d not found", msg.RoomID)
	}
	if msg.Caller != r.Creator {
		return nil, errf(codeNotRoomCreator, "only the room creator may start a round")
	}
	switch r.Status {
	case state.StatusWaiting, state.StatusRoundEnd:
	case state.StatusPlaying:
		return nil, errf(codeRoundInProgress, "round already in progress")
	default:
		return nil, errf(codeGameFinished, "game is finished")
	}
	if len(r.Players) < minPlayers {
		return nil, errf(codeInvalidParams, "need at least %d players, have %d", minPlayers, len(r.Players))
	}

	if len(msg.Entropy) != 0 && len(msg.Entropy) != 32 {
		return nil, errf(codeInvalidParams, "entropy must be 32 bytes (or omitted)")
	}

	round := r.RoundNumber + 1
	seed := roundSeed(height, r.ID, round, msg.Entropy)
	values, err := state.ShuffledComposition(r.Params.Edition, seed)
	if err != nil {
		return nil, err
	}

	roomKey := []byte(nil)
	if r.Params.Conceal == conceal.TagSealed {
		_, pub, err := conceal.SealedRoomKey(seed)
		if err != nil {
			return nil, err
		}
		roomKey = pub
	}

	// Stage the full deck before touching the room so a late bind failure
	// leaves the previous round state intact.
	slots := make([]state.Slot, len(values))
	deck := make([]uint8, len(values))
	for i, v := range values {
		slots[i] = state.Slot{Value: v}
		deck[i] = uint8(i)
	}
	staged := &state.Room{Params: r.Params, Seed: seed, RoomKey: roomKey, Slots: slots}
	backend, err := roomBackend(staged)
	if err != nil {
		return nil, err
	}
	for i := range slots {
		if err := bindSlot(staged, backend, uint8(i)); err != nil {
			return nil, err
		}
	}

	if r.Params.TokensToWin == 0 {
		r.Params.TokensToWin = defaultTokensToWin(len(r.Players))
	}
	r.Seed = seed
	r.RoomKey = roomKey
	r.Slots = slots
	r.Deck = deck
	r.Cursor = 0
	r.Pending = nil
	r.Chancellor = nil
	r.Peek = nil

	// Burn one card face down for every player count.
	r.Burned = int16(r.Deck[r.Cursor])
	r.Cursor++

	// Two-player rounds additionally expose three public cards to offset the
	// reduced deduction surface.
	r.Public = nil
	if len(r.Players) == 2 {
		for i := 0; i < 3; i++ {
			r.Public = append(r.Public, r.Deck[r.Cursor])
			r.Cursor++
		}
	}

	first := 0
	if r.LastWinner >= 0 && r.LastWinner < len(r.Players) {
		first = r.LastWinner
	}

	dealt := map[string]string{
		"roomId": u64s(r.ID),
		"round":  u64s(uint64(round)),
		"first":  ints(first),
		"public": joinSlots(r.Public),
	}
	publicValues := make([]state.Card, 0, len(r.Public))
	for _, s := range r.Public {
		publicValues = append(publicValues, r.SlotValue(s))
	}
	dealt["publicValues"] = joinCards(publicValues)

	for _, p := range r.Players {
		p.Hand = nil
		p.Discards = nil
		p.Alive = true
		p.Immune = false
		p.SpyDiscarded = false
	}

	// Deal one concealed slot per player, starting with the first player.
	n := len(r.Players)
	for k := 0; k < n; k++ {
		i := (first + k) % n
		slot := r.Deck[r.Cursor]
		r.Cursor++
		r.Players[i].Hand = []uint8{slot}
		dealt[fmt.Sprintf("hand%d", i)] = joinSlots(r.Players[i].Hand)
	}

	r.RoundNumber = round
	r.CurrentTurn = first
	r.Status = state.StatusPlaying

	return okEvent("RoundStarted", dealt), nil
}
