package app

import (
	"fmt"

	abci "github.com/cometbft/cometbft/abci/types"
)

// Codespace for all game rejections. Every rejection carries a stable numeric
// code so clients can branch on kind; the log line is advisory only.
const gameCodespace = "game"

const (
	codeOK        uint32 = 0
	codeInvalidTx uint32 = 1

	// Structural: rejected before any game logic runs.
	codeRoomNotFound      uint32 = 10
	codeRoomFull          uint32 = 11
	codeInvalidMaxPlayers uint32 = 12
	codeEmptyRoomName     uint32 = 13
	codeNotRoomCreator    uint32 = 14
	codeAlreadyJoined     uint32 = 15
	codeNotInRoom         uint32 = 16
	codeInvalidParams     uint32 = 17

	// Sequencing: rejected off the current state enum; retry at the right state.
	codeGameNotStarted       uint32 = 20
	codeGameAlreadyStarted   uint32 = 21
	codeRoundInProgress      uint32 = 22
	codeNotYourTurn          uint32 = 23
	codePendingAction        uint32 = 24
	codeNoPendingAction      uint32 = 25
	codeNotPendingResponder  uint32 = 26
	codeChancellorPending    uint32 = 27
	codeChancellorNotPending uint32 = 28
	codeDeadlineNotReached   uint32 = 29
	codeGameFinished         uint32 = 30

	// Move legality: a specific play is rejected, state untouched.
	codeCardNotInHand              uint32 = 40
	codePlayerEliminated           uint32 = 41
	codeTargetRequired             uint32 = 42
	codeTargetEliminated           uint32 = 43
	codeTargetImmune               uint32 = 44
	codeCannotTargetSelf           uint32 = 45
	codeGuessRequired              uint32 = 46
	codeInvalidGuess               uint32 = 47
	codeMustDiscardCountess        uint32 = 48
	codeInvalidTarget              uint32 = 49
	codeChancellorInvalidSelection uint32 = 50
	codeChancellorMustKeepOne      uint32 = 51

	// Cryptographic: a reveal whose artifact does not verify. One code covers
	// wrong values and wrong secrets; backends cannot tell them apart.
	codeInvalidReveal uint32 = 60

	// Resource.
	codeDeckEmpty uint32 = 70
)

// gameErr carries the numeric rejection code through handler returns.
type gameErr struct {
	code uint32
	msg  string
}

func (e *gameErr) Error() string { return e.msg }

func errf(code uint32, format string, args ...any) *gameErr {
	return &gameErr{code: code, msg: fmt.Sprintf(format, args...)}
}

func errResult(err error) *abci.ExecTxResult {
	if ge, ok := err.(*gameErr); ok {
		return &abci.ExecTxResult{Code: ge.code, Codespace: gameCodespace, Log: ge.msg}
	}
	return &abci.ExecTxResult{Code: codeInvalidTx, Codespace: gameCodespace, Log: err.Error()}
}
