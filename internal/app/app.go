package app

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"

	"onchaincourt/internal/codec"
	"onchaincourt/internal/state"
)

const (
	AppVersion uint64 = 1
)

type OCCApp struct {
	*abci.BaseApplication

	home   string
	logger log.Logger

	mu       sync.Mutex
	st       *state.State
	lastHash []byte
}

func New(home string, logger log.Logger) (*OCCApp, error) {
	appHome := filepath.Join(home, "app")
	st, err := state.Load(appHome)
	if err != nil {
		return nil, err
	}
	a := &OCCApp{
		BaseApplication: abci.NewBaseApplication(),
		home:            home,
		logger:          logger,
		st:              st,
		lastHash:        st.AppHash(),
	}
	return a, nil
}

func (a *OCCApp) Info(_ context.Context, _ *abci.InfoRequest) (*abci.InfoResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return &abci.InfoResponse{
		Data:             "OCC (v0)",
		Version:          "v0",
		AppVersion:       AppVersion,
		LastBlockHeight:  a.st.Height,
		LastBlockAppHash: a.lastHash,
	}, nil
}

func (a *OCCApp) CheckTx(_ context.Context, req *abci.CheckTxRequest) (*abci.CheckTxResponse, error) {
	// Structural validation only; auth and game checks run in FinalizeBlock.
	_, err := codec.DecodeTxEnvelope(req.Tx)
	if err != nil {
		return &abci.CheckTxResponse{Code: codeInvalidTx, Log: err.Error()}, nil
	}
	return &abci.CheckTxResponse{Code: codeOK}, nil
}

func (a *OCCApp) InitChain(_ context.Context, _ *abci.InitChainRequest) (*abci.InitChainResponse, error) {
	// No special genesis handling.
	return &abci.InitChainResponse{}, nil
}

func (a *OCCApp) FinalizeBlock(_ context.Context, req *abci.FinalizeBlockRequest) (*abci.FinalizeBlockResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.st.Height = req.Height
	nowUnix := req.Time.Unix()

	txResults := make([]*abci.ExecTxResult, 0, len(req.Txs))
	for _, txBytes := range req.Txs {
		res := a.deliverTx(txBytes, req.Height, nowUnix)
		if res.Code != codeOK {
			a.logger.Debug("tx rejected", "height", req.Height, "code", res.Code, "log", res.Log)
		}
		txResults = append(txResults, res)
	}

	a.lastHash = a.st.AppHash()

	return &abci.FinalizeBlockResponse{
		TxResults: txResults,
		AppHash:   a.lastHash,
	}, nil
}

func (a *OCCApp) Commit(_ context.Context, _ *abci.CommitRequest) (*abci.CommitResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Persist after each block for devnet durability.
	appHome := filepath.Join(a.home, "app")
	if err := a.st.Save(appHome); err != nil {
		// CometBFT expects Commit to not crash; return error so node halts loudly.
		return nil, err
	}
	return &abci.CommitResponse{}, nil
}

func (a *OCCApp) Query(_ context.Context, req *abci.QueryRequest) (*abci.QueryResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Paths:
	// - /rooms
	// - /room/<id>            redacted room view
	// - /room/<id>/peek       outstanding priest peek, with the granted value
	// - /account/<addr>
	path := strings.TrimSpace(req.Path)
	switch {
	case path == "/rooms":
		ids := make([]uint64, 0, len(a.st.Rooms))
		for id := range a.st.Rooms {
			ids = append(ids, id)
		}
		b, _ := json.Marshal(ids)
		return &abci.QueryResponse{Code: codeOK, Value: b, Height: a.st.Height}, nil

	case strings.HasPrefix(path, "/room/"):
		rest := strings.TrimPrefix(path, "/room/")
		raw, sub, _ := strings.Cut(rest, "/")
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return &abci.QueryResponse{Code: codeInvalidTx, Log: "invalid room id", Height: a.st.Height}, nil
		}
		r, ok := a.st.Rooms[id]
		if !ok {
			return &abci.QueryResponse{Code: codeRoomNotFound, Log: "room not found", Height: a.st.Height}, nil
		}
		switch sub {
		case "":
			b, _ := json.Marshal(r.RedactedView())
			return &abci.QueryResponse{Code: codeOK, Value: b, Height: a.st.Height}, nil
		case "peek":
			if r.Peek == nil {
				return &abci.QueryResponse{Code: codeNoPendingAction, Log: "no peek granted", Height: a.st.Height}, nil
			}
			b, _ := json.Marshal(map[string]any{
				"viewer": r.Peek.Viewer,
				"target": r.Peek.Target,
				"slot":   r.Peek.Slot,
				"value":  uint8(r.SlotValue(r.Peek.Slot)),
			})
			return &abci.QueryResponse{Code: codeOK, Value: b, Height: a.st.Height}, nil
		default:
			return &abci.QueryResponse{Code: codeInvalidTx, Log: "unknown room query", Height: a.st.Height}, nil
		}

	case strings.HasPrefix(path, "/account/"):
		addr := strings.TrimPrefix(path, "/account/")
		b, _ := json.Marshal(map[string]any{
			"addr":       addr,
			"registered": len(a.st.AccountKeys[addr]) > 0,
			"nonceMax":   a.st.NonceMax[addr],
		})
		return &abci.QueryResponse{Code: codeOK, Value: b, Height: a.st.Height}, nil

	default:
		return &abci.QueryResponse{Code: codeInvalidTx, Log: "unknown query path", Height: a.st.Height}, nil
	}
}

// deliverTx executes one tx atomically. Handlers are validate-then-commit:
// every rejection happens before the first state write, so a failed tx never
// leaves partial writes behind.
func (a *OCCApp) deliverTx(txBytes []byte, height int64, nowUnix int64) *abci.ExecTxResult {
	env, err := codec.DecodeTxEnvelope(txBytes)
	if err != nil {
		return &abci.ExecTxResult{Code: codeInvalidTx, Log: err.Error()}
	}

	if env.Type == "auth/register_account" {
		var msg codec.AuthRegisterAccountTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: codeInvalidTx, Log: "bad auth/register_account value"}
		}
		if err := requireRegisterAccountAuth(env, msg); err != nil {
			return errResult(err)
		}
		a.st.AccountKeys[msg.Account] = msg.PubKey
		bumpNonce(a.st, env)
		return okEvent("AccountRegistered", map[string]string{"account": msg.Account})
	}

	res, err := a.dispatch(env, height, nowUnix)
	if err != nil {
		return errResult(err)
	}
	bumpNonce(a.st, env)
	return res
}

// dispatch decodes the typed message, runs auth for its actor, and invokes
// the handler.
func (a *OCCApp) dispatch(env codec.TxEnvelope, height int64, nowUnix int64) (*abci.ExecTxResult, error) {
	switch env.Type {
	case "room/create":
		var msg codec.RoomCreateTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errf(codeInvalidTx, "bad %s value", env.Type)
		}
		if err := maybeRequireAccountAuth(a.st, env, msg.Creator); err != nil {
			return nil, err
		}
		return roomCreate(a.st, msg)

	case "room/join":
		var msg codec.RoomJoinTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errf(codeInvalidTx, "bad %s value", env.Type)
		}
		if err := maybeRequireAccountAuth(a.st, env, msg.Player); err != nil {
			return nil, err
		}
		return roomJoin(a.st, msg)

	case "room/start_round":
		var msg codec.RoomStartRoundTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errf(codeInvalidTx, "bad %s value", env.Type)
		}
		if err := maybeRequireAccountAuth(a.st, env, msg.Caller); err != nil {
			return nil, err
		}
		return roomStartRound(a.st, msg, height)

	case "room/play_turn":
		var msg codec.RoomPlayTurnTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errf(codeInvalidTx, "bad %s value", env.Type)
		}
		if err := maybeRequireAccountAuth(a.st, env, msg.Player); err != nil {
			return nil, err
		}
		return roomPlayTurn(a.st, msg, nowUnix)

	case "room/respond_guard", "room/respond_baron", "room/respond_prince", "room/respond_king":
		var msg codec.RoomRespondTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errf(codeInvalidTx, "bad %s value", env.Type)
		}
		if err := maybeRequireAccountAuth(a.st, env, msg.Player); err != nil {
			return nil, err
		}
		var res *abci.ExecTxResult
		var err error
		switch env.Type {
		case "room/respond_guard":
			res, err = roomRespondGuard(a.st, msg)
		case "room/respond_baron":
			res, err = roomRespondBaron(a.st, msg)
		case "room/respond_prince":
			res, err = roomRespondPrince(a.st, msg)
		case "room/respond_king":
			res, err = roomRespondKing(a.st, msg)
		}
		return res, err

	case "room/resolve_chancellor":
		var msg codec.RoomResolveChancellorTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errf(codeInvalidTx, "bad %s value", env.Type)
		}
		if err := maybeRequireAccountAuth(a.st, env, msg.Player); err != nil {
			return nil, err
		}
		return roomResolveChancellor(a.st, msg)

	case "room/timeout":
		var msg codec.RoomTimeoutTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errf(codeInvalidTx, "bad %s value", env.Type)
		}
		if err := maybeRequireAccountAuth(a.st, env, msg.Caller); err != nil {
			return nil, err
		}
		return roomTimeout(a.st, msg, nowUnix)

	default:
		return nil, errf(codeInvalidTx, "unknown tx type: %s", env.Type)
	}
}
