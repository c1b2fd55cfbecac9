package app

import (
	"context"

	"github.com/calehh/hac-gov/config"
	"github.com/calehh/hac-gov/gov"
	"github.com/calehh/hac-gov/state"
	"github.com/calehh/hac-gov/tx/handler"
	hac_types "github.com/calehh/hac-gov/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

const AppVersion uint64 = 1

var _ abcitypes.Application = &HACApp{}

type HACApp struct {
	cfg    *config.HacAppConfig
	logger cmtlog.Logger

	db       *state.StateDB
	router   *handler.Router
	queriers map[string]Querier

	st *state.State
}

func NewHACApp(cfg *config.HacAppConfig, logger cmtlog.Logger) (app *HACApp, err error) {
	db, err := state.NewStateDB(cfg.DataDir(), cfg.DBBackend, logger)
	if err != nil {
		return nil, err
	}
	return NewHACAppWithDB(cfg, db, logger), nil
}

func NewHACAppWithDB(cfg *config.HacAppConfig, db *state.StateDB, logger cmtlog.Logger) (app *HACApp) {
	logger = logger.With("module", "app")
	app = &HACApp{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		router:   handler.NewRouter(logger),
		queriers: make(map[string]Querier),
	}
	app.registerQuerier()
	return
}

func (app *HACApp) Stop() {
	err := app.db.Close()
	if err != nil {
		app.logger.Error("close db fail", "err", err)
	}
	app.logger.Info("HAC gov app stopped")
}

func (app *HACApp) InitChain(_ context.Context, chain *abcitypes.RequestInitChain) (res *abcitypes.ResponseInitChain, err error) {
	msg, err := hac_types.ParseAppState(chain.AppStateBytes)
	if err != nil {
		app.logger.Error("InitChain parse app state fail", "err", err)
		return nil, err
	}
	// height stays 0 until the first block commits, so Info reports no
	// blocks and a restart replays InitChain
	blk := hac_types.BlockInfo{Time: chain.Time.UTC()}
	st, err := app.db.NewState(blk)
	if err != nil {
		return nil, err
	}
	st.SetChainId(chain.ChainId)
	err = gov.NewEngine(st.Store(), blk, app.logger).Instantiate(msg)
	if err != nil {
		app.logger.Error("InitChain instantiate fail", "err", err)
		return nil, errors.Wrap(err, "instantiate")
	}
	var h common.Hash
	_, err = st.Update()
	if err != nil {
		app.logger.Error("InitChain update state fail", "err", err)
		return nil, err
	}
	h, err = app.db.SetState(st)
	if err != nil {
		app.logger.Error("InitChain apply state fail", "err", err)
		return nil, err
	}
	app.logger.Info("InitChain", "chain", chain.ChainId, "voters", len(msg.Voters), "hash", h.Hex())
	return &abcitypes.ResponseInitChain{
		AppHash: h.Bytes(),
	}, nil
}

func (app *HACApp) Info(ctx context.Context, info *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	header := app.db.Header()
	return &abcitypes.ResponseInfo{
		Data:             gov.ContractName,
		Version:          gov.ContractVersion,
		AppVersion:       AppVersion,
		LastBlockHeight:  int64(header.Height),
		LastBlockAppHash: header.Hash,
	}, nil
}

func (app *HACApp) ExtendVote(_ context.Context, extend *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (app *HACApp) VerifyVoteExtension(_ context.Context, verify *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

func (app *HACApp) ApplySnapshotChunk(context.Context, *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{Result: abcitypes.ResponseApplySnapshotChunk_ABORT}, nil
}

func (app *HACApp) ListSnapshots(context.Context, *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (app *HACApp) LoadSnapshotChunk(context.Context, *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (app *HACApp) OfferSnapshot(context.Context, *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{Result: abcitypes.ResponseOfferSnapshot_REJECT}, nil
}
