package app

import (
	"context"
	"time"

	"github.com/calehh/hac-gov/gov"
	"github.com/calehh/hac-gov/state"
	"github.com/calehh/hac-gov/tx"
	"github.com/calehh/hac-gov/tx/handler"
	hac_types "github.com/calehh/hac-gov/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/pkg/errors"
)

var (
	ErrUnexpectedTxProcess = errors.New("unexpected tx process")
)

func blockInfo(height int64, t time.Time) hac_types.BlockInfo {
	return hac_types.BlockInfo{Height: uint64(height), Time: t.UTC()}
}

func (app *HACApp) getState(blk hac_types.BlockInfo) (st *state.State, err error) {
	st, err = app.db.NewState(blk)
	if err != nil {
		return nil, err
	}
	app.st = st
	return
}

// parseTx decodes a tx and checks its signature against the chain id.
func (app *HACApp) parseTx(txDat []byte) (btx *tx.GovTx, err error) {
	btx, err = tx.UnmarshalGovTx(txDat)
	if err != nil {
		return
	}
	err = btx.Verify(app.db.Header().ChainId)
	return
}

func failResult(err error) *abcitypes.ExecTxResult {
	return &abcitypes.ExecTxResult{
		Code: gov.ErrorCode(err),
		Log:  err.Error(),
	}
}

// deliverTx runs one tx on store. The sender's nonce is consumed whenever
// the envelope is valid; governance writes land only if the handler
// succeeds. A non-nil error means the tx must not be in a block at all.
func (app *HACApp) deliverTx(ctx context.Context, store state.KVStore, blk hac_types.BlockInfo, txDat []byte, allowNonceGap bool) (*abcitypes.ExecTxResult, error) {
	btx, err := app.parseTx(txDat)
	if err != nil {
		return nil, err
	}
	sender := btx.Sender()
	if err = state.CheckNonce(store, sender, btx.Nonce, allowNonceGap); err != nil {
		return nil, err
	}
	if err = state.IncNonce(store, sender); err != nil {
		return nil, err
	}
	cache := state.NewCache(store)
	res, err := app.router.Deliver(ctx, &handler.Env{Store: cache, Block: blk}, btx)
	if err != nil {
		app.logger.Info("tx failed", "type", btx.Type.String(), "sender", sender, "err", err)
		cache.Discard()
		return failResult(err), nil
	}
	if err = cache.Write(); err != nil {
		return nil, err
	}
	return res, nil
}

func (app *HACApp) CheckTx(ctx context.Context, check *abcitypes.RequestCheckTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: 0}
	snap, err := app.db.Committed()
	if err != nil {
		return nil, err
	}
	header := app.db.Header()
	blk := hac_types.BlockInfo{Height: header.Height + 1, Time: header.Time}
	result, err := app.deliverTx(ctx, state.NewCache(snap), blk, check.Tx, true)
	if err != nil {
		app.logger.Info("check tx fail", "err", err)
		res.Code = gov.CodeInternal
		res.Log = err.Error()
		return res, nil
	}
	res.Code = result.Code
	res.Log = result.Log
	res.Data = result.Data
	res.Events = result.Events
	return
}

func (app *HACApp) PrepareProposal(ctx context.Context, proposal *abcitypes.RequestPrepareProposal) (res *abcitypes.ResponsePrepareProposal, err error) {
	app.logger.Info("PrepareProposal", "height", proposal.Height, "txs", len(proposal.Txs))
	blk := blockInfo(proposal.Height, proposal.Time)
	st, err := app.db.NewState(blk)
	if err != nil {
		return nil, err
	}
	txs := make([][]byte, 0, len(proposal.Txs))
	var size int64
	for _, stx := range proposal.Txs {
		if proposal.MaxTxBytes > 0 && size+int64(len(stx)) > proposal.MaxTxBytes {
			break
		}
		branch := st.Branch()
		result, err := app.deliverTx(ctx, branch, blk, stx, false)
		if err != nil {
			app.logger.Error("prepare tx dropped", "err", err)
			continue
		}
		if result.Code != 0 {
			app.logger.Info("prepare tx dropped", "code", result.Code, "log", result.Log)
			continue
		}
		if err = branch.Write(); err != nil {
			return nil, err
		}
		size += int64(len(stx))
		txs = append(txs, stx)
	}
	return &abcitypes.ResponsePrepareProposal{Txs: txs}, nil
}

// ProcessProposal accepts a block only if every tx in it would succeed.
func (app *HACApp) ProcessProposal(ctx context.Context, proposal *abcitypes.RequestProcessProposal) (res *abcitypes.ResponseProcessProposal, err error) {
	app.logger.Info("ProcessProposal", "height", proposal.Height, "txs", len(proposal.Txs))
	res = &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}
	if len(proposal.Txs) == 0 {
		res.Status = abcitypes.ResponseProcessProposal_ACCEPT
		return res, nil
	}
	blk := blockInfo(proposal.Height, proposal.Time)
	st, err := app.db.NewState(blk)
	if err != nil {
		app.logger.Error("ProcessProposal new state fail", "err", err)
		return res, nil
	}
	for i, stx := range proposal.Txs {
		result, err := app.deliverTx(ctx, st.Store(), blk, stx, false)
		if err != nil {
			app.logger.Error("process fail", "index", i, "err", err)
			return res, nil
		}
		if result.Code != 0 {
			app.logger.Error("process fail", "index", i, "code", result.Code, "log", result.Log)
			return res, nil
		}
	}
	res.Status = abcitypes.ResponseProcessProposal_ACCEPT
	app.logger.Info("proposal accepted", "height", proposal.Height)
	return res, nil
}

func (app *HACApp) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	app.logger.Info("FinalizeBlock", "height", req.Height, "txs", len(req.Txs))
	blk := blockInfo(req.Height, req.Time)
	st, err := app.getState(blk)
	if err != nil {
		return nil, err
	}
	res := make([]*abcitypes.ExecTxResult, len(req.Txs))
	for i, stx := range req.Txs {
		result, err := app.deliverTx(ctx, st.Store(), blk, stx, false)
		if err != nil {
			// a decided block may still carry a tx that became invalid
			app.logger.Error("unexpected tx in block", "index", i, "err", err)
			result = failResult(errors.Wrap(ErrUnexpectedTxProcess, err.Error()))
		}
		res[i] = result
	}
	h, err := st.Update()
	if err != nil {
		app.logger.Error("state update hash fail", "err", err)
		return nil, err
	}
	return &abcitypes.ResponseFinalizeBlock{
		TxResults: res,
		AppHash:   h.Bytes(),
	}, nil
}

func (app *HACApp) Commit(ctx context.Context, commit *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	if app.st == nil {
		return nil, ErrUnexpectedTxProcess
	}
	h, err := app.db.SetState(app.st)
	if err != nil {
		return nil, err
	}
	app.logger.Info("Commit", "height", app.st.Height(), "hash", h.Hex())
	app.st = nil
	return &abcitypes.ResponseCommit{}, nil
}
