package handler

import (
	"context"

	"github.com/calehh/hac-gov/tx"
	"github.com/calehh/hac-gov/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

type CloseProposalTxHandler struct {
	logger cmtlog.Logger
}

func NewCloseProposalTxHandler(logger cmtlog.Logger) *CloseProposalTxHandler {
	return &CloseProposalTxHandler{logger: logger.With("module", "closeTx")}
}

func (h *CloseProposalTxHandler) Process(ctx context.Context, env *Env, caller string, body any) (res *abcitypes.ExecTxResult, err error) {
	closeTx, err := bodyAs[tx.CloseProposalTx](body)
	if err != nil {
		return nil, err
	}
	p, err := env.engine(h.logger).CloseProposal(caller, closeTx.Proposal)
	if err != nil {
		return nil, err
	}
	res = &abcitypes.ExecTxResult{
		Events: []abcitypes.Event{types.EncodeEventSettleProposal(types.EventCloseProposalType, &types.EventSettleProposal{
			Proposal: p.ID,
			Sender:   caller,
			Status:   uint64(p.Status),
		})},
	}
	return
}
