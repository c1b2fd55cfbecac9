package handler

import (
	"context"

	"github.com/calehh/hac-gov/tx"
	"github.com/calehh/hac-gov/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// RemoveVoterTxHandler only succeeds for the chain's own identity, so a
// signed remove_voter tx always fails. It is reached through an executed
// proposal.
type RemoveVoterTxHandler struct {
	logger cmtlog.Logger
}

func NewRemoveVoterTxHandler(logger cmtlog.Logger) *RemoveVoterTxHandler {
	return &RemoveVoterTxHandler{logger: logger.With("module", "removeVoterTx")}
}

func (h *RemoveVoterTxHandler) Process(ctx context.Context, env *Env, caller string, body any) (res *abcitypes.ExecTxResult, err error) {
	rtx, err := bodyAs[tx.RemoveVoterTx](body)
	if err != nil {
		return nil, err
	}
	weight, err := env.engine(h.logger).RemoveVoter(caller, rtx.Voter)
	if err != nil {
		return nil, err
	}
	res = &abcitypes.ExecTxResult{
		Events: []abcitypes.Event{types.EncodeEventRemoveVoter(&types.EventRemoveVoter{
			Voter:  rtx.Voter,
			Weight: weight,
		})},
	}
	return
}
