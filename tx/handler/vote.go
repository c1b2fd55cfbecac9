package handler

import (
	"context"

	"github.com/calehh/hac-gov/tx"
	"github.com/calehh/hac-gov/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

type VoteTxHandler struct {
	logger cmtlog.Logger
}

func NewVoteTxHandler(logger cmtlog.Logger) *VoteTxHandler {
	return &VoteTxHandler{logger: logger.With("module", "voteTx")}
}

func (h *VoteTxHandler) Process(ctx context.Context, env *Env, caller string, body any) (res *abcitypes.ExecTxResult, err error) {
	vtx, err := bodyAs[tx.VoteTx](body)
	if err != nil {
		return nil, err
	}
	p, ballot, err := env.engine(h.logger).CastVote(caller, vtx.Proposal, vtx.Vote)
	if err != nil {
		return nil, err
	}
	res = &abcitypes.ExecTxResult{
		Events: []abcitypes.Event{types.EncodeEventVote(&types.EventVote{
			Proposal: p.ID,
			Voter:    caller,
			Vote:     uint64(ballot.Vote),
			Weight:   ballot.Weight,
			Status:   uint64(p.Status),
		})},
	}
	return
}
