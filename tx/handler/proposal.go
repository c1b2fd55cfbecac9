package handler

import (
	"context"
	"strconv"

	"github.com/calehh/hac-gov/gov"
	"github.com/calehh/hac-gov/tx"
	"github.com/calehh/hac-gov/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

type CreateProposalTxHandler struct {
	logger cmtlog.Logger
}

func NewCreateProposalTxHandler(logger cmtlog.Logger) (h *CreateProposalTxHandler) {
	h = &CreateProposalTxHandler{
		logger: logger.With("module", "proposalTx"),
	}
	return
}

func (h *CreateProposalTxHandler) Process(ctx context.Context, env *Env, caller string, body any) (res *abcitypes.ExecTxResult, err error) {
	ptx, err := bodyAs[tx.CreateProposalTx](body)
	if err != nil {
		return nil, err
	}
	p, err := env.engine(h.logger).CreateProposal(caller, &gov.ProposeMsg{
		Title:       ptx.Title,
		Description: ptx.Description,
		Msgs:        ptx.Msgs,
		Expires:     ptx.Expires,
		Deposit:     ptx.Deposit,
	})
	if err != nil {
		return nil, err
	}
	res = &abcitypes.ExecTxResult{
		Data: []byte(strconv.FormatUint(p.ID, 10)),
		Events: []abcitypes.Event{types.EncodeEventProposal(&types.EventProposal{
			Proposal: p.ID,
			Proposer: caller,
			Title:    p.Title,
			Expires:  p.Expires.String(),
			Status:   uint64(p.Status),
			Msgs:     uint64(len(p.Msgs)),
		}), types.EncodeEventVote(&types.EventVote{
			Proposal: p.ID,
			Voter:    caller,
			Vote:     uint64(types.VoteYes),
			Weight:   p.Votes.Yes,
			Status:   uint64(p.Status),
		})},
	}
	return
}
