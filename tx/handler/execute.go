package handler

import (
	"context"
	"encoding/json"

	"github.com/calehh/hac-gov/tx"
	"github.com/calehh/hac-gov/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/pkg/errors"
)

type ExecuteProposalTxHandler struct {
	logger cmtlog.Logger
	router *Router
}

func NewExecuteProposalTxHandler(logger cmtlog.Logger, router *Router) *ExecuteProposalTxHandler {
	return &ExecuteProposalTxHandler{
		logger: logger.With("module", "executeTx"),
		router: router,
	}
}

// Process executes the proposal and forwards its actions in order. Actions
// aimed at the chain run here inside the same tx; the rest leave as action
// events for off-chain consumers.
func (h *ExecuteProposalTxHandler) Process(ctx context.Context, env *Env, caller string, body any) (res *abcitypes.ExecTxResult, err error) {
	etx, err := bodyAs[tx.ExecuteProposalTx](body)
	if err != nil {
		return nil, err
	}
	p, err := env.engine(h.logger).ExecuteProposal(caller, etx.Proposal)
	if err != nil {
		return nil, err
	}
	res = &abcitypes.ExecTxResult{
		Events: []abcitypes.Event{types.EncodeEventSettleProposal(types.EventExecuteProposalType, &types.EventSettleProposal{
			Proposal: p.ID,
			Sender:   caller,
			Status:   uint64(p.Status),
		})},
	}
	for i, act := range p.Msgs {
		if act.Target == types.SelfAddress {
			sub, err := h.router.dispatchSelf(ctx, env, act)
			if err != nil {
				return nil, errors.Wrapf(err, "proposal %d action %d", p.ID, i)
			}
			res.Events = append(res.Events, sub.Events...)
			continue
		}
		res.Events = append(res.Events, types.EncodeEventAction(&types.EventAction{
			Proposal: p.ID,
			Index:    uint64(i),
			Target:   act.Target,
			Type:     uint64(act.Type),
			Payload:  act.Payload,
		}))
	}
	res.Data, err = json.Marshal(p.Msgs)
	return
}
