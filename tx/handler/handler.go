package handler

import (
	"context"
	"fmt"

	"github.com/calehh/hac-gov/gov"
	"github.com/calehh/hac-gov/state"
	"github.com/calehh/hac-gov/tx"
	"github.com/calehh/hac-gov/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/pkg/errors"
)

// MaxDispatchDepth bounds how deep self-targeted actions may nest.
const MaxDispatchDepth = 4

var ErrDispatchTooDeep = errors.New("self dispatch too deep")

// Env is what a handler sees for one invocation: the write buffer of the
// enclosing tx, the block clock and the nesting depth of self dispatch.
type Env struct {
	Store state.KVStore
	Block types.BlockInfo
	Depth int
}

func (e *Env) engine(logger cmtlog.Logger) *gov.Engine {
	return gov.NewEngine(e.Store, e.Block, logger)
}

type TxHandler interface {
	Process(ctx context.Context, env *Env, caller string, body any) (res *abcitypes.ExecTxResult, err error)
}

// Router dispatches a decoded tx body to the handler of its type.
type Router struct {
	logger   cmtlog.Logger
	handlers map[tx.GovTxType]TxHandler
}

func NewRouter(logger cmtlog.Logger) *Router {
	r := &Router{
		logger:   logger.With("module", "router"),
		handlers: make(map[tx.GovTxType]TxHandler),
	}
	r.handlers[tx.GovTxTypeCreateProposal] = NewCreateProposalTxHandler(logger)
	r.handlers[tx.GovTxTypeVote] = NewVoteTxHandler(logger)
	r.handlers[tx.GovTxTypeExecuteProposal] = NewExecuteProposalTxHandler(logger, r)
	r.handlers[tx.GovTxTypeCloseProposal] = NewCloseProposalTxHandler(logger)
	r.handlers[tx.GovTxTypeRemoveVoter] = NewRemoveVoterTxHandler(logger)
	return r
}

func (r *Router) Dispatch(ctx context.Context, env *Env, caller string, tp tx.GovTxType, body any) (*abcitypes.ExecTxResult, error) {
	h, ok := r.handlers[tp]
	if !ok {
		return nil, tx.ErrUnsupportedTxType
	}
	return h.Process(ctx, env, caller, body)
}

// Deliver runs a signed tx as its sender.
func (r *Router) Deliver(ctx context.Context, env *Env, btx *tx.GovTx) (*abcitypes.ExecTxResult, error) {
	return r.Dispatch(ctx, env, btx.Sender(), btx.Type, btx.Tx)
}

// dispatchSelf runs an executed action that targets the chain itself with
// the chain's own identity as caller.
func (r *Router) dispatchSelf(ctx context.Context, env *Env, act types.Action) (*abcitypes.ExecTxResult, error) {
	if env.Depth >= MaxDispatchDepth {
		return nil, ErrDispatchTooDeep
	}
	tp := tx.GovTxType(act.Type)
	body, err := tx.UnmarshalBody(tp, act.Payload)
	if err != nil {
		return nil, errors.Wrapf(err, "decode self action %s", tp)
	}
	child := &Env{Store: env.Store, Block: env.Block, Depth: env.Depth + 1}
	r.logger.Debug("dispatch self action", "type", tp.String(), "depth", child.Depth)
	return r.Dispatch(ctx, child, types.SelfAddress, tp, body)
}

func bodyAs[T any](body any) (*T, error) {
	b, ok := body.(*T)
	if !ok {
		return nil, errors.Wrap(tx.ErrUnmatchedTxType, fmt.Sprintf("%T", body))
	}
	return b, nil
}
