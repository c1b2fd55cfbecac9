package gov

import (
	"github.com/calehh/hac-gov/state"
	"github.com/calehh/hac-gov/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/pkg/errors"
)

// ProposeMsg carries the inputs of CreateProposal. A nil Expires falls back
// to the configured voting period.
type ProposeMsg struct {
	Title       string
	Description string
	Msgs        []types.Action
	Expires     *types.Expiration
	Deposit     *types.DepositInfo
}

// Engine runs one governance invocation against store as of blk. Callers
// hand it a write buffer and drop the buffer when an operation fails.
type Engine struct {
	logger cmtlog.Logger
	store  state.KVStore
	blk    types.BlockInfo
}

func NewEngine(store state.KVStore, blk types.BlockInfo, logger cmtlog.Logger) *Engine {
	return &Engine{
		logger: logger.With("module", "gov"),
		store:  store,
		blk:    blk,
	}
}

func (e *Engine) Block() types.BlockInfo {
	return e.blk
}

func (e *Engine) Instantiate(msg *types.InstantiateMsg) error {
	total, err := ValidateInstantiate(msg)
	if err != nil {
		return err
	}
	cfg := &types.Config{
		Threshold:       msg.Threshold,
		TotalWeight:     total,
		MaxVotingPeriod: msg.MaxVotingPeriod,
	}
	if err = setJSON(e.store, KeyConfig, cfg); err != nil {
		return err
	}
	for _, v := range msg.Voters {
		if err = setWeight(e.store, v.Addr, v.Weight); err != nil {
			return err
		}
	}
	info := &types.ContractInfo{Name: ContractName, Version: ContractVersion}
	if err = setJSON(e.store, KeyContractInfo, info); err != nil {
		return err
	}
	e.logger.Info("instantiated", "voters", len(msg.Voters), "total_weight", total, "threshold", cfg.Threshold.String())
	return nil
}

func (e *Engine) CreateProposal(caller string, msg *ProposeMsg) (*types.Proposal, error) {
	weight, _, err := GetWeight(e.store, caller)
	if err != nil {
		return nil, err
	}
	if weight < 1 {
		return nil, errors.Wrapf(ErrUnauthorized, "%s is not a voter", caller)
	}
	if msg.Title == "" {
		return nil, errors.Wrap(ErrInvalidProposal, "proposal title is empty")
	}
	cfg, err := GetConfig(e.store)
	if err != nil {
		return nil, err
	}
	expires := cfg.MaxVotingPeriod.After(e.blk)
	if msg.Expires != nil {
		if err = msg.Expires.Validate(); err != nil {
			return nil, errors.Wrap(ErrInvalidProposal, err.Error())
		}
		expires = *msg.Expires
	}
	id, err := nextID(e.store)
	if err != nil {
		return nil, err
	}
	msgs := msg.Msgs
	if msgs == nil {
		msgs = []types.Action{}
	}
	p := &types.Proposal{
		ID:          id,
		Title:       msg.Title,
		Description: msg.Description,
		Proposer:    caller,
		StartHeight: e.blk.Height,
		Msgs:        msgs,
		TotalWeight: cfg.TotalWeight,
		Threshold:   cfg.Threshold,
		Status:      types.ProposalStatusOpen,
		Expires:     expires,
		Deposit:     msg.Deposit,
	}
	if err = e.applyBallot(p, caller, weight, types.VoteYes); err != nil {
		return nil, err
	}
	e.logger.Debug("proposal created", "id", id, "proposer", caller, "expires", expires.String(), "status", p.Status.String())
	return p, nil
}

// applyBallot records a ballot, adds it to the tally and stores the
// re-evaluated proposal. Both the proposer's implicit yes and every
// explicit vote go through here.
func (e *Engine) applyBallot(p *types.Proposal, voter string, weight uint64, vote types.Vote) error {
	err := saveBallot(e.store, p.ID, voter, &types.Ballot{Weight: weight, Vote: vote})
	if err != nil {
		return err
	}
	p.Votes.Add(vote, weight)
	updateStatus(p)
	return saveProposal(e.store, p)
}

func (e *Engine) CastVote(caller string, id uint64, vote types.Vote) (*types.Proposal, *types.Ballot, error) {
	if !vote.Valid() {
		return nil, nil, errors.Wrap(ErrInvalidVote, vote.String())
	}
	p, err := LoadProposal(e.store, id)
	if err != nil {
		return nil, nil, err
	}
	if _, err = CanCastBallot(e.store, caller, id); err != nil {
		return nil, nil, err
	}
	if p.Expires.IsExpired(e.blk) {
		return nil, nil, errors.Wrapf(ErrExpired, "proposal %d expired at %s", id, p.Expires.String())
	}
	if p.Status != types.ProposalStatusOpen {
		return nil, nil, errors.Wrapf(ErrNotOpen, "proposal %d is %s", id, p.Status.String())
	}
	weight, _, err := GetWeight(e.store, caller)
	if err != nil {
		return nil, nil, err
	}
	if err = e.applyBallot(p, caller, weight, vote); err != nil {
		return nil, nil, err
	}
	e.logger.Debug("vote cast", "id", id, "voter", caller, "vote", vote.String(), "weight", weight, "status", p.Status.String())
	return p, &types.Ballot{Weight: weight, Vote: vote}, nil
}

// ExecuteProposal marks a passed proposal executed and returns it; the
// caller forwards p.Msgs. Anyone may execute.
func (e *Engine) ExecuteProposal(caller string, id uint64) (*types.Proposal, error) {
	p, err := LoadProposal(e.store, id)
	if err != nil {
		return nil, err
	}
	updateStatus(p)
	if p.Status != types.ProposalStatusPassed {
		return nil, errors.Wrapf(ErrNotPassed, "proposal %d is %s", id, p.Status.String())
	}
	if p.Expires.IsExpired(e.blk) {
		return nil, errors.Wrapf(ErrExpired, "proposal %d expired at %s", id, p.Expires.String())
	}
	p.Status = types.ProposalStatusExecuted
	if err = saveProposal(e.store, p); err != nil {
		return nil, err
	}
	e.logger.Info("proposal executed", "id", id, "sender", caller, "msgs", len(p.Msgs))
	return p, nil
}

// CloseProposal retires a passed proposal that expired without being
// executed. Only the proposer may close it.
func (e *Engine) CloseProposal(caller string, id uint64) (*types.Proposal, error) {
	p, err := LoadProposal(e.store, id)
	if err != nil {
		return nil, err
	}
	if p.Proposer != caller {
		return nil, errors.Wrapf(ErrUnauthorized, "%s is not the proposer", caller)
	}
	updateStatus(p)
	if p.Status != types.ProposalStatusPassed {
		return nil, errors.Wrapf(ErrNotPassed, "proposal %d is %s", id, p.Status.String())
	}
	if !p.Expires.IsExpired(e.blk) {
		return nil, errors.Wrapf(ErrNotExpired, "proposal %d expires at %s", id, p.Expires.String())
	}
	p.Status = types.ProposalStatusRejected
	if err = saveProposal(e.store, p); err != nil {
		return nil, err
	}
	e.logger.Info("proposal closed", "id", id)
	return p, nil
}

// RemoveVoter deletes voter from the registry. Config and open proposals
// keep their total weight.
func (e *Engine) RemoveVoter(caller, voter string) (weight uint64, err error) {
	if caller != types.SelfAddress {
		return 0, errors.Wrapf(ErrUnauthorized, "%s cannot remove voters", caller)
	}
	weight, found, err := GetWeight(e.store, voter)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, errors.Wrapf(ErrNotFound, "voter %s", voter)
	}
	if err = removeWeight(e.store, voter); err != nil {
		return 0, err
	}
	e.logger.Info("voter removed", "voter", voter, "weight", weight)
	return weight, nil
}

// GetProposal returns the proposal with its status re-evaluated and the
// expiration overlaid as of the engine's block. Nothing is written.
func (e *Engine) GetProposal(id uint64) (*types.ProposalResponse, error) {
	p, err := LoadProposal(e.store, id)
	if err != nil {
		return nil, err
	}
	updateStatus(p)
	return &types.ProposalResponse{
		Proposal: *p,
		Expired:  p.Expires.IsExpired(e.blk),
	}, nil
}

func (e *Engine) GetCurrentID() (uint64, error) {
	return CurrentID(e.store)
}
