package gov

import (
	"github.com/calehh/hac-gov/types"
)

// yesNeeded is the yes weight a proposal needs with the current tally.
// Abstentions only lower it, so it never grows as votes arrive.
func yesNeeded(p *types.Proposal) uint64 {
	t := p.Threshold
	switch {
	case t.AbsoluteCount != nil:
		return t.AbsoluteCount.Weight
	case t.AbsolutePercentage != nil:
		return types.VotesNeeded(p.TotalWeight, t.AbsolutePercentage.Percentage)
	case t.ThresholdQuorum != nil:
		base := uint64(0)
		if p.TotalWeight > p.Votes.Abstain {
			base = p.TotalWeight - p.Votes.Abstain
		}
		return types.VotesNeeded(base, t.ThresholdQuorum.Threshold)
	}
	return p.TotalWeight + 1
}

func quorumReached(p *types.Proposal) bool {
	t := p.Threshold.ThresholdQuorum
	if t == nil {
		return true
	}
	return p.Votes.Total() >= types.VotesNeeded(p.TotalWeight, t.Quorum)
}

// remaining is the weight that has not voted yet. Removing voters never
// changes the snapshot, so a tally can exceed it.
func remaining(p *types.Proposal) uint64 {
	cast := p.Votes.Total()
	if cast >= p.TotalWeight {
		return 0
	}
	return p.TotalWeight - cast
}

func IsPassed(p *types.Proposal) bool {
	return quorumReached(p) && p.Votes.Yes >= yesNeeded(p)
}

// IsRejected reports that yes can no longer reach the requirement even if
// every remaining weight votes yes.
func IsRejected(p *types.Proposal) bool {
	return p.Votes.Yes+remaining(p) < yesNeeded(p)
}

// EvalStatus derives the status from the tally. Only Open moves.
func EvalStatus(p *types.Proposal) types.ProposalStatus {
	if p.Status != types.ProposalStatusOpen {
		return p.Status
	}
	switch {
	case IsPassed(p):
		return types.ProposalStatusPassed
	case IsRejected(p):
		return types.ProposalStatusRejected
	}
	return types.ProposalStatusOpen
}

func updateStatus(p *types.Proposal) {
	p.Status = EvalStatus(p)
}
