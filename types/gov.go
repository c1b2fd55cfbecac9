package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/cometbft/cometbft/crypto"
)

const GovModuleName = "hacgov"

// SelfAddress is the identity the chain uses when it dispatches a
// downstream action back to itself. No key can sign for it.
var SelfAddress = crypto.AddressHash([]byte(GovModuleName)).String()

// BlockInfo is the clock the engine evaluates expirations against.
type BlockInfo struct {
	Height uint64    `json:"height"`
	Time   time.Time `json:"time"`
}

type Voter struct {
	Addr   string `json:"addr"`
	Weight uint64 `json:"weight"`
}

type Vote uint8

const (
	VoteYes Vote = iota + 1
	VoteNo
	VoteAbstain
	VoteVeto
)

func (v Vote) String() string {
	switch v {
	case VoteYes:
		return "yes"
	case VoteNo:
		return "no"
	case VoteAbstain:
		return "abstain"
	case VoteVeto:
		return "veto"
	}
	return fmt.Sprintf("vote(%d)", uint8(v))
}

func (v Vote) Valid() bool {
	return v >= VoteYes && v <= VoteVeto
}

func ParseVote(s string) (Vote, error) {
	switch strings.ToLower(s) {
	case "yes":
		return VoteYes, nil
	case "no":
		return VoteNo, nil
	case "abstain":
		return VoteAbstain, nil
	case "veto":
		return VoteVeto, nil
	}
	return 0, fmt.Errorf("unknown vote %q", s)
}

type Votes struct {
	Yes     uint64 `json:"yes"`
	No      uint64 `json:"no"`
	Abstain uint64 `json:"abstain"`
	Veto    uint64 `json:"veto"`
}

func (v *Votes) Total() uint64 {
	return v.Yes + v.No + v.Abstain + v.Veto
}

func (v *Votes) Add(vote Vote, weight uint64) {
	switch vote {
	case VoteYes:
		v.Yes += weight
	case VoteNo:
		v.No += weight
	case VoteAbstain:
		v.Abstain += weight
	case VoteVeto:
		v.Veto += weight
	}
}

type Ballot struct {
	Weight uint64 `json:"weight"`
	Vote   Vote   `json:"vote"`
}

type ProposalStatus uint8

const (
	ProposalStatusOpen     ProposalStatus = 1
	ProposalStatusPassed   ProposalStatus = 2
	ProposalStatusRejected ProposalStatus = 3
	ProposalStatusExecuted ProposalStatus = 4
)

func (s ProposalStatus) String() string {
	switch s {
	case ProposalStatusOpen:
		return "open"
	case ProposalStatusPassed:
		return "passed"
	case ProposalStatusRejected:
		return "rejected"
	case ProposalStatusExecuted:
		return "executed"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Decimal is a non-negative fraction written in decimal notation, e.g. "0.51".
type Decimal string

func (d Decimal) Rat() (*big.Rat, error) {
	r, ok := new(big.Rat).SetString(string(d))
	if !ok {
		return nil, fmt.Errorf("invalid decimal %q", string(d))
	}
	return r, nil
}

// VotesNeeded is ceil(weight * d).
func VotesNeeded(weight uint64, d Decimal) uint64 {
	r, err := d.Rat()
	if err != nil {
		return weight + 1
	}
	num := new(big.Int).Mul(new(big.Int).SetUint64(weight), r.Num())
	q, m := new(big.Int).QuoRem(num, r.Denom(), new(big.Int))
	if m.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q.Uint64()
}

type AbsoluteCount struct {
	Weight uint64 `json:"weight"`
}

type AbsolutePercentage struct {
	Percentage Decimal `json:"percentage"`
}

type ThresholdQuorum struct {
	Threshold Decimal `json:"threshold"`
	Quorum    Decimal `json:"quorum"`
}

// Threshold holds exactly one policy.
type Threshold struct {
	AbsoluteCount      *AbsoluteCount      `json:"absolute_count,omitempty"`
	AbsolutePercentage *AbsolutePercentage `json:"absolute_percentage,omitempty"`
	ThresholdQuorum    *ThresholdQuorum    `json:"threshold_quorum,omitempty"`
}

var (
	ErrThresholdEmpty      = errors.New("threshold policy is empty")
	ErrThresholdAmbiguous  = errors.New("more than one threshold policy")
	ErrThresholdZero       = errors.New("threshold weight cannot be zero")
	ErrThresholdUnreached  = errors.New("threshold weight exceeds total weight")
	ErrInvalidPercentage   = errors.New("percentage must be in (0, 1]")
	ErrDurationEmpty       = errors.New("voting period is empty")
	ErrDurationAmbiguous   = errors.New("voting period sets both height and time")
	ErrDurationTooLong     = errors.New("voting period too long")
	ErrExpirationAmbiguous = errors.New("expiration sets both height and time")
)

func validPercentage(d Decimal) error {
	r, err := d.Rat()
	if err != nil {
		return err
	}
	if r.Sign() <= 0 || r.Cmp(big.NewRat(1, 1)) > 0 {
		return ErrInvalidPercentage
	}
	return nil
}

func (t *Threshold) Validate(totalWeight uint64) error {
	n := 0
	if t.AbsoluteCount != nil {
		n++
	}
	if t.AbsolutePercentage != nil {
		n++
	}
	if t.ThresholdQuorum != nil {
		n++
	}
	switch {
	case n == 0:
		return ErrThresholdEmpty
	case n > 1:
		return ErrThresholdAmbiguous
	}
	switch {
	case t.AbsoluteCount != nil:
		if t.AbsoluteCount.Weight == 0 {
			return ErrThresholdZero
		}
		if t.AbsoluteCount.Weight > totalWeight {
			return ErrThresholdUnreached
		}
	case t.AbsolutePercentage != nil:
		return validPercentage(t.AbsolutePercentage.Percentage)
	case t.ThresholdQuorum != nil:
		if err := validPercentage(t.ThresholdQuorum.Threshold); err != nil {
			return err
		}
		return validPercentage(t.ThresholdQuorum.Quorum)
	}
	return nil
}

func (t Threshold) String() string {
	switch {
	case t.AbsoluteCount != nil:
		return fmt.Sprintf("absolute_count(%d)", t.AbsoluteCount.Weight)
	case t.AbsolutePercentage != nil:
		return fmt.Sprintf("absolute_percentage(%s)", t.AbsolutePercentage.Percentage)
	case t.ThresholdQuorum != nil:
		return fmt.Sprintf("threshold_quorum(%s,%s)", t.ThresholdQuorum.Threshold, t.ThresholdQuorum.Quorum)
	}
	return "none"
}

// Upper bounds of a voting period. Past them After would overflow and
// yield an expiration that is already reached.
const (
	MaxPeriodHeight  = math.MaxInt64 / 2
	MaxPeriodSeconds = math.MaxInt64 / int64(time.Second)
)

// Duration is either a number of blocks or a number of seconds.
type Duration struct {
	Height uint64 `json:"height,omitempty"`
	Time   uint64 `json:"time,omitempty"`
}

func (d *Duration) Validate() error {
	switch {
	case d.Height == 0 && d.Time == 0:
		return ErrDurationEmpty
	case d.Height != 0 && d.Time != 0:
		return ErrDurationAmbiguous
	case d.Height > MaxPeriodHeight:
		return fmt.Errorf("%w: %d blocks", ErrDurationTooLong, d.Height)
	case d.Time > uint64(MaxPeriodSeconds):
		return fmt.Errorf("%w: %d seconds", ErrDurationTooLong, d.Time)
	}
	return nil
}

func (d Duration) After(blk BlockInfo) Expiration {
	if d.Height != 0 {
		h := blk.Height + d.Height
		return Expiration{AtHeight: &h}
	}
	t := blk.Time.Add(time.Duration(d.Time) * time.Second).UTC()
	return Expiration{AtTime: &t}
}

// Expiration is AtHeight, AtTime or, when both are unset, never.
type Expiration struct {
	AtHeight *uint64    `json:"at_height,omitempty"`
	AtTime   *time.Time `json:"at_time,omitempty"`
}

func ExpireAtHeight(h uint64) Expiration {
	return Expiration{AtHeight: &h}
}

func ExpireAtTime(t time.Time) Expiration {
	t = t.UTC()
	return Expiration{AtTime: &t}
}

func (e Expiration) Validate() error {
	if e.AtHeight != nil && e.AtTime != nil {
		return ErrExpirationAmbiguous
	}
	return nil
}

func (e Expiration) Never() bool {
	return e.AtHeight == nil && e.AtTime == nil
}

func (e Expiration) IsExpired(blk BlockInfo) bool {
	switch {
	case e.AtHeight != nil:
		return blk.Height >= *e.AtHeight
	case e.AtTime != nil:
		return !blk.Time.Before(*e.AtTime)
	}
	return false
}

func (e Expiration) String() string {
	switch {
	case e.AtHeight != nil:
		return fmt.Sprintf("height:%d", *e.AtHeight)
	case e.AtTime != nil:
		return "time:" + e.AtTime.Format(time.RFC3339)
	}
	return "never"
}

type Config struct {
	Threshold       Threshold `json:"threshold"`
	TotalWeight     uint64    `json:"total_weight"`
	MaxVotingPeriod Duration  `json:"max_voting_period"`
}

type ContractInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Action is forwarded untouched once its proposal executes.
type Action struct {
	Target  string          `json:"target"`
	Type    uint8           `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type DepositInfo struct {
	Amount     uint64 `json:"amount"`
	Denom      string `json:"denom"`
	Refundable bool   `json:"refundable"`
}

type Proposal struct {
	ID          uint64         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Proposer    string         `json:"proposer"`
	StartHeight uint64         `json:"start_height"`
	Msgs        []Action       `json:"msgs"`
	TotalWeight uint64         `json:"total_weight"`
	Threshold   Threshold      `json:"threshold"`
	Votes       Votes          `json:"votes"`
	Status      ProposalStatus `json:"status"`
	Expires     Expiration     `json:"expires"`
	Deposit     *DepositInfo   `json:"deposit,omitempty"`
}

// ProposalResponse is a proposal as seen at a given block: Status is
// re-evaluated and Expired is overlaid, neither is written back.
type ProposalResponse struct {
	Proposal
	Expired bool `json:"expired"`
}

type InstantiateMsg struct {
	Voters          []Voter   `json:"voters"`
	Threshold       Threshold `json:"threshold"`
	MaxVotingPeriod Duration  `json:"max_voting_period"`
}
