package gov

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/calehh/hac-gov/state"
	"github.com/calehh/hac-gov/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var genesisTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func voterAddr(i int) string {
	return fmt.Sprintf("voter%d", i)
}

// sixVoters registers voter1..voter6 with weights 1..6, total 21.
func sixVoters(threshold types.Threshold) *types.InstantiateMsg {
	msg := &types.InstantiateMsg{
		Threshold:       threshold,
		MaxVotingPeriod: types.Duration{Time: 2000},
	}
	for i := 1; i <= 6; i++ {
		msg.Voters = append(msg.Voters, types.Voter{Addr: voterAddr(i), Weight: uint64(i)})
	}
	return msg
}

func percent(p string) types.Threshold {
	return types.Threshold{AbsolutePercentage: &types.AbsolutePercentage{Percentage: types.Decimal(p)}}
}

type testChain struct {
	t     *testing.T
	store *state.Cache
	blk   types.BlockInfo
}

func newTestChain(t *testing.T, msg *types.InstantiateMsg) *testChain {
	c := &testChain{
		t:     t,
		store: state.NewCache(nil),
		blk:   types.BlockInfo{Height: 1, Time: genesisTime},
	}
	require.NoError(t, c.engine().Instantiate(msg))
	return c
}

func (c *testChain) engine() *Engine {
	return NewEngine(c.store, c.blk, cmtlog.NewNopLogger())
}

func (c *testChain) advance(blocks uint64, d time.Duration) {
	c.blk.Height += blocks
	c.blk.Time = c.blk.Time.Add(d)
}

func (c *testChain) propose(caller string, expires *types.Expiration) *types.Proposal {
	p, err := c.engine().CreateProposal(caller, &ProposeMsg{
		Title:       "pay the auditors",
		Description: "release the audit budget",
		Msgs: []types.Action{
			{Target: "treasury", Type: 1, Payload: []byte(`{"amount":100}`)},
		},
		Expires: expires,
	})
	require.NoError(c.t, err)
	return p
}

func (c *testChain) vote(caller string, id uint64, v types.Vote) error {
	_, _, err := c.engine().CastVote(caller, id, v)
	return err
}

func (c *testChain) status(id uint64) types.ProposalStatus {
	resp, err := c.engine().GetProposal(id)
	require.NoError(c.t, err)
	return resp.Status
}

func TestPercentageProposalPassesAndExecutes(t *testing.T) {
	c := newTestChain(t, sixVoters(percent("0.51")))

	p := c.propose(voterAddr(1), nil)
	require.Equal(t, uint64(1), p.ID)
	assert.Equal(t, uint64(1), p.Votes.Yes)
	assert.Equal(t, uint64(21), p.TotalWeight)
	assert.Equal(t, types.ProposalStatusOpen, p.Status)
	require.NotNil(t, p.Expires.AtTime)
	assert.True(t, p.Expires.AtTime.Equal(genesisTime.Add(2000*time.Second)))

	require.NoError(t, c.vote(voterAddr(2), p.ID, types.VoteNo))
	require.NoError(t, c.vote(voterAddr(6), p.ID, types.VoteYes))
	assert.Equal(t, types.ProposalStatusOpen, c.status(p.ID))
	require.NoError(t, c.vote(voterAddr(5), p.ID, types.VoteYes))
	assert.Equal(t, types.ProposalStatusPassed, c.status(p.ID))

	executed, err := c.engine().ExecuteProposal(voterAddr(3), p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ProposalStatusExecuted, executed.Status)
	require.Len(t, executed.Msgs, 1)
	assert.Equal(t, "treasury", executed.Msgs[0].Target)
	assert.JSONEq(t, `{"amount":100}`, string(executed.Msgs[0].Payload))

	resp, err := c.engine().GetProposal(p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Votes{Yes: 12, No: 2}, resp.Votes)
	assert.Equal(t, types.ProposalStatusExecuted, resp.Status)
}

func TestNonVoterCannotVote(t *testing.T) {
	c := newTestChain(t, sixVoters(percent("0.51")))
	p := c.propose(voterAddr(1), nil)

	err := c.vote(voterAddr(7), p.ID, types.VoteYes)
	assert.True(t, errors.Is(err, ErrUnauthorized))

	_, err = c.engine().CreateProposal(voterAddr(7), &ProposeMsg{Title: "t"})
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestZeroWeightVoterIsNotVoter(t *testing.T) {
	msg := sixVoters(percent("0.51"))
	msg.Voters = append(msg.Voters, types.Voter{Addr: "idle", Weight: 0})
	c := newTestChain(t, msg)

	ok, err := IsVoter(c.store, "idle")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.engine().CreateProposal("idle", &ProposeMsg{Title: "t"})
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestDoubleVote(t *testing.T) {
	c := newTestChain(t, sixVoters(percent("0.51")))
	p := c.propose(voterAddr(1), nil)

	require.NoError(t, c.vote(voterAddr(2), p.ID, types.VoteNo))
	err := c.vote(voterAddr(2), p.ID, types.VoteYes)
	assert.True(t, errors.Is(err, ErrAlreadyVoted))

	err = c.vote(voterAddr(1), p.ID, types.VoteNo)
	assert.True(t, errors.Is(err, ErrAlreadyVoted), "proposer already holds an implicit yes")

	b, err := GetBallot(c.store, p.ID, voterAddr(2))
	require.NoError(t, err)
	assert.Equal(t, &types.Ballot{Weight: 2, Vote: types.VoteNo}, b)
}

func TestVoteAfterExpiration(t *testing.T) {
	c := newTestChain(t, sixVoters(percent("0.51")))
	exp := types.ExpireAtTime(c.blk.Time.Add(time.Second))
	p := c.propose(voterAddr(6), &exp)
	require.NoError(t, c.vote(voterAddr(4), p.ID, types.VoteYes))

	c.advance(1, 2*time.Second)
	err := c.vote(voterAddr(5), p.ID, types.VoteYes)
	assert.True(t, errors.Is(err, ErrExpired))

	resp, err := c.engine().GetProposal(p.ID)
	require.NoError(t, err)
	assert.True(t, resp.Expired)
	assert.Equal(t, types.ProposalStatusOpen, resp.Status)
	assert.Equal(t, uint64(10), resp.Votes.Yes)
}

func TestCloseExpiredPassedProposal(t *testing.T) {
	c := newTestChain(t, sixVoters(percent("0.51")))
	exp := types.ExpireAtHeight(c.blk.Height + 10)
	p := c.propose(voterAddr(6), &exp)
	require.NoError(t, c.vote(voterAddr(5), p.ID, types.VoteYes))
	require.Equal(t, types.ProposalStatusPassed, c.status(p.ID))

	_, err := c.engine().CloseProposal(voterAddr(6), p.ID)
	assert.True(t, errors.Is(err, ErrNotExpired))

	c.advance(10, time.Minute)
	_, err = c.engine().CloseProposal(voterAddr(5), p.ID)
	assert.True(t, errors.Is(err, ErrUnauthorized))

	_, err = c.engine().ExecuteProposal(voterAddr(6), p.ID)
	assert.True(t, errors.Is(err, ErrExpired))

	closed, err := c.engine().CloseProposal(voterAddr(6), p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ProposalStatusRejected, closed.Status)

	_, err = c.engine().ExecuteProposal(voterAddr(6), p.ID)
	assert.True(t, errors.Is(err, ErrNotPassed))
}

func TestCloseRequiresPassed(t *testing.T) {
	c := newTestChain(t, sixVoters(percent("0.51")))
	exp := types.ExpireAtHeight(c.blk.Height + 1)
	p := c.propose(voterAddr(1), &exp)
	c.advance(5, time.Minute)

	_, err := c.engine().CloseProposal(voterAddr(1), p.ID)
	assert.True(t, errors.Is(err, ErrNotPassed))

	_, err = c.engine().CloseProposal(voterAddr(1), 99)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestProposalRejectedWhenUnreachable(t *testing.T) {
	c := newTestChain(t, sixVoters(percent("0.51")))
	p := c.propose(voterAddr(1), nil)

	require.NoError(t, c.vote(voterAddr(6), p.ID, types.VoteNo))
	require.NoError(t, c.vote(voterAddr(4), p.ID, types.VoteVeto))
	assert.Equal(t, types.ProposalStatusOpen, c.status(p.ID))
	// yes 1, remaining 7: cannot reach 11
	require.NoError(t, c.vote(voterAddr(3), p.ID, types.VoteAbstain))
	assert.Equal(t, types.ProposalStatusRejected, c.status(p.ID))

	err := c.vote(voterAddr(2), p.ID, types.VoteYes)
	assert.True(t, errors.Is(err, ErrNotOpen))

	_, err = c.engine().ExecuteProposal(voterAddr(1), p.ID)
	assert.True(t, errors.Is(err, ErrNotPassed))
}

func TestNoVotesAfterPassed(t *testing.T) {
	c := newTestChain(t, sixVoters(percent("0.51")))
	p := c.propose(voterAddr(6), nil)
	require.NoError(t, c.vote(voterAddr(5), p.ID, types.VoteYes))
	require.Equal(t, types.ProposalStatusPassed, c.status(p.ID))

	err := c.vote(voterAddr(4), p.ID, types.VoteNo)
	assert.True(t, errors.Is(err, ErrNotOpen))
	b, err := GetBallot(c.store, p.ID, voterAddr(4))
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestProposerWeightAlonePasses(t *testing.T) {
	c := newTestChain(t, sixVoters(types.Threshold{AbsoluteCount: &types.AbsoluteCount{Weight: 6}}))
	p := c.propose(voterAddr(6), nil)
	assert.Equal(t, types.ProposalStatusPassed, p.Status)

	q := c.propose(voterAddr(5), nil)
	assert.Equal(t, types.ProposalStatusOpen, q.Status)
	assert.Equal(t, uint64(2), q.ID)
}

func TestThresholdQuorum(t *testing.T) {
	c := newTestChain(t, sixVoters(types.Threshold{ThresholdQuorum: &types.ThresholdQuorum{
		Threshold: "0.5",
		Quorum:    "0.5",
	}}))
	p := c.propose(voterAddr(6), nil)
	require.NoError(t, c.vote(voterAddr(5), p.ID, types.VoteAbstain))
	// quorum of 11 reached, yes needs ceil(16 * 0.5) = 8
	assert.Equal(t, types.ProposalStatusOpen, c.status(p.ID))
	require.NoError(t, c.vote(voterAddr(2), p.ID, types.VoteYes))
	assert.Equal(t, types.ProposalStatusPassed, c.status(p.ID))
}

func TestSnapshotFrozenAtCreation(t *testing.T) {
	c := newTestChain(t, sixVoters(percent("0.51")))
	p := c.propose(voterAddr(1), nil)

	_, err := c.engine().RemoveVoter(types.SelfAddress, voterAddr(6))
	require.NoError(t, err)

	resp, err := c.engine().GetProposal(p.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(21), resp.TotalWeight)
	cfg, err := GetConfig(c.store)
	require.NoError(t, err)
	assert.Equal(t, uint64(21), cfg.TotalWeight)

	err = c.vote(voterAddr(6), p.ID, types.VoteYes)
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestRemoveVoterRequiresSelf(t *testing.T) {
	c := newTestChain(t, sixVoters(percent("0.51")))

	_, err := c.engine().RemoveVoter(voterAddr(6), voterAddr(1))
	assert.True(t, errors.Is(err, ErrUnauthorized))
	ok, err := IsVoter(c.store, voterAddr(1))
	require.NoError(t, err)
	assert.True(t, ok)

	w, err := c.engine().RemoveVoter(types.SelfAddress, voterAddr(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), w)
	_, found, err := GetWeight(c.store, voterAddr(1))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestProposalIDsIncrease(t *testing.T) {
	c := newTestChain(t, sixVoters(percent("0.51")))
	id, err := c.engine().GetCurrentID()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)

	var last uint64
	for i := 1; i <= 5; i++ {
		p := c.propose(voterAddr(i), nil)
		assert.Greater(t, p.ID, last)
		last = p.ID
	}
	id, err = c.engine().GetCurrentID()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), id)

	_, err = c.engine().GetProposal(6)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestTallyNeverExceedsTotal(t *testing.T) {
	c := newTestChain(t, sixVoters(percent("1")))
	p := c.propose(voterAddr(1), nil)
	for i := 2; i <= 6; i++ {
		require.NoError(t, c.vote(voterAddr(i), p.ID, types.VoteYes))
		resp, err := c.engine().GetProposal(p.ID)
		require.NoError(t, err)
		assert.LessOrEqual(t, resp.Votes.Total(), resp.TotalWeight)
	}
	assert.Equal(t, types.ProposalStatusPassed, c.status(p.ID))
}

func TestInvalidProposal(t *testing.T) {
	c := newTestChain(t, sixVoters(percent("0.51")))
	_, err := c.engine().CreateProposal(voterAddr(1), &ProposeMsg{})
	assert.True(t, errors.Is(err, ErrInvalidProposal))

	_, _, err = c.engine().CastVote(voterAddr(2), 1, types.Vote(9))
	assert.True(t, errors.Is(err, ErrInvalidVote))

	err = c.vote(voterAddr(2), 42, types.VoteYes)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAmbiguousExpirationRejected(t *testing.T) {
	c := newTestChain(t, sixVoters(percent("0.51")))
	h := uint64(100)
	at := time.Unix(1_800_000_000, 0).UTC()
	_, err := c.engine().CreateProposal(voterAddr(1), &ProposeMsg{
		Title:   "both deadlines",
		Expires: &types.Expiration{AtHeight: &h, AtTime: &at},
	})
	assert.True(t, errors.Is(err, ErrInvalidProposal), "got %v", err)

	id, err := c.engine().GetCurrentID()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)
}

func TestLongestPeriodStaysOpen(t *testing.T) {
	for _, period := range []types.Duration{
		{Time: uint64(types.MaxPeriodSeconds)},
		{Height: types.MaxPeriodHeight},
	} {
		msg := sixVoters(percent("0.51"))
		msg.MaxVotingPeriod = period
		c := newTestChain(t, msg)
		p := c.propose(voterAddr(6), nil)
		resp, err := c.engine().GetProposal(p.ID)
		require.NoError(t, err)
		assert.False(t, resp.Expired, "expires %s", p.Expires.String())
		require.NoError(t, c.vote(voterAddr(5), p.ID, types.VoteYes))
	}
}

func TestRemoveUnknownVoter(t *testing.T) {
	c := newTestChain(t, sixVoters(percent("0.51")))
	_, err := c.engine().RemoveVoter(types.SelfAddress, "stranger")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	_, err = c.engine().RemoveVoter(types.SelfAddress, voterAddr(2))
	require.NoError(t, err)
	_, err = c.engine().RemoveVoter(types.SelfAddress, voterAddr(2))
	assert.True(t, errors.Is(err, ErrNotFound), "removed twice")
}

func TestInstantiateValidation(t *testing.T) {
	cases := []struct {
		name string
		edit func(*types.InstantiateMsg)
	}{
		{"no voters", func(m *types.InstantiateMsg) { m.Voters = nil }},
		{"duplicate voter", func(m *types.InstantiateMsg) { m.Voters[1].Addr = m.Voters[0].Addr }},
		{"empty address", func(m *types.InstantiateMsg) { m.Voters[0].Addr = "" }},
		{"zero total", func(m *types.InstantiateMsg) {
			for i := range m.Voters {
				m.Voters[i].Weight = 0
			}
		}},
		{"count above total", func(m *types.InstantiateMsg) {
			m.Threshold = types.Threshold{AbsoluteCount: &types.AbsoluteCount{Weight: 22}}
		}},
		{"zero count", func(m *types.InstantiateMsg) {
			m.Threshold = types.Threshold{AbsoluteCount: &types.AbsoluteCount{Weight: 0}}
		}},
		{"percentage zero", func(m *types.InstantiateMsg) { m.Threshold = percent("0") }},
		{"percentage above one", func(m *types.InstantiateMsg) { m.Threshold = percent("1.5") }},
		{"no threshold", func(m *types.InstantiateMsg) { m.Threshold = types.Threshold{} }},
		{"no period", func(m *types.InstantiateMsg) { m.MaxVotingPeriod = types.Duration{} }},
		{"period seconds overflow", func(m *types.InstantiateMsg) {
			m.MaxVotingPeriod = types.Duration{Time: 10_000_000_000}
		}},
		{"period height overflow", func(m *types.InstantiateMsg) {
			m.MaxVotingPeriod = types.Duration{Height: math.MaxUint64}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := sixVoters(percent("0.51"))
			tc.edit(msg)
			err := NewEngine(state.NewCache(nil), types.BlockInfo{}, cmtlog.NewNopLogger()).Instantiate(msg)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestContractInfo(t *testing.T) {
	c := newTestChain(t, sixVoters(percent("0.51")))
	info, err := GetContractInfo(c.store)
	require.NoError(t, err)
	assert.Equal(t, ContractName, info.Name)
	assert.Equal(t, ContractVersion, info.Version)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, CodeOK, ErrorCode(nil))
	assert.Equal(t, CodeAlreadyVoted, ErrorCode(errors.Wrap(ErrAlreadyVoted, "voter1")))
	assert.Equal(t, CodeNotExpired, ErrorCode(ErrNotExpired))
	assert.Equal(t, CodeInternal, ErrorCode(errors.New("disk full")))
}

func TestListFromCommittedState(t *testing.T) {
	db, err := state.NewMemStateDB(cmtlog.NewNopLogger())
	require.NoError(t, err)
	defer db.Close()

	blk := types.BlockInfo{Height: 1, Time: genesisTime}
	st, err := db.NewState(blk)
	require.NoError(t, err)
	e := NewEngine(st.Store(), blk, cmtlog.NewNopLogger())
	require.NoError(t, e.Instantiate(sixVoters(percent("0.51"))))
	for i := 1; i <= 3; i++ {
		_, err = e.CreateProposal(voterAddr(i), &ProposeMsg{Title: fmt.Sprintf("p%d", i)})
		require.NoError(t, err)
	}
	_, _, err = e.CastVote(voterAddr(4), 2, types.VoteNo)
	require.NoError(t, err)
	_, err = st.Update()
	require.NoError(t, err)
	_, err = db.SetState(st)
	require.NoError(t, err)

	snap, err := db.Committed()
	require.NoError(t, err)

	voters, err := ListVoters(snap)
	require.NoError(t, err)
	require.Len(t, voters, 6)
	assert.Equal(t, types.Voter{Addr: voterAddr(1), Weight: 1}, voters[0])

	props, err := ListProposals(snap, 1, 10)
	require.NoError(t, err)
	require.Len(t, props, 2)
	assert.Equal(t, "p2", props[0].Title)

	votes, err := ListBallots(snap, 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []VoteInfo{
		{Voter: voterAddr(2), Vote: types.VoteYes, Weight: 2},
		{Voter: voterAddr(4), Vote: types.VoteNo, Weight: 4},
	}, votes)
}
