package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	hac_types "github.com/calehh/hac-gov/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	ctypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChain struct {
	blocks map[int64][]*abci.ExecTxResult
	latest int64
}

func (f *fakeChain) Status(ctx context.Context) (*ctypes.ResultStatus, error) {
	return &ctypes.ResultStatus{SyncInfo: ctypes.SyncInfo{LatestBlockHeight: f.latest}}, nil
}

func (f *fakeChain) BlockResults(ctx context.Context, height *int64) (*ctypes.ResultBlockResults, error) {
	return &ctypes.ResultBlockResults{Height: *height, TxsResults: f.blocks[*height]}, nil
}

func (f *fakeChain) add(height int64, code uint32, events ...abci.Event) {
	f.blocks[height] = append(f.blocks[height], &abci.ExecTxResult{Code: code, Events: events})
	if height > f.latest {
		f.latest = height
	}
}

func newTestIndexer(t *testing.T, chain *fakeChain, fwd *Forwarder) *ChainIndexer {
	db, err := OpenDB(filepath.Join(t.TempDir(), "indexer.db"))
	require.NoError(t, err)
	c, err := newChainIndexer(cmtlog.NewNopLogger(), db, chain, fwd)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func lifecycleChain() *fakeChain {
	chain := &fakeChain{blocks: map[int64][]*abci.ExecTxResult{}}
	open := uint64(hac_types.ProposalStatusOpen)
	passed := uint64(hac_types.ProposalStatusPassed)
	chain.add(2, abci.CodeTypeOK,
		hac_types.EncodeEventProposal(&hac_types.EventProposal{Proposal: 1, Proposer: "alice", Title: "upgrade", Expires: "height:12", Status: open, Msgs: 1}),
		hac_types.EncodeEventVote(&hac_types.EventVote{Proposal: 1, Voter: "alice", Vote: uint64(hac_types.VoteYes), Weight: 3, Status: open}),
	)
	chain.add(3, abci.CodeTypeOK,
		hac_types.EncodeEventVote(&hac_types.EventVote{Proposal: 1, Voter: "bob", Vote: uint64(hac_types.VoteYes), Weight: 2, Status: passed}),
	)
	// failed txs carry no state change
	chain.add(3, 7,
		hac_types.EncodeEventVote(&hac_types.EventVote{Proposal: 1, Voter: "mallory", Vote: uint64(hac_types.VoteNo), Weight: 9, Status: open}),
	)
	chain.add(4, abci.CodeTypeOK,
		hac_types.EncodeEventSettleProposal(hac_types.EventExecuteProposalType, &hac_types.EventSettleProposal{Proposal: 1, Sender: "carol", Status: uint64(hac_types.ProposalStatusExecuted)}),
		hac_types.EncodeEventAction(&hac_types.EventAction{Proposal: 1, Index: 0, Target: "bank", Type: 1, Payload: []byte(`{"amount":5}`)}),
	)
	chain.add(5, abci.CodeTypeOK,
		hac_types.EncodeEventRemoveVoter(&hac_types.EventRemoveVoter{Voter: "dave", Weight: 1}),
	)
	return chain
}

func TestIndexerSync(t *testing.T) {
	chain := lifecycleChain()
	c := newTestIndexer(t, chain, nil)
	require.NoError(t, c.Sync(context.Background()))
	assert.Equal(t, int64(6), c.Height)

	p, err := c.getProposalById(1)
	require.NoError(t, err)
	assert.Equal(t, "upgrade", p.Title)
	assert.Equal(t, "alice", p.Proposer)
	assert.Equal(t, uint64(2), p.NewHeight)
	assert.Equal(t, uint64(4), p.SettleHeight)
	assert.Equal(t, "carol", p.SettledBy)
	assert.Equal(t, uint64(hac_types.ProposalStatusExecuted), p.Status)

	votes, total, err := c.getVotes(1, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)
	assert.Equal(t, "alice", votes[0].Voter)
	assert.Equal(t, "bob", votes[1].Voter)

	actions, _, err := c.getActions(1, 0, 10)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "bank", actions[0].Target)
	assert.False(t, actions[0].Forwarded)

	var removals []VoterRemoval
	require.NoError(t, c.db.Find(&removals).Error)
	require.Len(t, removals, 1)
	assert.Equal(t, "dave", removals[0].Voter)
}

func TestIndexerResumesFromSavedHeight(t *testing.T) {
	chain := lifecycleChain()
	dbPath := filepath.Join(t.TempDir(), "indexer.db")

	db, err := OpenDB(dbPath)
	require.NoError(t, err)
	c, err := newChainIndexer(cmtlog.NewNopLogger(), db, chain, nil)
	require.NoError(t, err)
	require.NoError(t, c.Sync(context.Background()))
	require.NoError(t, c.Close())

	db, err = OpenDB(dbPath)
	require.NoError(t, err)
	c, err = newChainIndexer(cmtlog.NewNopLogger(), db, chain, nil)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, int64(6), c.Height)

	require.NoError(t, c.Sync(context.Background()))
	_, total, err := c.getVotes(1, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total, "blocks are not indexed twice")
}

func TestForwarderRetries(t *testing.T) {
	var calls int32
	var got ForwardRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	fwd := NewForwarder(srv.URL, 5, time.Millisecond, cmtlog.NewNopLogger())
	err := fwd.Forward(context.Background(), &hac_types.EventAction{Proposal: 7, Index: 1, Target: "bank", Type: 2, Payload: []byte(`{"to":"x"}`)})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, uint64(7), got.Proposal)
	assert.Equal(t, "bank", got.Target)
	assert.JSONEq(t, `{"to":"x"}`, string(got.Payload))
}

func TestForwarderGivesUp(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	fwd := NewForwarder(srv.URL, 2, time.Millisecond, cmtlog.NewNopLogger())
	err := fwd.Forward(context.Background(), &hac_types.EventAction{Proposal: 1, Target: "bank"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIndexerForwardsActions(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := newTestIndexer(t, lifecycleChain(), NewForwarder(srv.URL, 1, time.Millisecond, cmtlog.NewNopLogger()))
	require.NoError(t, c.Sync(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	actions, _, err := c.getActions(0, 0, 10)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.True(t, actions[0].Forwarded)
	assert.Empty(t, actions[0].ForwardErr)
}

func TestReplayedBlockNotForwardedTwice(t *testing.T) {
	var calls int32
	var down atomic.Bool
	down.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if down.Load() {
			http.Error(w, "down", http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	c := newTestIndexer(t, lifecycleChain(), NewForwarder(srv.URL, 1, time.Millisecond, cmtlog.NewNopLogger()))
	require.NoError(t, c.Sync(context.Background()))
	actions, _, err := c.getActions(1, 0, 10)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.False(t, actions[0].Forwarded)
	assert.NotEmpty(t, actions[0].ForwardErr)

	// crash before the cursor moved: the action block is indexed again
	down.Store(false)
	c.Height = 4
	require.NoError(t, c.Sync(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "failed forward is retried")
	actions, total, err := c.getActions(1, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
	assert.True(t, actions[0].Forwarded)

	c.Height = 4
	require.NoError(t, c.Sync(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "forwarded action is not posted again")
	_, total, err = c.getActions(0, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	dat, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(dat))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := newTestIndexer(t, lifecycleChain(), nil)
	require.NoError(t, c.Sync(context.Background()))
	s := NewService("", c)

	w := postJSON(t, s, "/getProposals", GetProposalsReq{})
	require.Equal(t, http.StatusOK, w.Code)
	var proposals GetProposalsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &proposals))
	assert.Equal(t, uint64(1), proposals.Total)
	require.Len(t, proposals.Proposals, 1)
	assert.Len(t, proposals.Proposals[0].Votes, 2)

	w = postJSON(t, s, "/getProposals", GetProposalsReq{ProposalId: 9})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = postJSON(t, s, "/getVotes", GetVotesReq{Voter: "bob"})
	require.Equal(t, http.StatusOK, w.Code)
	var votes GetVotesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &votes))
	require.Len(t, votes.Votes, 1)
	assert.Equal(t, uint64(2), votes.Votes[0].Weight)

	w = postJSON(t, s, "/getVotes", GetVotesReq{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, s, "/getActions", GetActionsReq{ProposalId: 1})
	require.Equal(t, http.StatusOK, w.Code)
	var actions GetActionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &actions))
	require.Len(t, actions.Actions, 1)
	assert.Equal(t, uint64(1), actions.Actions[0].Type)
}
