package app

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/calehh/hac-gov/gov"
	"github.com/calehh/hac-gov/state"
	hac_types "github.com/calehh/hac-gov/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

const (
	QueryProposal     = "/proposal/"
	QueryCurrentID    = "/current_id/"
	QueryConfig       = "/config/"
	QueryVoter        = "/voter/"
	QueryVoters       = "/voters/"
	QueryBallot       = "/ballot/"
	QueryVotes        = "/votes/"
	QueryProposals    = "/proposals/"
	QueryContractInfo = "/info/"
	QueryNonce        = "/nonce/"

	CodeUnknownPath uint32 = 404
	DefaultPageSize        = 30
	MaxPageSize            = 100
)

// QueryParams is the JSON request body of every query path; each path
// reads the fields it needs.
type QueryParams struct {
	ID         uint64 `json:"id,omitempty"`
	Voter      string `json:"voter,omitempty"`
	StartAfter uint64 `json:"start_after,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type VoterResponse struct {
	Addr   string `json:"addr"`
	Weight uint64 `json:"weight"`
	Found  bool   `json:"found"`
}

type BallotResponse struct {
	Proposal uint64            `json:"proposal"`
	Voter    string            `json:"voter"`
	Ballot   *hac_types.Ballot `json:"ballot"`
}

func (app *HACApp) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	path := req.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	q, ok := app.queriers[path]
	if !ok {
		res = &abcitypes.ResponseQuery{}
		res.Code = CodeUnknownPath
		res.Log = "unknown query path " + req.Path
		return
	}
	res, err = q.Query(ctx, req)
	return
}

func (app *HACApp) registerQuerier() {
	for path, fn := range map[string]queryFunc{
		QueryProposal:     queryProposal,
		QueryCurrentID:    queryCurrentID,
		QueryConfig:       queryConfig,
		QueryVoter:        queryVoter,
		QueryVoters:       queryVoters,
		QueryBallot:       queryBallot,
		QueryVotes:        queryVotes,
		QueryProposals:    queryProposals,
		QueryContractInfo: queryContractInfo,
		QueryNonce:        queryNonce,
	} {
		app.queriers[path] = NewStateQuerier(app.db, app.logger, fn)
	}
}

type Querier interface {
	Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error)
}

type queryFunc func(snap *state.Snapshot, blk hac_types.BlockInfo, params *QueryParams) (any, error)

// StateQuerier answers one path from the last committed state.
type StateQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
	fn     queryFunc
}

func NewStateQuerier(db *state.StateDB, logger cmtlog.Logger, fn queryFunc) (q *StateQuerier) {
	q = &StateQuerier{
		db:     db,
		logger: logger,
		fn:     fn,
	}
	return
}

func (q *StateQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	params := new(QueryParams)
	if len(req.Data) > 0 {
		if err1 := json.Unmarshal(req.Data, params); err1 != nil {
			res.Code = gov.CodeInternal
			res.Log = "invalid query params: " + err1.Error()
			return
		}
	}
	snap, err := q.db.Committed()
	if err != nil {
		return nil, err
	}
	header := q.db.Header()
	blk := hac_types.BlockInfo{Height: header.Height, Time: header.Time}
	res.Height = int64(snap.Height())
	val, err1 := q.fn(snap, blk, params)
	if err1 != nil {
		q.logger.Debug("query fail", "path", req.Path, "err", err1)
		res.Code = gov.ErrorCode(err1)
		res.Log = err1.Error()
		return
	}
	res.Value, err = json.Marshal(val)
	return
}

func pageLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	}
	return limit
}

func queryProposal(snap *state.Snapshot, blk hac_types.BlockInfo, params *QueryParams) (any, error) {
	return gov.NewEngine(snap, blk, cmtlog.NewNopLogger()).GetProposal(params.ID)
}

func queryCurrentID(snap *state.Snapshot, _ hac_types.BlockInfo, _ *QueryParams) (any, error) {
	return gov.CurrentID(snap)
}

func queryConfig(snap *state.Snapshot, _ hac_types.BlockInfo, _ *QueryParams) (any, error) {
	return gov.GetConfig(snap)
}

func queryContractInfo(snap *state.Snapshot, _ hac_types.BlockInfo, _ *QueryParams) (any, error) {
	return gov.GetContractInfo(snap)
}

func queryVoter(snap *state.Snapshot, _ hac_types.BlockInfo, params *QueryParams) (any, error) {
	w, found, err := gov.GetWeight(snap, params.Voter)
	if err != nil {
		return nil, err
	}
	return &VoterResponse{Addr: params.Voter, Weight: w, Found: found}, nil
}

func queryNonce(snap *state.Snapshot, _ hac_types.BlockInfo, params *QueryParams) (any, error) {
	return state.GetNonce(snap, params.Voter)
}

func queryVoters(snap *state.Snapshot, _ hac_types.BlockInfo, _ *QueryParams) (any, error) {
	return gov.ListVoters(snap)
}

func queryBallot(snap *state.Snapshot, _ hac_types.BlockInfo, params *QueryParams) (any, error) {
	if _, err := gov.LoadProposal(snap, params.ID); err != nil {
		return nil, err
	}
	b, err := gov.GetBallot(snap, params.ID, params.Voter)
	if err != nil {
		return nil, err
	}
	return &BallotResponse{Proposal: params.ID, Voter: params.Voter, Ballot: b}, nil
}

func queryVotes(snap *state.Snapshot, _ hac_types.BlockInfo, params *QueryParams) (any, error) {
	if _, err := gov.LoadProposal(snap, params.ID); err != nil {
		return nil, err
	}
	return gov.ListBallots(snap, params.ID)
}

func queryProposals(snap *state.Snapshot, blk hac_types.BlockInfo, params *QueryParams) (any, error) {
	props, err := gov.ListProposals(snap, params.StartAfter, pageLimit(params.Limit))
	if err != nil {
		return nil, err
	}
	out := make([]*hac_types.ProposalResponse, 0, len(props))
	for _, p := range props {
		p.Status = gov.EvalStatus(p)
		out = append(out, &hac_types.ProposalResponse{
			Proposal: *p,
			Expired:  p.Expires.IsExpired(blk),
		})
	}
	return out, nil
}
