package agent

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	hac_types "github.com/calehh/hac-gov/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	comethttp "github.com/cometbft/cometbft/rpc/client/http"
	ctypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

// chainClient is the part of the CometBFT RPC client the indexer reads.
type chainClient interface {
	Status(ctx context.Context) (*ctypes.ResultStatus, error)
	BlockResults(ctx context.Context, height *int64) (*ctypes.ResultBlockResults, error)
}

type ChainIndexer struct {
	logger        cmtlog.Logger
	Url           string
	Height        int64
	db            *gorm.DB
	cli           chainClient
	eventHandlers map[string]eventHandler
	forwarder     *Forwarder
}

func OpenDB(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Height{}, &Proposal{}, &ProposalVote{}, &Action{}, &VoterRemoval{}).Error; err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewChainIndexer follows the node at chainUrl. fwd may be nil, in which
// case actions are recorded but not forwarded.
func NewChainIndexer(logger cmtlog.Logger, dbPath string, chainUrl string, fwd *Forwarder) (*ChainIndexer, error) {
	logger.Info("NewChainIndexer", "dbPath", dbPath, "url", chainUrl)
	cli, err := comethttp.New(chainUrl, "/websocket")
	if err != nil {
		return nil, err
	}
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}
	c, err := newChainIndexer(logger, db, cli, fwd)
	if err != nil {
		db.Close()
		return nil, err
	}
	c.Url = chainUrl
	return c, nil
}

func newChainIndexer(logger cmtlog.Logger, db *gorm.DB, cli chainClient, fwd *Forwarder) (*ChainIndexer, error) {
	h := Height{Id: 1}
	if err := db.First(&h).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	c := &ChainIndexer{
		logger:    logger.With("module", "indexer"),
		Height:    int64(h.Height + 1),
		db:        db,
		cli:       cli,
		forwarder: fwd,
	}
	c.eventHandlers = map[string]eventHandler{
		hac_types.EventProposalType:        c.handleEventProposal,
		hac_types.EventVoteType:            c.handleEventVote,
		hac_types.EventExecuteProposalType: c.handleEventSettleProposal,
		hac_types.EventCloseProposalType:   c.handleEventSettleProposal,
		hac_types.EventRemoveVoterType:     c.handleEventRemoveVoter,
		hac_types.EventActionType:          c.handleEventAction,
	}
	return c, nil
}

func (c *ChainIndexer) Close() error {
	return c.db.Close()
}

type eventHandler func(ctx context.Context, event abci.Event, height int64)

func (c *ChainIndexer) handleEvent(ctx context.Context, event abci.Event, height int64) {
	if h, ok := c.eventHandlers[event.Type]; ok {
		h(ctx, event, height)
	}
}

func (c *ChainIndexer) handleEventProposal(ctx context.Context, event abci.Event, height int64) {
	ev := hac_types.DecodeEventProposal(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return
	}
	proposal := Proposal{
		Id:        ev.Proposal,
		Title:     ev.Title,
		Proposer:  ev.Proposer,
		Expires:   ev.Expires,
		Msgs:      ev.Msgs,
		Status:    ev.Status,
		NewHeight: uint64(height),
	}
	if err := c.db.Save(&proposal).Error; err != nil {
		c.logger.Error("save proposal fail", "err", err)
	}
}

func (c *ChainIndexer) handleEventVote(ctx context.Context, event abci.Event, height int64) {
	ev := hac_types.DecodeEventVote(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return
	}
	vote := ProposalVote{
		Proposal: ev.Proposal,
		Voter:    ev.Voter,
		Vote:     ev.Vote,
		Weight:   ev.Weight,
		Height:   uint64(height),
	}
	if err := c.db.Save(&vote).Error; err != nil {
		c.logger.Error("save vote fail", "err", err)
		return
	}
	err := c.db.Model(&Proposal{}).Where("id = ?", ev.Proposal).Update("status", ev.Status).Error
	if err != nil {
		c.logger.Error("update proposal status fail", "proposal", ev.Proposal, "err", err)
	}
}

func (c *ChainIndexer) handleEventSettleProposal(ctx context.Context, event abci.Event, height int64) {
	ev := hac_types.DecodeEventSettleProposal(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return
	}
	var proposal Proposal
	if err := c.db.First(&proposal, ev.Proposal).Error; err != nil {
		c.logger.Error("get proposal fail", "proposal", ev.Proposal, "err", err)
		return
	}
	proposal.Status = ev.Status
	proposal.SettleHeight = uint64(height)
	proposal.SettledBy = ev.Sender
	if err := c.db.Save(&proposal).Error; err != nil {
		c.logger.Error("save proposal fail", "err", err)
	}
}

func (c *ChainIndexer) handleEventRemoveVoter(ctx context.Context, event abci.Event, height int64) {
	ev := hac_types.DecodeEventRemoveVoter(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return
	}
	removal := VoterRemoval{
		Voter:  ev.Voter,
		Weight: ev.Weight,
		Height: uint64(height),
	}
	if err := c.db.Save(&removal).Error; err != nil {
		c.logger.Error("save voter removal fail", "err", err)
	}
}

func (c *ChainIndexer) handleEventAction(ctx context.Context, event abci.Event, height int64) {
	ev := hac_types.DecodeEventAction(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return
	}
	act := Action{
		Proposal: ev.Proposal,
		Index:    ev.Index,
		Target:   ev.Target,
		Type:     ev.Type,
		Payload:  base64.StdEncoding.EncodeToString(ev.Payload),
		Height:   uint64(height),
	}
	// a replayed block finds the row from its first pass
	var prev Action
	err := c.db.Where(map[string]interface{}{"proposal": ev.Proposal, "index": ev.Index}).First(&prev).Error
	switch {
	case err == nil && prev.Forwarded:
		c.logger.Debug("action already forwarded", "proposal", ev.Proposal, "index", ev.Index)
		return
	case err == nil:
		act.Id = prev.Id
	case !errors.Is(err, gorm.ErrRecordNotFound):
		c.logger.Error("load action fail", "err", err)
		return
	}
	if c.forwarder != nil {
		if err := c.forwarder.Forward(ctx, ev); err != nil {
			c.logger.Error("forward action fail", "proposal", ev.Proposal, "index", ev.Index, "err", err)
			act.ForwardErr = err.Error()
		} else {
			act.Forwarded = true
		}
	}
	if err := c.db.Save(&act).Error; err != nil {
		c.logger.Error("save action fail", "err", err)
	}
}

// indexBlock records the events of every successful tx at height.
func (c *ChainIndexer) indexBlock(ctx context.Context, height int64) error {
	res, err := c.cli.BlockResults(ctx, &height)
	if err != nil {
		return err
	}
	for _, txRes := range res.TxsResults {
		if txRes == nil || txRes.Code != abci.CodeTypeOK {
			continue
		}
		for _, event := range txRes.Events {
			c.handleEvent(ctx, event, height)
		}
	}
	return c.db.Save(&Height{Id: 1, Height: uint64(height)}).Error
}

// Sync indexes every block up to the latest one the node reports.
func (c *ChainIndexer) Sync(ctx context.Context) error {
	status, err := c.cli.Status(ctx)
	if err != nil {
		return err
	}
	for c.Height <= status.SyncInfo.LatestBlockHeight {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.logger.Debug("indexer syncing", "height", c.Height)
		if err := c.indexBlock(ctx, c.Height); err != nil {
			return err
		}
		c.Height++
	}
	return nil
}

func (c *ChainIndexer) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Sync(ctx); err != nil {
				c.logger.Error("sync fail", "height", c.Height, "err", err)
			}
		}
	}
}

func (c *ChainIndexer) getProposals(status uint64, proposer string, page int, pageSize int) ([]Proposal, uint64, error) {
	query := c.db.Model(&Proposal{})
	if status != 0 {
		query = query.Where("status = ?", status)
	}
	if proposer != "" {
		query = query.Where("proposer = ?", proposer)
	}
	var total uint64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var proposals []Proposal
	err := query.Order("id desc").Offset(page * pageSize).Limit(pageSize).Find(&proposals).Error
	if err != nil {
		return nil, 0, err
	}
	return proposals, total, nil
}

func (c *ChainIndexer) getProposalById(proposalId uint64) (Proposal, error) {
	var proposal Proposal
	err := c.db.Where("id = ?", proposalId).First(&proposal).Error
	if err != nil {
		return Proposal{}, err
	}
	return proposal, nil
}

func (c *ChainIndexer) getVotes(proposal uint64, voter string, page int, pageSize int) ([]ProposalVote, uint64, error) {
	query := c.db.Model(&ProposalVote{})
	if proposal != 0 {
		query = query.Where("proposal = ?", proposal)
	}
	if voter != "" {
		query = query.Where("voter = ?", voter)
	}
	var total uint64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var votes []ProposalVote
	err := query.Order("id asc").Offset(page * pageSize).Limit(pageSize).Find(&votes).Error
	if err != nil {
		return nil, 0, err
	}
	return votes, total, nil
}

func (c *ChainIndexer) getActions(proposal uint64, page int, pageSize int) ([]Action, uint64, error) {
	query := c.db.Model(&Action{})
	if proposal != 0 {
		query = query.Where("proposal = ?", proposal)
	}
	var total uint64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var actions []Action
	err := query.Order("id asc").Offset(page * pageSize).Limit(pageSize).Find(&actions).Error
	if err != nil {
		return nil, 0, err
	}
	return actions, total, nil
}
