package state

import (
	"sync"

	hac_types "github.com/calehh/hac-gov/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	dbm "github.com/cosmos/iavl/db"
	"github.com/ethereum/go-ethereum/common"
)

const (
	DefaultBackend = "goleveldb"
	dbName         = "hacgov"
	treeCacheSize  = 128
)

type StateDB struct {
	mtx sync.RWMutex

	dir    string
	logger cmtlog.Logger
	db     *iavl.MutableTree

	state *State
}

func NewStateDB(dir, backend string, logger cmtlog.Logger) (*StateDB, error) {
	if backend == "" {
		backend = DefaultBackend
	}
	ldb, err := dbm.NewDB(dbName, backend, dir)
	if err != nil {
		return nil, err
	}
	return openStateDB(ldb, dir, logger)
}

// NewMemStateDB keeps the tree in memory; nothing survives Close.
func NewMemStateDB(logger cmtlog.Logger) (*StateDB, error) {
	return openStateDB(dbm.NewMemDB(), "", logger)
}

func openStateDB(ldb dbm.DB, dir string, logger cmtlog.Logger) (db *StateDB, err error) {
	logger = logger.With("module", "hacdb")
	tdb := iavl.NewMutableTree(ldb, treeCacheSize, true, Cometbft2CosmosLogger(logger))
	version, err := tdb.Load()
	if err != nil {
		return nil, err
	}
	logger.Info("load db success", "version", version)
	st := newState(tdb, logger)
	err = st.load()
	if err != nil {
		logger.Error("from hacdb load fail", "err", err)
		return nil, err
	}
	db = &StateDB{
		dir:    dir,
		logger: logger,
		db:     tdb,
		state:  st,
	}
	return
}

func (db *StateDB) Close() (err error) {
	err = db.db.Close()
	return
}

func (db *StateDB) Header() (header *StateHeader) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	header = db.state.Header().clone()
	return
}

func (db *StateDB) State() *State {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.state
}

// NewState starts the working state for blk on top of the last commit.
func (db *StateDB) NewState(blk hac_types.BlockInfo) (st *State, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	if db.state.header.Height > 0 && blk.Height <= db.state.header.Height {
		return nil, ErrStateHeightUnmatched
	}
	st = db.state.nextState(blk)
	return
}

func (db *StateDB) SetState(st *State) (hash common.Hash, err error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	hash, err = st.save()
	if err != nil {
		return
	}
	db.state = st
	return
}

// Committed returns a read-only view of the last saved version. Writes
// applied by an in-flight block are not visible through it.
func (db *StateDB) Committed() (*Snapshot, error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	snap := &Snapshot{height: db.state.header.Height}
	if db.state.dbVer == 0 {
		return snap, nil
	}
	tree, err := db.db.GetImmutable(db.state.dbVer)
	if err != nil {
		return nil, err
	}
	snap.tree = tree
	return snap, nil
}
