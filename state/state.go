package state

import (
	"encoding/json"
	"errors"
	"time"

	hac_types "github.com/calehh/hac-gov/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/syndtr/goleveldb/leveldb"
)

var (
	KeyState = []byte("s")
)

var (
	ErrStateHeightUnmatched = errors.New("state height unmatched")
)

type StateHeader struct {
	ChainId  string    `json:"chain_id"`
	Height   uint64    `json:"height"`
	Time     time.Time `json:"time"`
	RootHash []byte    `json:"root_hash,omitempty"`
	Hash     []byte    `json:"hash,omitempty"`
}

func (h *StateHeader) clone() *StateHeader {
	n := *h
	n.RootHash = append([]byte(nil), h.RootHash...)
	n.Hash = append([]byte(nil), h.Hash...)
	return &n
}

// State is the working state of one block. Transactions write into the
// block cache through per-tx branches; Update moves the cache into the
// tree and save persists a new tree version.
type State struct {
	logger cmtlog.Logger
	db     *iavl.MutableTree
	dbVer  int64

	header *StateHeader
	cache  *Cache
}

func newState(db *iavl.MutableTree, logger cmtlog.Logger) *State {
	return &State{
		logger: logger,
		db:     db,
		dbVer:  0,
		header: new(StateHeader),
		cache:  NewCache(treeStore{db}),
	}
}

func (s *State) nextState(blk hac_types.BlockInfo) *State {
	n := &State{
		logger: s.logger,
		db:     s.db,
		dbVer:  s.dbVer,
		header: s.header.clone(),
		cache:  NewCache(treeStore{s.db}),
	}
	n.header.Height = blk.Height
	n.header.Time = blk.Time
	return n
}

func isNotFound(err error) bool {
	return errors.Is(err, leveldb.ErrNotFound)
}

func (s *State) load() (err error) {
	s.dbVer = s.db.Version()
	val, err := s.db.Get(KeyState)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	if val == nil {
		return nil
	}
	err = json.Unmarshal(val, s.header)
	if err != nil {
		return
	}
	h := s.db.Hash()
	if h != nil {
		s.calcHash(h, true)
	}
	return
}

func (s *State) calcHash(rootHash []byte, update bool) (h common.Hash) {
	h = crypto.Keccak256Hash(rootHash)
	if update {
		s.header.RootHash = append(s.header.RootHash[:0], rootHash...)
		s.header.Hash = append(s.header.Hash[:0], h[:]...)
	}
	return
}

// Update writes the block cache and header into the working tree and
// returns the resulting app hash without saving a version.
func (s *State) Update() (h common.Hash, err error) {
	var hash []byte
	defer func() {
		if hash == nil {
			s.db.Rollback()
		}
	}()
	hdr := s.header.clone()
	hdr.RootHash, hdr.Hash = nil, nil
	val, err := json.Marshal(hdr)
	if err != nil {
		return
	}
	err = s.cache.Set(KeyState, val)
	if err != nil {
		return
	}
	err = s.cache.Write()
	if err != nil {
		return
	}
	hash = s.db.WorkingHash()
	h = s.calcHash(hash, false)
	return
}

func (s *State) save() (h common.Hash, err error) {
	hash, ver, err := s.db.SaveVersion()
	if err != nil {
		return h, err
	}

	s.dbVer = ver
	h = s.calcHash(hash, true)

	return
}

// Store is the block level view: reads see every write already applied in
// this block.
func (s *State) Store() KVStore {
	return s.cache
}

// Branch opens a write buffer for one transaction.
func (s *State) Branch() *Cache {
	return NewCache(s.cache)
}

func (s *State) BlockInfo() hac_types.BlockInfo {
	return hac_types.BlockInfo{
		Height: s.header.Height,
		Time:   s.header.Time,
	}
}

func (s *State) Header() *StateHeader {
	return s.header
}

func (s *State) Height() uint64 {
	return s.header.Height
}

func (s *State) Hash() (h common.Hash) {
	if s.header.Hash != nil {
		copy(h[:], s.header.Hash)
	}
	return
}

func (s *State) SetChainId(chainId string) {
	s.header.ChainId = chainId
}

func (s *State) ChainId() string {
	return s.header.ChainId
}
