package gov

import (
	"encoding/binary"
	"encoding/json"

	"github.com/calehh/hac-gov/state"
	"github.com/calehh/hac-gov/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

const keyProposalPrefix = 'p'

var KeyProposalCount = []byte("proposal_count")

func proposalKey(id uint64) []byte {
	k := make([]byte, 9)
	k[0] = keyProposalPrefix
	binary.BigEndian.PutUint64(k[1:], id)
	return k
}

func decodeJSON(val []byte, v any) error {
	return errors.Wrap(json.Unmarshal(val, v), "decode")
}

// CurrentID is the last allocated proposal id, 0 before the first proposal.
func CurrentID(store state.KVStore) (id uint64, err error) {
	val, err := store.Get(KeyProposalCount)
	if err != nil {
		return 0, errors.Wrap(err, "read proposal count")
	}
	if val == nil {
		return 0, nil
	}
	err = rlp.DecodeBytes(val, &id)
	return id, errors.Wrap(err, "decode proposal count")
}

func nextID(store state.KVStore) (uint64, error) {
	id, err := CurrentID(store)
	if err != nil {
		return 0, err
	}
	id++
	val, err := rlp.EncodeToBytes(id)
	if err != nil {
		return 0, err
	}
	if err = store.Set(KeyProposalCount, val); err != nil {
		return 0, errors.Wrap(err, "write proposal count")
	}
	return id, nil
}

// LoadProposal returns ErrNotFound for an id that was never allocated.
func LoadProposal(store state.KVStore, id uint64) (*types.Proposal, error) {
	p := new(types.Proposal)
	ok, err := getJSON(store, proposalKey(id), p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "proposal %d", id)
	}
	return p, nil
}

func saveProposal(store state.KVStore, p *types.Proposal) error {
	return setJSON(store, proposalKey(p.ID), p)
}

// ListProposals returns up to limit proposals with id > startAfter in
// ascending order.
func ListProposals(it state.PrefixIterator, startAfter uint64, limit int) (props []*types.Proposal, err error) {
	props = []*types.Proposal{}
	var derr error
	err = it.IteratePrefix([]byte{keyProposalPrefix}, func(key, value []byte) bool {
		if len(key) != 9 {
			return true
		}
		if binary.BigEndian.Uint64(key[1:]) <= startAfter {
			return true
		}
		p := new(types.Proposal)
		if derr = decodeJSON(value, p); derr != nil {
			return false
		}
		props = append(props, p)
		return limit <= 0 || len(props) < limit
	})
	if err == nil {
		err = derr
	}
	return
}
