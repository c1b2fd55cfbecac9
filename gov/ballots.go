package gov

import (
	"encoding/binary"

	"github.com/calehh/hac-gov/state"
	"github.com/calehh/hac-gov/types"
	"github.com/pkg/errors"
)

const keyBallotPrefix = 'b'

func ballotPrefix(id uint64) []byte {
	k := make([]byte, 9)
	k[0] = keyBallotPrefix
	binary.BigEndian.PutUint64(k[1:], id)
	return k
}

func ballotKey(id uint64, voter string) []byte {
	return append(ballotPrefix(id), voter...)
}

// GetBallot returns nil when voter has not voted on proposal id.
func GetBallot(store state.KVStore, id uint64, voter string) (*types.Ballot, error) {
	b := new(types.Ballot)
	ok, err := getJSON(store, ballotKey(id, voter), b)
	if err != nil || !ok {
		return nil, err
	}
	return b, nil
}

func saveBallot(store state.KVStore, id uint64, voter string, b *types.Ballot) error {
	exist, err := store.Has(ballotKey(id, voter))
	if err != nil {
		return errors.Wrap(err, "read ballot")
	}
	if exist {
		return ErrAlreadyVoted
	}
	return setJSON(store, ballotKey(id, voter), b)
}

type VoteInfo struct {
	Voter  string     `json:"voter"`
	Vote   types.Vote `json:"vote"`
	Weight uint64     `json:"weight"`
}

func ListBallots(it state.PrefixIterator, id uint64) (votes []VoteInfo, err error) {
	prefix := ballotPrefix(id)
	votes = []VoteInfo{}
	var derr error
	err = it.IteratePrefix(prefix, func(key, value []byte) bool {
		var b types.Ballot
		if derr = decodeJSON(value, &b); derr != nil {
			return false
		}
		votes = append(votes, VoteInfo{
			Voter:  string(key[len(prefix):]),
			Vote:   b.Vote,
			Weight: b.Weight,
		})
		return true
	})
	if err == nil {
		err = derr
	}
	return
}
