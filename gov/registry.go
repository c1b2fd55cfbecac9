package gov

import (
	"fmt"
	"strings"

	"github.com/calehh/hac-gov/state"
	"github.com/calehh/hac-gov/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

const (
	KeyVoter       = "v%s"
	keyVoterPrefix = "v"
)

func voterKey(addr string) []byte {
	return []byte(fmt.Sprintf(KeyVoter, addr))
}

// GetWeight reports the registered weight of addr. ok is false when addr
// has no entry at all.
func GetWeight(store state.KVStore, addr string) (weight uint64, ok bool, err error) {
	val, err := store.Get(voterKey(addr))
	if err != nil {
		return 0, false, errors.Wrap(err, "read voter")
	}
	if val == nil {
		return 0, false, nil
	}
	if err = rlp.DecodeBytes(val, &weight); err != nil {
		return 0, false, errors.Wrapf(err, "decode voter %s", addr)
	}
	return weight, true, nil
}

func setWeight(store state.KVStore, addr string, weight uint64) error {
	val, err := rlp.EncodeToBytes(weight)
	if err != nil {
		return err
	}
	return errors.Wrap(store.Set(voterKey(addr), val), "write voter")
}

func removeWeight(store state.KVStore, addr string) error {
	return errors.Wrap(store.Delete(voterKey(addr)), "delete voter")
}

// ListVoters returns every registered voter in address order.
func ListVoters(it state.PrefixIterator) (voters []types.Voter, err error) {
	voters = []types.Voter{}
	var derr error
	err = it.IteratePrefix([]byte(keyVoterPrefix), func(key, value []byte) bool {
		var w uint64
		if derr = rlp.DecodeBytes(value, &w); derr != nil {
			return false
		}
		voters = append(voters, types.Voter{
			Addr:   strings.TrimPrefix(string(key), keyVoterPrefix),
			Weight: w,
		})
		return true
	})
	if err == nil {
		err = derr
	}
	return
}
