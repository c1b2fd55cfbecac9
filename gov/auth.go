package gov

import (
	"github.com/calehh/hac-gov/state"
	"github.com/pkg/errors"
)

// IsVoter is true for an identity with a weight of at least 1.
func IsVoter(store state.KVStore, identity string) (bool, error) {
	w, _, err := GetWeight(store, identity)
	if err != nil {
		return false, err
	}
	return w >= 1, nil
}

// CanCastBallot fails with ErrUnauthorized for a non-voter and with
// ErrAlreadyVoted when a ballot already exists for the pair.
func CanCastBallot(store state.KVStore, identity string, proposalID uint64) (bool, error) {
	ok, err := IsVoter(store, identity)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, errors.Wrapf(ErrUnauthorized, "%s is not a voter", identity)
	}
	exist, err := store.Has(ballotKey(proposalID, identity))
	if err != nil {
		return false, errors.Wrap(err, "read ballot")
	}
	if exist {
		return false, errors.Wrapf(ErrAlreadyVoted, "%s on proposal %d", identity, proposalID)
	}
	return true, nil
}
