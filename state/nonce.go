package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

var KeyNonce = "n%s"

var ErrTxNonceInvalid = errors.New("nonce invalid")

func nonceKey(addr string) []byte {
	return []byte(fmt.Sprintf(KeyNonce, addr))
}

// GetNonce returns the next nonce expected from addr.
func GetNonce(store KVStore, addr string) (nonce uint64, err error) {
	val, err := store.Get(nonceKey(addr))
	if err != nil {
		return 0, errors.Wrap(err, "read nonce")
	}
	if val == nil {
		return 0, nil
	}
	err = rlp.DecodeBytes(val, &nonce)
	if err != nil {
		return 0, errors.Wrap(err, "decode nonce")
	}
	return
}

// CheckNonce accepts exactly the expected nonce, or any later one when
// allowGap is set (mempool admission of queued txs).
func CheckNonce(store KVStore, addr string, nonce uint64, allowGap bool) error {
	cur, err := GetNonce(store, addr)
	if err != nil {
		return err
	}
	if !(cur == nonce || (allowGap && cur < nonce)) {
		return errors.Wrapf(ErrTxNonceInvalid, "expect %d got %d", cur, nonce)
	}
	return nil
}

func IncNonce(store KVStore, addr string) error {
	cur, err := GetNonce(store, addr)
	if err != nil {
		return err
	}
	val, err := rlp.EncodeToBytes(cur + 1)
	if err != nil {
		return err
	}
	return store.Set(nonceKey(addr), val)
}
