package gov

import (
	"encoding/json"

	"github.com/calehh/hac-gov/state"
	"github.com/calehh/hac-gov/types"
	"github.com/pkg/errors"
)

const (
	ContractName    = "hac-gov"
	ContractVersion = "0.1.0"
)

var (
	KeyConfig       = []byte("config")
	KeyContractInfo = []byte("contract_info")
)

func getJSON(store state.KVStore, key []byte, v any) (bool, error) {
	val, err := store.Get(key)
	if err != nil {
		return false, errors.Wrapf(err, "read %s", key)
	}
	if val == nil {
		return false, nil
	}
	if err = json.Unmarshal(val, v); err != nil {
		return false, errors.Wrapf(err, "decode %s", key)
	}
	return true, nil
}

func setJSON(store state.KVStore, key []byte, v any) error {
	val, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return errors.Wrapf(store.Set(key, val), "write %s", key)
}

func GetConfig(store state.KVStore) (*types.Config, error) {
	cfg := new(types.Config)
	ok, err := getJSON(store, KeyConfig, cfg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrap(ErrInvalidConfig, "not instantiated")
	}
	return cfg, nil
}

func GetContractInfo(store state.KVStore) (*types.ContractInfo, error) {
	info := new(types.ContractInfo)
	ok, err := getJSON(store, KeyContractInfo, info)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrap(ErrInvalidConfig, "not instantiated")
	}
	return info, nil
}

// ValidateInstantiate checks a voter list and policy and returns the total
// weight they add up to.
func ValidateInstantiate(msg *types.InstantiateMsg) (total uint64, err error) {
	if len(msg.Voters) == 0 {
		return 0, errors.Wrap(ErrInvalidConfig, "no voters")
	}
	seen := make(map[string]struct{}, len(msg.Voters))
	for _, v := range msg.Voters {
		if v.Addr == "" {
			return 0, errors.Wrap(ErrInvalidConfig, "empty voter address")
		}
		if _, ok := seen[v.Addr]; ok {
			return 0, errors.Wrapf(ErrInvalidConfig, "duplicate voter %s", v.Addr)
		}
		seen[v.Addr] = struct{}{}
		if total+v.Weight < total {
			return 0, errors.Wrap(ErrInvalidConfig, "total weight overflow")
		}
		total += v.Weight
	}
	if total == 0 {
		return 0, errors.Wrap(ErrInvalidConfig, "total weight is zero")
	}
	if err = msg.Threshold.Validate(total); err != nil {
		return 0, errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if err = msg.MaxVotingPeriod.Validate(); err != nil {
		return 0, errors.Wrap(ErrInvalidConfig, err.Error())
	}
	return total, nil
}
