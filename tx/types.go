package tx

import (
	"errors"
)

type GovTxType uint8

const (
	GovTxTypeUnknown         GovTxType = 0
	GovTxTypeCreateProposal  GovTxType = 1
	GovTxTypeVote            GovTxType = 2
	GovTxTypeExecuteProposal GovTxType = 3
	GovTxTypeCloseProposal   GovTxType = 4
	GovTxTypeRemoveVoter     GovTxType = 5
)

func (t GovTxType) String() string {
	switch t {
	case GovTxTypeCreateProposal:
		return "create_proposal"
	case GovTxTypeVote:
		return "vote"
	case GovTxTypeExecuteProposal:
		return "execute_proposal"
	case GovTxTypeCloseProposal:
		return "close_proposal"
	case GovTxTypeRemoveVoter:
		return "remove_voter"
	}
	return "unknown"
}

const (
	GovTxVersion0 uint8 = 0
	GovTxVersion1 uint8 = 1

	MaxTxSize = 64 * 1024
)

var (
	ErrInvalidTx            = errors.New("invalid tx")
	ErrUnsupportedTxType    = errors.New("unsupported tx type")
	ErrUnmatchedTxType      = errors.New("unmatched tx type")
	ErrUnsupportedTxVersion = errors.New("unsupported tx version")
	ErrTxTooLarge           = errors.New("tx too large")
	ErrTxSigInvalid         = errors.New("signature invalid")
	ErrTxPubKeyInvalid      = errors.New("public key invalid")
)
