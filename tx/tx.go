package tx

import (
	"encoding/json"

	"github.com/calehh/hac-gov/types"
	"github.com/cometbft/cometbft/crypto/ed25519"
	"github.com/pkg/errors"
)

// GovTx is the signed envelope of every governance transaction. The signer
// is identified by PubKey; its address is the caller seen by the engine.
type GovTx struct {
	Version uint8     `json:"version"`
	Type    GovTxType `json:"type"`
	Nonce   uint64    `json:"nonce"`
	PubKey  []byte    `json:"pubkey"`
	Tx      any       `json:"tx"`
	Sig     []byte    `json:"sig"`
}

type CreateProposalTx struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Msgs        []types.Action     `json:"msgs"`
	Expires     *types.Expiration  `json:"expires,omitempty"`
	Deposit     *types.DepositInfo `json:"deposit,omitempty"`
}

type VoteTx struct {
	Proposal uint64     `json:"proposal"`
	Vote     types.Vote `json:"vote"`
}

type ExecuteProposalTx struct {
	Proposal uint64 `json:"proposal"`
}

type CloseProposalTx struct {
	Proposal uint64 `json:"proposal"`
}

type RemoveVoterTx struct {
	Voter string `json:"voter"`
}

type govTxTmpl[Tx any] struct {
	Version uint8     `json:"version"`
	Type    GovTxType `json:"type"`
	Nonce   uint64    `json:"nonce"`
	PubKey  []byte    `json:"pubkey"`
	Tx      Tx        `json:"tx"`
	Sig     []byte    `json:"sig"`
}

// Signer is satisfied by crypto.PV.
type Signer interface {
	PublicKey() []byte
	Sign(data []byte) ([]byte, error)
}

func NewGovTx(tp GovTxType, nonce uint64, body any) *GovTx {
	return &GovTx{
		Version: GovTxVersion1,
		Type:    tp,
		Nonce:   nonce,
		Tx:      body,
	}
}

// SigData is the envelope encoded with the chain id in place of the signature.
func (tx *GovTx) SigData(chainID string) (dat []byte, err error) {
	ntx := *tx
	ntx.Sig = []byte(chainID)
	dat, err = json.Marshal(ntx)
	return
}

func (tx *GovTx) Sign(signer Signer, chainID string) error {
	tx.PubKey = signer.PublicKey()
	dat, err := tx.SigData(chainID)
	if err != nil {
		return err
	}
	tx.Sig, err = signer.Sign(dat)
	return err
}

func (tx *GovTx) Verify(chainID string) error {
	if len(tx.PubKey) != ed25519.PubKeySize {
		return ErrTxPubKeyInvalid
	}
	dat, err := tx.SigData(chainID)
	if err != nil {
		return err
	}
	if !ed25519.PubKey(tx.PubKey).VerifySignature(dat, tx.Sig) {
		return ErrTxSigInvalid
	}
	return nil
}

// Sender is the address of the signing key.
func (tx *GovTx) Sender() string {
	return ed25519.PubKey(tx.PubKey).Address().String()
}

func parseGovTxType(dat []byte) GovTxType {
	var tx struct {
		Type GovTxType `json:"type"`
	}
	err := json.Unmarshal(dat, &tx)
	if err != nil {
		return GovTxTypeUnknown
	}
	return tx.Type
}

func unmarshalGovTx[Tx any](dat []byte) (btx *GovTx, err error) {
	var txt govTxTmpl[Tx]
	err = json.Unmarshal(dat, &txt)
	if err != nil {
		return
	}
	btx = new(GovTx)
	btx.Version = txt.Version
	btx.Type = txt.Type
	btx.Nonce = txt.Nonce
	btx.PubKey = txt.PubKey
	btx.Tx = &txt.Tx
	btx.Sig = txt.Sig
	return
}

func UnmarshalGovTx(dat []byte) (btx *GovTx, err error) {
	if len(dat) > MaxTxSize {
		return nil, ErrTxTooLarge
	}
	tp := parseGovTxType(dat)
	switch tp {
	case GovTxTypeCreateProposal:
		btx, err = unmarshalGovTx[CreateProposalTx](dat)
	case GovTxTypeVote:
		btx, err = unmarshalGovTx[VoteTx](dat)
	case GovTxTypeExecuteProposal:
		btx, err = unmarshalGovTx[ExecuteProposalTx](dat)
	case GovTxTypeCloseProposal:
		btx, err = unmarshalGovTx[CloseProposalTx](dat)
	case GovTxTypeRemoveVoter:
		btx, err = unmarshalGovTx[RemoveVoterTx](dat)
	default:
		return nil, ErrUnsupportedTxType
	}
	if err != nil {
		return nil, errors.Wrap(ErrInvalidTx, err.Error())
	}
	if btx.Version != GovTxVersion1 {
		return nil, ErrUnsupportedTxVersion
	}
	return
}

func unmarshalBody[Tx any](dat []byte) (any, error) {
	body := new(Tx)
	if err := json.Unmarshal(dat, body); err != nil {
		return nil, errors.Wrap(ErrInvalidTx, err.Error())
	}
	return body, nil
}

// UnmarshalBody decodes the payload of a self-targeted action as the body
// of a tx of type tp.
func UnmarshalBody(tp GovTxType, dat []byte) (any, error) {
	switch tp {
	case GovTxTypeCreateProposal:
		return unmarshalBody[CreateProposalTx](dat)
	case GovTxTypeVote:
		return unmarshalBody[VoteTx](dat)
	case GovTxTypeExecuteProposal:
		return unmarshalBody[ExecuteProposalTx](dat)
	case GovTxTypeCloseProposal:
		return unmarshalBody[CloseProposalTx](dat)
	case GovTxTypeRemoveVoter:
		return unmarshalBody[RemoveVoterTx](dat)
	}
	return nil, ErrUnsupportedTxType
}

func MarshalGovTx(btx *GovTx) (dat []byte, err error) {
	return json.Marshal(btx)
}

// NewSelfAction builds an action that the chain dispatches back to itself
// when its proposal executes.
func NewSelfAction(tp GovTxType, body any) (types.Action, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return types.Action{}, err
	}
	return types.Action{
		Target:  types.SelfAddress,
		Type:    uint8(tp),
		Payload: payload,
	}, nil
}
