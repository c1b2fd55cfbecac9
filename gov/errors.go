package gov

import (
	"github.com/pkg/errors"
)

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyVoted    = errors.New("voter has already voted")
	ErrExpired         = errors.New("proposal is expired")
	ErrNotExpired      = errors.New("proposal is not expired")
	ErrNotPassed       = errors.New("proposal is not passed")
	ErrNotOpen         = errors.New("proposal is not open")
	ErrInvalidConfig   = errors.New("invalid config")
	ErrInvalidProposal = errors.New("invalid proposal")
	ErrInvalidVote     = errors.New("invalid vote")
)

// ABCI result codes. 1 is left for failures that are not governance errors.
const (
	CodeOK              uint32 = 0
	CodeInternal        uint32 = 1
	CodeUnauthorized    uint32 = 2
	CodeNotFound        uint32 = 3
	CodeAlreadyVoted    uint32 = 4
	CodeExpired         uint32 = 5
	CodeNotExpired      uint32 = 6
	CodeNotPassed       uint32 = 7
	CodeNotOpen         uint32 = 8
	CodeInvalidConfig   uint32 = 9
	CodeInvalidProposal uint32 = 10
	CodeInvalidVote     uint32 = 11
)

var codes = []struct {
	err  error
	code uint32
}{
	{ErrUnauthorized, CodeUnauthorized},
	{ErrNotFound, CodeNotFound},
	{ErrAlreadyVoted, CodeAlreadyVoted},
	{ErrExpired, CodeExpired},
	{ErrNotExpired, CodeNotExpired},
	{ErrNotPassed, CodeNotPassed},
	{ErrNotOpen, CodeNotOpen},
	{ErrInvalidConfig, CodeInvalidConfig},
	{ErrInvalidProposal, CodeInvalidProposal},
	{ErrInvalidVote, CodeInvalidVote},
}

func ErrorCode(err error) uint32 {
	if err == nil {
		return CodeOK
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}
