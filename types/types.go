package types

import (
	"encoding/base64"
	"fmt"
	"strconv"

	abci "github.com/cometbft/cometbft/abci/types"
)

const (
	EventProposalType        = "proposal"
	EventVoteType            = "vote"
	EventExecuteProposalType = "execute_proposal"
	EventCloseProposalType   = "close_proposal"
	EventRemoveVoterType     = "remove_voter"
	EventActionType          = "action"
)

type EventProposal struct {
	Proposal uint64 `json:"proposal"`
	Proposer string `json:"proposer"`
	Title    string `json:"title"`
	Expires  string `json:"expires"`
	Status   uint64 `json:"status"`
	Msgs     uint64 `json:"msgs"`
}

func EncodeEventProposal(event *EventProposal) abci.Event {
	return abci.Event{
		Type: EventProposalType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "proposer", Value: event.Proposer, Index: true},
			{Key: "title", Value: event.Title, Index: false},
			{Key: "expires", Value: event.Expires, Index: false},
			{Key: "status", Value: fmt.Sprintf("%v", event.Status), Index: false},
			{Key: "msgs", Value: fmt.Sprintf("%v", event.Msgs), Index: false},
		},
	}
}

func DecodeEventProposal(originEvent abci.Event) *EventProposal {
	event := &EventProposal{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Proposal = proposal
		case "proposer":
			event.Proposer = v.Value
		case "title":
			event.Title = v.Value
		case "expires":
			event.Expires = v.Value
		case "status":
			status, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Status = status
		case "msgs":
			msgs, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Msgs = msgs
		}
	}
	return event
}

type EventVote struct {
	Proposal uint64 `json:"proposal"`
	Voter    string `json:"voter"`
	Vote     uint64 `json:"vote"`
	Weight   uint64 `json:"weight"`
	Status   uint64 `json:"status"`
}

func EncodeEventVote(event *EventVote) abci.Event {
	return abci.Event{
		Type: EventVoteType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "voter", Value: event.Voter, Index: true},
			{Key: "vote", Value: fmt.Sprintf("%v", event.Vote), Index: false},
			{Key: "weight", Value: fmt.Sprintf("%v", event.Weight), Index: false},
			{Key: "status", Value: fmt.Sprintf("%v", event.Status), Index: false},
		},
	}
}

func DecodeEventVote(originEvent abci.Event) *EventVote {
	event := &EventVote{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Proposal = proposal
		case "voter":
			event.Voter = v.Value
		case "vote":
			vote, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Vote = vote
		case "weight":
			weight, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Weight = weight
		case "status":
			status, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Status = status
		}
	}
	return event
}

// EventSettleProposal is emitted by both execute and close; the event type
// tells them apart.
type EventSettleProposal struct {
	Proposal uint64 `json:"proposal"`
	Sender   string `json:"sender"`
	Status   uint64 `json:"status"`
}

func EncodeEventSettleProposal(eventType string, event *EventSettleProposal) abci.Event {
	return abci.Event{
		Type: eventType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "sender", Value: event.Sender, Index: true},
			{Key: "status", Value: fmt.Sprintf("%v", event.Status), Index: false},
		},
	}
}

func DecodeEventSettleProposal(originEvent abci.Event) *EventSettleProposal {
	event := &EventSettleProposal{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Proposal = proposal
		case "sender":
			event.Sender = v.Value
		case "status":
			status, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Status = status
		}
	}
	return event
}

type EventRemoveVoter struct {
	Voter  string `json:"voter"`
	Weight uint64 `json:"weight"`
}

func EncodeEventRemoveVoter(event *EventRemoveVoter) abci.Event {
	return abci.Event{
		Type: EventRemoveVoterType,
		Attributes: []abci.EventAttribute{
			{Key: "voter", Value: event.Voter, Index: true},
			{Key: "weight", Value: fmt.Sprintf("%v", event.Weight), Index: false},
		},
	}
}

func DecodeEventRemoveVoter(originEvent abci.Event) *EventRemoveVoter {
	event := &EventRemoveVoter{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "voter":
			event.Voter = v.Value
		case "weight":
			weight, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Weight = weight
		}
	}
	return event
}

// EventAction carries one downstream action to whoever consumes the
// block results.
type EventAction struct {
	Proposal uint64 `json:"proposal"`
	Index    uint64 `json:"index"`
	Target   string `json:"target"`
	Type     uint64 `json:"type"`
	Payload  []byte `json:"payload"`
}

func EncodeEventAction(event *EventAction) abci.Event {
	return abci.Event{
		Type: EventActionType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "index", Value: fmt.Sprintf("%v", event.Index), Index: false},
			{Key: "target", Value: event.Target, Index: true},
			{Key: "type", Value: fmt.Sprintf("%v", event.Type), Index: false},
			{Key: "payload", Value: base64.StdEncoding.EncodeToString(event.Payload), Index: false},
		},
	}
}

func DecodeEventAction(originEvent abci.Event) *EventAction {
	event := &EventAction{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Proposal = proposal
		case "index":
			index, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Index = index
		case "target":
			event.Target = v.Value
		case "type":
			tp, err := strconv.ParseUint(v.Value, 10, 8)
			if err != nil {
				return nil
			}
			event.Type = tp
		case "payload":
			payload, err := base64.StdEncoding.DecodeString(v.Value)
			if err != nil {
				return nil
			}
			event.Payload = payload
		}
	}
	return event
}
