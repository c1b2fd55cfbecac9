package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/calehh/hac-gov/tx"
	"github.com/calehh/hac-gov/types"
	"github.com/spf13/cobra"
)

type proposeArguments struct {
	txFlags
	Title         string
	Description   string
	Msgs          string
	ExpiresHeight uint64
	ExpiresTime   string
}

var proposeArgs proposeArguments

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Submit a proposal; the proposer's weight is counted as a yes vote",
	Args:  cobra.NoArgs,
	RunE:  proposeRun,
}

func init() {
	addTxFlags(proposeCmd, &proposeArgs.txFlags)
	proposeCmd.Flags().StringVarP(&proposeArgs.Title, "title", "t", "", "proposal title")
	proposeCmd.Flags().StringVarP(&proposeArgs.Description, "description", "d", "", "proposal description")
	proposeCmd.Flags().StringVarP(&proposeArgs.Msgs, "msgs", "m", "", "JSON array of actions, or @file")
	proposeCmd.Flags().Uint64Var(&proposeArgs.ExpiresHeight, "expires-height", 0, "expire at this block height")
	proposeCmd.Flags().StringVar(&proposeArgs.ExpiresTime, "expires-time", "", "expire at this RFC3339 time")
}

func parseExpiration(height uint64, at string) (*types.Expiration, error) {
	switch {
	case height != 0 && at != "":
		return nil, fmt.Errorf("set only one of --expires-height and --expires-time")
	case height != 0:
		e := types.ExpireAtHeight(height)
		return &e, nil
	case at != "":
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return nil, err
		}
		e := types.ExpireAtTime(t)
		return &e, nil
	}
	return nil, nil
}

func parseActions(arg string) ([]types.Action, error) {
	if arg == "" {
		return nil, nil
	}
	dat := []byte(arg)
	if strings.HasPrefix(arg, "@") {
		var err error
		dat, err = os.ReadFile(arg[1:])
		if err != nil {
			return nil, err
		}
	}
	var msgs []types.Action
	if err := json.Unmarshal(dat, &msgs); err != nil {
		return nil, fmt.Errorf("parse actions: %w", err)
	}
	return msgs, nil
}

func proposeRun(cmd *cobra.Command, args []string) error {
	msgs, err := parseActions(proposeArgs.Msgs)
	if err != nil {
		return err
	}
	expires, err := parseExpiration(proposeArgs.ExpiresHeight, proposeArgs.ExpiresTime)
	if err != nil {
		return err
	}
	return sendTx(&proposeArgs.txFlags, tx.GovTxTypeCreateProposal, &tx.CreateProposalTx{
		Title:       proposeArgs.Title,
		Description: proposeArgs.Description,
		Msgs:        msgs,
		Expires:     expires,
	})
}

func parseProposalID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid proposal id %q", s)
	}
	return id, nil
}

var voteArgs txFlags

var voteCmd = &cobra.Command{
	Use:   "vote <proposal> <yes|no|abstain|veto>",
	Short: "Cast a ballot on an open proposal",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProposalID(args[0])
		if err != nil {
			return err
		}
		vote, err := types.ParseVote(args[1])
		if err != nil {
			return err
		}
		return sendTx(&voteArgs, tx.GovTxTypeVote, &tx.VoteTx{Proposal: id, Vote: vote})
	},
}

var executeArgs txFlags

var executeCmd = &cobra.Command{
	Use:   "execute <proposal>",
	Short: "Execute a passed proposal and release its actions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProposalID(args[0])
		if err != nil {
			return err
		}
		return sendTx(&executeArgs, tx.GovTxTypeExecuteProposal, &tx.ExecuteProposalTx{Proposal: id})
	},
}

var closeArgs txFlags

var closeCmd = &cobra.Command{
	Use:   "close <proposal>",
	Short: "Reject an expired proposal that did not pass",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProposalID(args[0])
		if err != nil {
			return err
		}
		return sendTx(&closeArgs, tx.GovTxTypeCloseProposal, &tx.CloseProposalTx{Proposal: id})
	},
}

type removeVoterArguments struct {
	txFlags
	Title string
}

var removeVoterArgs removeVoterArguments

// remove-voter can only run through governance, so it proposes it.
var removeVoterCmd = &cobra.Command{
	Use:   "remove-voter <address>",
	Short: "Propose removing a voter from the registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		act, err := tx.NewSelfAction(tx.GovTxTypeRemoveVoter, &tx.RemoveVoterTx{Voter: args[0]})
		if err != nil {
			return err
		}
		title := removeVoterArgs.Title
		if title == "" {
			title = "remove voter " + args[0]
		}
		return sendTx(&removeVoterArgs.txFlags, tx.GovTxTypeCreateProposal, &tx.CreateProposalTx{
			Title: title,
			Msgs:  []types.Action{act},
		})
	},
}

func init() {
	addTxFlags(voteCmd, &voteArgs)
	addTxFlags(executeCmd, &executeArgs)
	addTxFlags(closeCmd, &closeArgs)
	addTxFlags(removeVoterCmd, &removeVoterArgs.txFlags)
	removeVoterCmd.Flags().StringVarP(&removeVoterArgs.Title, "title", "t", "", "proposal title")
}
