package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/calehh/hac-gov/app"
	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/spf13/cobra"
)

var queryUrl string

var queryCmd = &cobra.Command{
	Use:     "query",
	Aliases: []string{"q"},
	Short:   "Read governance state from a node",
}

// queryDef maps a subcommand to an app query path and turns its
// positional args into query params.
type queryDef struct {
	use    string
	short  string
	path   string
	nargs  int
	params func(args []string) (app.QueryParams, error)
}

func noParams([]string) (app.QueryParams, error) {
	return app.QueryParams{}, nil
}

func idParam(args []string) (app.QueryParams, error) {
	id, err := parseProposalID(args[0])
	return app.QueryParams{ID: id}, err
}

func voterParam(args []string) (app.QueryParams, error) {
	return app.QueryParams{Voter: args[0]}, nil
}

var (
	proposalsStartAfter uint64
	proposalsLimit      int
)

var queryDefs = []queryDef{
	{"proposal <id>", "Show one proposal", app.QueryProposal, 1, idParam},
	{"current-id", "Show the id of the latest proposal", app.QueryCurrentID, 0, noParams},
	{"config", "Show threshold, total weight and max voting period", app.QueryConfig, 0, noParams},
	{"info", "Show contract name and version", app.QueryContractInfo, 0, noParams},
	{"voter <address>", "Show a voter's weight", app.QueryVoter, 1, voterParam},
	{"voters", "List all voters", app.QueryVoters, 0, noParams},
	{"votes <id>", "List ballots cast on a proposal", app.QueryVotes, 1, idParam},
	{"nonce <address>", "Show the next nonce of an account", app.QueryNonce, 1, voterParam},
	{"ballot <id> <voter>", "Show one voter's ballot", app.QueryBallot, 2, func(args []string) (app.QueryParams, error) {
		id, err := parseProposalID(args[0])
		return app.QueryParams{ID: id, Voter: args[1]}, err
	}},
	{"proposals", "List proposals in id order", app.QueryProposals, 0, func([]string) (app.QueryParams, error) {
		return app.QueryParams{StartAfter: proposalsStartAfter, Limit: proposalsLimit}, nil
	}},
}

func runQuery(path string, params app.QueryParams) error {
	cli, err := http.New(queryUrl, "/websocket")
	if err != nil {
		return fmt.Errorf("new client err:%w", err)
	}
	var out json.RawMessage
	if err := queryApp(context.Background(), cli, path, params, &out); err != nil {
		return err
	}
	pretty, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	return nil
}

func init() {
	queryCmd.PersistentFlags().StringVarP(&queryUrl, "url", "u", "http://127.0.0.1:26657", "hacgov node rpc url")
	for _, def := range queryDefs {
		def := def
		cmd := &cobra.Command{
			Use:   def.use,
			Short: def.short,
			Args:  cobra.ExactArgs(def.nargs),
			RunE: func(cmd *cobra.Command, args []string) error {
				params, err := def.params(args)
				if err != nil {
					return err
				}
				return runQuery(def.path, params)
			},
		}
		if def.path == app.QueryProposals {
			cmd.Flags().Uint64Var(&proposalsStartAfter, "start-after", 0, "list proposals with a greater id")
			cmd.Flags().IntVar(&proposalsLimit, "limit", 0, "page size")
		}
		queryCmd.AddCommand(cmd)
	}
}
