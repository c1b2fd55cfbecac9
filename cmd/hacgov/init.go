package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	app_config "github.com/calehh/hac-gov/config"
	"github.com/calehh/hac-gov/gov"
	"github.com/calehh/hac-gov/types"
	cmtos "github.com/cometbft/cometbft/libs/os"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/spf13/cobra"
)

type printInfo struct {
	ChainID    string          `json:"chain_id" yaml:"chain_id"`
	NodeID     string          `json:"node_id" yaml:"node_id"`
	AppMessage json.RawMessage `json:"app_message" yaml:"app_message"`
}

func displayInfo(info printInfo) error {
	out, err := json.MarshalIndent(info, "", " ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(os.Stderr, "%s\n", out)

	return err
}

type initArguments struct {
	ChainID      string
	Overwrite    bool
	Voters       []string
	Threshold    string
	PeriodHeight uint64
	PeriodTime   uint64
}

var initArgs initArguments

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize private validator, p2p, genesis, and application configuration files",
	Long: `Initialize the node's configuration files and a genesis whose app_state
instantiates the governance module.

Voters are given as address:weight. When none are given the node's own
validator address becomes the only voter with weight 1.

Threshold forms:
  count:<weight>
  percentage:<fraction>
  quorum:<threshold>,<quorum>`,
	Args: cobra.NoArgs,
	RunE: initRun,
}

func init() {
	initCmd.Flags().BoolVarP(&initArgs.Overwrite, types.FlagOverwrite, "o", false, "overwrite the genesis.json file")
	initCmd.Flags().StringVar(&initArgs.ChainID, types.FlagChainID, "", "genesis file chain-id, if left blank will be randomly created")
	initCmd.Flags().StringSliceVar(&initArgs.Voters, "voter", nil, "initial voter as address:weight, repeatable")
	initCmd.Flags().StringVar(&initArgs.Threshold, "threshold", "count:1", "passing threshold")
	initCmd.Flags().Uint64Var(&initArgs.PeriodHeight, "voting-period-height", 0, "max voting period in blocks")
	initCmd.Flags().Uint64Var(&initArgs.PeriodTime, "voting-period-time", 0, "max voting period in seconds")
}

func parseVoter(s string) (types.Voter, error) {
	addr, weight, ok := strings.Cut(s, ":")
	if !ok || addr == "" {
		return types.Voter{}, fmt.Errorf("voter %q is not address:weight", s)
	}
	w, err := strconv.ParseUint(weight, 10, 64)
	if err != nil {
		return types.Voter{}, fmt.Errorf("voter %q: %w", s, err)
	}
	return types.Voter{Addr: addr, Weight: w}, nil
}

func parseThreshold(s string) (types.Threshold, error) {
	kind, val, _ := strings.Cut(s, ":")
	switch kind {
	case "count":
		w, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return types.Threshold{}, fmt.Errorf("threshold %q: %w", s, err)
		}
		return types.Threshold{AbsoluteCount: &types.AbsoluteCount{Weight: w}}, nil
	case "percentage":
		return types.Threshold{AbsolutePercentage: &types.AbsolutePercentage{Percentage: types.Decimal(val)}}, nil
	case "quorum":
		thr, quorum, ok := strings.Cut(val, ",")
		if !ok {
			return types.Threshold{}, fmt.Errorf("threshold %q: want quorum:<threshold>,<quorum>", s)
		}
		return types.Threshold{ThresholdQuorum: &types.ThresholdQuorum{
			Threshold: types.Decimal(thr),
			Quorum:    types.Decimal(quorum),
		}}, nil
	}
	return types.Threshold{}, fmt.Errorf("unknown threshold kind %q", kind)
}

// buildInstantiateMsg assembles the governance genesis; fallback is the
// voter address used when no voters are given.
func buildInstantiateMsg(args *initArguments, fallback string) (*types.InstantiateMsg, error) {
	msg := &types.InstantiateMsg{
		MaxVotingPeriod: types.Duration{Height: args.PeriodHeight, Time: args.PeriodTime},
	}
	if args.PeriodHeight == 0 && args.PeriodTime == 0 {
		msg.MaxVotingPeriod.Height = 100
	}
	for _, v := range args.Voters {
		voter, err := parseVoter(v)
		if err != nil {
			return nil, err
		}
		msg.Voters = append(msg.Voters, voter)
	}
	if len(msg.Voters) == 0 {
		msg.Voters = []types.Voter{{Addr: fallback, Weight: 1}}
	}
	th, err := parseThreshold(args.Threshold)
	if err != nil {
		return nil, err
	}
	msg.Threshold = th
	if _, err := gov.ValidateInstantiate(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func initRun(cmd *cobra.Command, args []string) error {
	home, err := resolveHome()
	if err != nil {
		return err
	}
	chainID := initArgs.ChainID
	if chainID == "" {
		chainID = fmt.Sprintf("test-chain-%v", rand.Uint64())
	}
	appConfig := app_config.DefaultConfig(home)

	genFile := appConfig.GenesisFile()
	if !initArgs.Overwrite && cmtos.FileExists(genFile) {
		return fmt.Errorf("genesis file %s already exists, use --%s to replace it", genFile, types.FlagOverwrite)
	}

	nodeID, pk, err := app_config.InitializeNodeValidatorFiles(appConfig, nil)
	if err != nil {
		return err
	}
	msg, err := buildInstantiateMsg(&initArgs, pk.Address().String())
	if err != nil {
		return err
	}
	appState, err := types.NewAppState(msg)
	if err != nil {
		return err
	}

	appGenesis := &types.GenesisDoc{
		GenesisTime:     time.Now(),
		ChainID:         chainID,
		ConsensusParams: cmttypes.DefaultConsensusParams(),
		InitialHeight:   1,
		Validators: []types.GenesisValidator{
			{Address: pk.Address(), PubKey: pk, Power: types.DefaultPower},
		},
		AppState: appState,
	}
	if err = types.ExportGenesisFile(appGenesis, genFile); err != nil {
		return fmt.Errorf("failed to export genesis file %v", err)
	}
	if err = app_config.WriteConfigFile(app_config.ConfigFile(home), appConfig); err != nil {
		return err
	}
	return displayInfo(printInfo{ChainID: chainID, NodeID: nodeID, AppMessage: appGenesis.AppState})
}
