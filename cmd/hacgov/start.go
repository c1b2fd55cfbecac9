package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calehh/hac-gov/agent"
	"github.com/calehh/hac-gov/app"
	app_config "github.com/calehh/hac-gov/config"
	cmtconfig "github.com/cometbft/cometbft/config"
	cmtflags "github.com/cometbft/cometbft/libs/cli/flags"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	nm "github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	"github.com/spf13/cobra"
)

var noAgent bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the governance node with its indexer and query service",
	Args:  cobra.NoArgs,
	RunE:  startRun,
}

func init() {
	startCmd.Flags().BoolVar(&noAgent, "no-agent", false, "run the node without indexer, service and forwarder")
}

func startAgent(ctx context.Context, cfg *app_config.Config, logger cmtlog.Logger) (*agent.ChainIndexer, error) {
	rpcUrl, err := url.Parse(cfg.RPC.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("parse rpc address: %w", err)
	}
	rpcUrl.Scheme = "http"

	var fwd *agent.Forwarder
	if cfg.App.ForwardURL != "" {
		fwd = agent.NewForwarder(cfg.App.ForwardURL, cfg.App.ForwardRetries, cfg.App.ForwardBackoff, logger)
	}
	indexer, err := agent.NewChainIndexer(logger, cfg.App.IndexerPath(), rpcUrl.String(), fwd)
	if err != nil {
		return nil, err
	}
	go indexer.Start(ctx, cfg.App.PollInterval)

	service := agent.NewService(cfg.App.ServiceAddr, indexer)
	go func() {
		if err := service.Start(); err != nil {
			logger.Error("agent service stopped", "err", err)
		}
	}()
	return indexer, nil
}

func startRun(cmd *cobra.Command, args []string) error {
	home, err := resolveHome()
	if err != nil {
		return err
	}
	appConfig, err := app_config.LoadConfig(home)
	if err != nil {
		return err
	}

	pv := privval.LoadFilePV(
		appConfig.PrivValidatorKeyFile(),
		appConfig.PrivValidatorStateFile(),
	)

	nodeKey, err := p2p.LoadNodeKey(appConfig.NodeKeyFile())
	if err != nil {
		return fmt.Errorf("failed to load node's key: %w", err)
	}

	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout))
	logger, err = cmtflags.ParseLogLevel(appConfig.LogLevel, logger, cmtconfig.DefaultLogLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	hacApp, err := app.NewHACApp(appConfig.App, logger)
	if err != nil {
		return fmt.Errorf("new App err:%w", err)
	}

	node, err := nm.NewNode(
		appConfig.Config,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(hacApp),
		nm.DefaultGenesisDocProviderFunc(appConfig.Config),
		cmtconfig.DefaultDBProvider,
		nm.DefaultMetricsProvider(appConfig.Instrumentation),
		logger,
	)
	if err != nil {
		hacApp.Stop()
		return fmt.Errorf("creating node: %w", err)
	}

	if err = node.Start(); err != nil {
		hacApp.Stop()
		return fmt.Errorf("start comet node err %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var indexer *agent.ChainIndexer
	if !noAgent {
		indexer, err = startAgent(ctx, appConfig, logger)
		if err != nil {
			logger.Error("start agent fail", "err", err)
		}
	}

	defer func() {
		log.Println("shut down...")
		cancel()
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := node.Stop(); err != nil {
				logger.Error("stop comet node fail", "err", err)
			}
			node.Wait()
			hacApp.Stop()
			if indexer != nil {
				indexer.Close()
			}
		}()
		timer := time.NewTimer(time.Second * 10)
		select {
		case <-timer.C:
			os.Exit(1)
		case <-done:
			return
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	return nil
}
