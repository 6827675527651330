package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	zksync "github.com/Ankitjha21/zksync-era"
	zkcommon "github.com/Ankitjha21/zksync-era/common"
	"github.com/Ankitjha21/zksync-era/config"
	"github.com/Ankitjha21/zksync-era/ethsender"
	"github.com/Ankitjha21/zksync-era/etherman"
	"github.com/Ankitjha21/zksync-era/executionlayer"
	"github.com/Ankitjha21/zksync-era/gasprice"
	"github.com/Ankitjha21/zksync-era/log"
	"github.com/Ankitjha21/zksync-era/proofs"
	"github.com/Ankitjha21/zksync-era/sequencer"
	"github.com/Ankitjha21/zksync-era/state"
	"github.com/urfave/cli/v2"
)

func start(cliCtx *cli.Context) error {
	c, err := config.Load(cliCtx)
	if err != nil {
		return err
	}

	log.Init(c.Log)

	if c.Log.Environment == log.EnvironmentDevelopment {
		zksync.PrintVersion(os.Stdout)
		log.Info("Starting application")
	} else if c.Log.Environment == log.EnvironmentProduction {
		logVersion()
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	components := cliCtx.StringSlice(config.FlagComponents)
	l1Client := runL1ClientIfNeeded(components, c.Etherman)
	storage := runStorageIfNeeded(components, c.Sequencer.DBPath)
	gasAdjuster := runGasAdjusterIfNeeded(cliCtx.Context, components, c.GasAdjuster, l1Client)

	for _, component := range components {
		switch component {
		case zkcommon.SEQUENCER:
			seq := createSequencer(cliCtx.Context, *c, storage)
			go seq.Start(cliCtx.Context)

		case zkcommon.ETH_SENDER:
			sender := createEthSender(*c, storage, l1Client, gasAdjuster)
			go sender.Start(cliCtx.Context)

		case zkcommon.GAS_ADJUSTER:
			// started by runGasAdjusterIfNeeded
		}
	}

	waitSignal(nil)

	return nil
}

func createSequencer(ctx context.Context, cfg config.Config, storage state.Storage) *sequencer.Sequencer {
	logger := log.WithFields("module", zkcommon.SEQUENCER)

	execLayer, err := executionlayer.NewClient(cfg.Sequencer.ExecutionLayerURL)
	if err != nil {
		logger.Fatal(err)
	}

	seq, err := sequencer.New(ctx, cfg.Sequencer, logger, storage, execLayer)
	if err != nil {
		logger.Fatal(err)
	}

	return seq
}

func createEthSender(
	cfg config.Config,
	storage state.Storage,
	l1Client *etherman.Client,
	gasAdjuster *gasprice.Adjuster,
) *ethsender.EthSender {
	logger := log.WithFields("module", zkcommon.ETH_SENDER)

	auth, _, err := l1Client.LoadAuthFromKeyStore(cfg.EthSender.PrivateKey.Path, cfg.EthSender.PrivateKey.Password)
	if err != nil {
		logger.Fatalf("error loading sender key store: %s", err)
	}
	if auth.From != cfg.EthSender.SenderAddress {
		logger.Fatalf("sender address %s doesn't match the loaded key store address %s",
			cfg.EthSender.SenderAddress, auth.From)
	}

	proofSource, err := proofs.NewSource(cfg.EthSender.Proofs, cfg.EthSender.ProofLoadingMode,
		log.WithFields("module", "proofs"))
	if err != nil {
		logger.Fatal(err)
	}

	aggregator := ethsender.NewAggregator(cfg.EthSender, logger, storage, proofSource)
	sender, err := ethsender.New(cfg.EthSender, logger, storage, l1Client, gasAdjuster, aggregator)
	if err != nil {
		logger.Fatal(err)
	}

	return sender
}

// runL1ClientIfNeeded creates the L1 client when some requested component
// uses it
func runL1ClientIfNeeded(components []string, cfg etherman.Config) *etherman.Client {
	if !isNeeded([]string{zkcommon.ETH_SENDER, zkcommon.GAS_ADJUSTER}, components) {
		return nil
	}
	client, err := etherman.NewClient(cfg)
	if err != nil {
		log.Fatalf("failed to create client for L1 using URL: %s. Err:%v", cfg.URL, err)
	}

	return client
}

func runStorageIfNeeded(components []string, dbPath string) *state.SQLStorage {
	if !isNeeded([]string{zkcommon.SEQUENCER, zkcommon.ETH_SENDER}, components) {
		return nil
	}
	storage, err := state.NewSQLStorage(log.WithFields("module", "state"), dbPath)
	if err != nil {
		log.Fatal(err)
	}

	return storage
}

func runGasAdjusterIfNeeded(
	ctx context.Context, components []string, cfg gasprice.Config, l1Client *etherman.Client,
) *gasprice.Adjuster {
	if !isNeeded([]string{zkcommon.ETH_SENDER, zkcommon.GAS_ADJUSTER}, components) {
		return nil
	}
	adjuster, err := gasprice.New(cfg, log.WithFields("module", zkcommon.GAS_ADJUSTER), l1Client, nil)
	if err != nil {
		log.Fatal(err)
	}
	go adjuster.Start(ctx)

	return adjuster
}

func logVersion() {
	log.Infof("Starting application, gitRevision: %s, gitBranch: %s, goVersion: %s, built: %s, os/arch: %s/%s",
		zksync.GitRev, zksync.GitBranch, runtime.Version(), zksync.BuildDate,
		runtime.GOOS, runtime.GOARCH,
	)
}

func waitSignal(cancelFuncs []context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)

	for sig := range signals {
		switch sig {
		case os.Interrupt, os.Kill:
			log.Info("terminating application gracefully...")

			for _, cancel := range cancelFuncs {
				cancel()
			}
			os.Exit(0)
		}
	}
}

func isNeeded(casesWhereNeeded, actualCases []string) bool {
	for _, actualCase := range actualCases {
		for _, caseWhereNeeded := range casesWhereNeeded {
			if actualCase == caseWhereNeeded {
				return true
			}
		}
	}

	return false
}
