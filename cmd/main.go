package main

import (
	"os"

	zksync "github.com/Ankitjha21/zksync-era"
	zkcommon "github.com/Ankitjha21/zksync-era/common"
	"github.com/Ankitjha21/zksync-era/config"
	"github.com/Ankitjha21/zksync-era/log"
	"github.com/urfave/cli/v2"
)

const appName = "zksync-era"

var (
	configFileFlag = cli.StringSliceFlag{
		Name:     config.FlagCfg,
		Aliases:  []string{"c"},
		Usage:    "Configuration file(s)",
		Required: false,
	}
	componentsFlag = cli.StringSliceFlag{
		Name:     config.FlagComponents,
		Aliases:  []string{"co"},
		Usage:    "List of components to run",
		Required: false,
		Value: cli.NewStringSlice(zkcommon.SEQUENCER, zkcommon.ETH_SENDER,
			zkcommon.GAS_ADJUSTER),
	}
	saveConfigFlag = cli.StringFlag{
		Name:     config.FlagSaveConfigPath,
		Aliases:  []string{"s"},
		Usage:    "Save final configuration into the indicated path (name: " + config.SaveConfigFileName + ")",
		Required: false,
	}
)

func main() {
	app := cli.NewApp()
	app.Name = appName
	app.Version = zksync.Version

	app.Commands = []*cli.Command{
		{
			Name:   "version",
			Usage:  "Application version and build",
			Action: versionCmd,
		},
		{
			Name:   "config",
			Usage:  "Print the default configuration",
			Action: configCmd,
		},
		{
			Name:   "run",
			Usage:  "Run the batch sealing and L1 commitment pipeline",
			Action: start,
			Flags:  []cli.Flag{&configFileFlag, &componentsFlag, &saveConfigFlag},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
