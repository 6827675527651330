package main

import (
	"os"

	zksync "github.com/Ankitjha21/zksync-era"
	"github.com/urfave/cli/v2"
)

func versionCmd(*cli.Context) error {
	zksync.PrintVersion(os.Stdout)
	return nil
}
