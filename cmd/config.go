package main

import (
	"os"
	"strings"

	"github.com/Ankitjha21/zksync-era/config"
	"github.com/urfave/cli/v2"
)

func configCmd(*cli.Context) error {
	defaultConfig := strings.Builder{}
	defaultConfig.WriteString(config.DefaultVars)
	defaultConfig.WriteString(config.DefaultValues)

	_, err := os.Stdout.WriteString(defaultConfig.String())
	return err
}
