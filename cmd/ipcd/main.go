// Command ipcd runs the IPC checkpoint agent daemon: it reads a subnet
// config, signs with a local wallet, and submits bottom-up and top-down
// checkpoints for every subnet pair it manages.
//
// The command surface is a root *cli.App with one subcommand per
// operation, each an Action closure over a *cli.Context.
package main

import (
	"fmt"
	"os"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
)

var log = logging.Logger("ipcd")

func main() {
	app := &cli.App{
		Name:  "ipcd",
		Usage: "IPC checkpoint agent",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "log level (debug, info, warn, error)",
				EnvVars: []string{"IPCD_LOG_LEVEL"},
			},
		},
		Before: func(cctx *cli.Context) error {
			return logging.SetLogLevel("*", cctx.String("log-level"))
		},
		Commands: []*cli.Command{
			daemonCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "ipcd: %s\n", err)
		os.Exit(1)
	}
}
