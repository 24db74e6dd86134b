// Command dynamic2basic converts a Windows dynamic disk's LDM volume
// into an equivalent conventional (basic) GPT or MBR partition table,
// writing new partition entries in place of the LDM database.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	cli "github.com/urfave/cli/v2"

	"github.com/dynamic2basic/dynamic2basic/blockdevice"
	"github.com/dynamic2basic/dynamic2basic/convert"
	"github.com/dynamic2basic/dynamic2basic/internal/log"
	"github.com/sirupsen/logrus"
)

const (
	yesFlag      = "yes"
	logLevelFlag = "loglevel"
)

func confirm(prompt string, skip bool) bool {
	if skip {
		return true
	}
	fmt.Fprintf(os.Stderr, "%s (yes or no) ", prompt)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	return strings.TrimSpace(strings.ToLower(scanner.Text())) == "yes"
}

func run(cliCtx *cli.Context) error {
	if err := log.Configure(cliCtx.String(logLevelFlag), "text"); err != nil {
		return err
	}

	if cliCtx.NArg() != 1 {
		return cli.Exit("usage: dynamic2basic [options] <device>", 1)
	}
	path := cliCtx.Args().Get(0)
	skipPrompts := cliCtx.Bool(yesFlag)

	if !confirm("Warning, please use other tools to back up any data on this disk first!!! continue?", skipPrompts) {
		logrus.Info("dynamic2basic: user declined to continue")
		return nil
	}

	dev, err := blockdevice.Open(path)
	if err != nil {
		return err
	}
	defer dev.Close()

	layout, err := convert.Classify(dev)
	if err != nil {
		return err
	}

	switch layout {
	case convert.LayoutGPT:
		r, err := convert.ScanGPT(dev)
		if err != nil {
			return err
		}
		logrus.WithField("ranges", len(r)).Info("dynamic2basic: resolved partition ranges from GPT LDM metadata")
		if !confirm("Warning, are you sure you want to save the new partition table shown above?", skipPrompts) {
			logrus.Info("dynamic2basic: user declined to save")
			return nil
		}
		return convert.RewriteGPT(dev, r)
	case convert.LayoutMBR:
		r, err := convert.ScanMBR(dev)
		if err != nil {
			return err
		}
		logrus.WithField("ranges", len(r)).Info("dynamic2basic: resolved partition ranges from MBR LDM metadata")
		if !confirm("Warning, are you sure you want to save the new partition table shown above?", skipPrompts) {
			logrus.Info("dynamic2basic: user declined to save")
			return nil
		}
		return convert.RewriteMBR(dev, r)
	default:
		return convert.ErrNotLDMDisk
	}
}

func main() {
	app := cli.NewApp()
	app.Name = "dynamic2basic"
	app.Usage = "convert a Windows dynamic disk's LDM metadata into a conventional GPT or MBR partition table"
	app.ArgsUsage = "<device>"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:    yesFlag,
			Aliases: []string{"y"},
			Usage:   "skip confirmation prompts",
		},
		&cli.StringFlag{
			Name:  logLevelFlag,
			Value: "info",
			Usage: "logging level: debug, info, warning, error, fatal, panic",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Error("dynamic2basic: failed")
		os.Exit(1)
	}
}
