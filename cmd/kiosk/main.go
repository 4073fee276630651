package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"clubkiosk/internal/app"
	"clubkiosk/internal/config"
)

var version = "dev"

var cfgPath string

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:        "config, c",
		Usage:       "path to the kiosk config (json or yaml)",
		EnvVar:      "KIOSK_CONFIG",
		Value:       "./config.yaml",
		Destination: &cfgPath,
	},
}

func main() {
	a := cli.App{
		Name:      "kiosk",
		HelpName:  "kiosk",
		Usage:     "club check-in display controller",
		UsageText: "kiosk [--config path] <command>",
		Version:   version,
		Flags:     globalFlags,
		Action:    run,
		Commands: []cli.Command{
			{
				Name:   "run",
				Usage:  "poll the club backend and drive the display",
				Action: run,
			},
			{
				Name:   "demo",
				Usage:  "drive the display from built-in sample data",
				Action: demo,
			},
			{
				Name:    "check-config",
				Aliases: []string{"check"},
				Usage:   "validate the config file and exit",
				Action:  checkConfig,
			},
		},
	}
	if err := a.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(*cli.Context) error { return start(app.Options{}) }

func demo(*cli.Context) error { return start(app.Options{Demo: true}) }

func start(opts app.Options) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	k, err := app.New(cfgPath, opts)
	if err != nil {
		return err
	}
	return k.Run(ctx)
}

func checkConfig(*cli.Context) error {
	cfg, err := config.NewConfigManager(cfgPath, nil).Load()
	if err != nil {
		return err
	}
	if _, err := cfg.Kiosk.Timings(); err != nil {
		return err
	}
	fmt.Printf("%s: ok\n", cfgPath)
	return nil
}
