package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nais/botdeploy/pkg/botclient"
	"github.com/nais/botdeploy/pkg/version"

	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

func main() {
	err := run()
	if err == nil {
		return
	}
	code := botclient.ErrorExitCode(err)
	if code == botclient.ExitInvocationFailure {
		flag.Usage()
	}
	log.Errorf("fatal: %s", err)
	os.Exit(int(code))
}

func run() error {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, botclient.Usage)
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}

	// Configuration and context
	cfg := botclient.NewConfig()
	botclient.InitConfig(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	// Logging
	botclient.SetupLogging(*cfg)

	log.Debugf("botctl %s", version.Version())

	client := botclient.New(cfg.Server)

	return botclient.Run(ctx, *cfg, client, flag.Args(), os.Stdout)
}
