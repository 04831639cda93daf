package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"spikeplot.dev/spikeplot/common"
	"spikeplot.dev/spikeplot/flags"
	"spikeplot.dev/spikeplot/proxy"
)

func main() {
	f, err := flags.ParseProxyArgs(os.Args)
	if err != nil {
		logrus.Error(err)
		os.Exit(2)
	}
	common.ConfigureLogging(f.Verbose)

	pc, err := flags.LoadProxyConfigFromFlags(f)
	if err != nil {
		logrus.Fatalf("error loading config: %s", err)
	}

	s, err := proxy.NewServer(pc)
	if err != nil {
		logrus.Fatal(err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := s.Serve(ctx); err != nil {
		logrus.Fatal(err)
	}
	logrus.Info("proxy: shut down")
}
