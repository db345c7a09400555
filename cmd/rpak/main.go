// Command rpak decompresses, compresses and inspects RPak files.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	"github.com/rpaktools/rpak/cmd/rpak/batch"
	"github.com/rpaktools/rpak/cmd/rpak/config"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Println("ERROR: ", err)
		os.Exit(1)
	}

	if cfg.CLI.Debug {
		logrus.Info("debug mode enabled")
		logrus.SetLevel(logrus.DebugLevel)
	}

	if cfg.CLI.Quiet {
		logrus.SetLevel(logrus.WarnLevel)
	}

	displayConfig(cfg)

	b, err := batch.New(cfg)
	if err != nil {
		logrus.Errorf("unable to create batch: %s", err)
		os.Exit(1)
	}

	quit := signalHandler(b)
	err = b.Run(context.Background())
	close(quit)

	if err != nil {
		logrus.Errorf("error during %s: %s", cfg.Command, err)
		os.Exit(1)
	}
}

// signalHandler removes the partial outputs and exits if a termination
// signal arrives before quit is closed.
func signalHandler(b *batch.Batch) chan<- struct{} {
	quit := make(chan struct{})
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, termsigs...)
	go func() {
		select {
		case <-quit:
			signal.Stop(sigch)
			return
		case sig := <-sigch:
			logrus.Warnf("received %v", sig)
			b.RemoveTemp()
			os.Exit(7)
		}
	}()
	return quit
}

func displayConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}

	logrus.Info("rpak settings:")
	logrus.Info("  [CLI]")
	logrus.Infof("  version: %s", config.VERSION)
	logrus.Infof("  command: %s", cfg.Command)
	logrus.Infof("  debug: %v", cfg.CLI.Debug)
	logrus.Infof("  workers: %d", cfg.CLI.Workers)
	logrus.Infof("  paks: %d", len(cfg.Paks()))

	switch cfg.Command {
	case config.CommandDecompress:
		d := cfg.CLI.Decompress
		logrus.Info("")
		logrus.Info("  [DECOMPRESS]")
		logrus.Infof("  out: %s", d.Out)
		logrus.Infof("  stream: %v", d.Stream)
		logrus.Infof("  no patch: %v", d.NoPatch)
	case config.CommandCompress:
		c := cfg.CLI.Compress
		logrus.Info("")
		logrus.Info("  [COMPRESS]")
		logrus.Infof("  out: %s", c.Out)
		logrus.Infof("  mode: %s", c.Mode)
		if c.Mode == "zstd" {
			logrus.Infof("  level: %s", c.Level)
		} else {
			logrus.Infof("  chunk bits: %d", c.ChunkBits)
			logrus.Infof("  block bits: %d", c.BlockBits)
			logrus.Infof("  window: %d", c.Window)
		}
	case config.CommandInfo:
		logrus.Info("")
		logrus.Info("  [INFO]")
		logrus.Infof("  dump: %v", cfg.CLI.Info.Dump)
	}
}
