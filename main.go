// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ghastnet/ghastd/config"
	"github.com/ghastnet/ghastd/logger"
	"github.com/ghastnet/ghastd/version"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := logger.InitBackend(cfg.LogDir, config.DefaultLogFilename, cfg.DebugLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Close()

	log.Infof("Version %s", version.Version())

	g, err := newGhastd(cfg)
	if err != nil {
		log.Errorf("Failed starting ghastd: %+v", err)
		os.Exit(1)
	}
	g.start()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt
	log.Infof("Received interrupt, shutting down")

	if err := g.stop(); err != nil {
		log.Errorf("Failed shutting down ghastd: %+v", err)
		os.Exit(1)
	}
}
