// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command fluxhttpd is the process composition root: it loads
// configuration, wires up logging and the debug endpoint, and hands every
// accepted connection to the server package. The request-handling logic
// itself is an external collaborator (driver.ServerDriver); this binary
// only ships a minimal echo driver so the server is runnable standalone.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/packetd/fluxhttp/common"
	"github.com/packetd/fluxhttp/confengine"
	"github.com/packetd/fluxhttp/internal/bufpool"
	"github.com/packetd/fluxhttp/logger"
	"github.com/packetd/fluxhttp/netconn"
	"github.com/packetd/fluxhttp/server"
	"github.com/packetd/fluxhttp/server/debug"
)

// Config is the top-level, file-unpacked configuration for the serve
// command; "server" and "debug" are unpacked separately by their owning
// packages (server has no config of its own today, debug does).
type Config struct {
	Address string `config:"address"`
}

var configPath string

var rootCmd = &cobra.Command{
	Use:     common.App,
	Short:   "Run the hybrid HTTP/1.1 and HTTP/2 server",
	Example: "# fluxhttpd --config fluxhttpd.yaml",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "fluxhttpd.yaml", "configuration file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe() {
	if _, err := maxprocs.Set(maxprocs.Logger(logger.Infof)); err != nil {
		logger.Warnf("failed to set GOMAXPROCS: %v", err)
	}

	conf, err := confengine.LoadConfigPath(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var cfg Config
	if err := conf.UnpackChild("serve", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to unpack serve config: %v\n", err)
		os.Exit(1)
	}

	dbg, err := debug.New(conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build debug endpoint: %v\n", err)
		os.Exit(1)
	}
	if dbg != nil {
		go func() {
			if err := dbg.ListenAndServe(); err != nil {
				logger.Errorf("debug endpoint stopped: %v", err)
			}
		}()
	}

	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to listen on %s: %v\n", cfg.Address, err)
		os.Exit(1)
	}
	logger.Infof("%s %s listening on %s", common.App, common.Version, cfg.Address)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	pool := bufpool.New(common.BlockSize)
	drv := echoDriver{}

	// admission bounds how many connections run concurrently; a burst of
	// accepts beyond this just waits for a slot instead of piling up
	// unbounded per-connection goroutines.
	admission := make(chan struct{}, common.Concurrency())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warnf("accept failed: %v", err)
			continue
		}
		connID := uuid.New()
		admission <- struct{}{}
		go serveConn(ctx, conn, connID.String(), drv, pool, admission)
	}
}

func serveConn(ctx context.Context, conn net.Conn, connID string, drv echoDriver, pool *bufpool.Pool, admission <-chan struct{}) {
	defer conn.Close()
	defer func() { <-admission }()
	nc := netconn.New(conn)
	if err := server.ServeConnection(ctx, nc, drv, pool); err != nil {
		logger.Debugf("connection %s ended: %v", connID, err)
	}
}
