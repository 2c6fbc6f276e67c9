// Copyright (C) 2023 Andrew Dunstall
//
// Seastore is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Seastore is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package seastore

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/seastore-io/seastore-go/internal/config"
	"github.com/seastore-io/seastore-go/internal/pool"
	"github.com/seastore-io/seastore-go/internal/transport"
)

// componentGraph holds the client's long-lived subsystems. It is built
// once at construction, read-only afterwards, and every subsystem lives
// exactly as long as the client.
type componentGraph struct {
	config      *config.Config
	environment *config.Environment
	monitor     *monitor
	pool        *pool.Pool
	transport   *transport.Transport
	nodes       *nodesService
	internal    *internalClient
}

// newComponentGraph wires the subsystems bottom-up in dependency order:
// monitor, pool, transport, nodes service, internal client. Assembly is
// fail-fast; on error every subsystem started so far is stopped and no
// partial graph escapes.
//
// Starting the transport is the only construction step with an observable
// side effect (it may open client sockets); nothing listens.
func newComponentGraph(
	cfg *config.Config,
	env *config.Environment,
	clk clock.Clock,
	logger *zap.Logger,
) (*componentGraph, error) {
	mon := newMonitor(clk, logger)

	p := pool.New(cfg.PoolName(), cfg.PoolSize(), cfg.PoolQueue(), logger)

	t := transport.New(transport.Options{
		ClusterName:       cfg.ClusterName(),
		ConnectTimeout:    cfg.ConnectTimeout(),
		Compress:          cfg.Compress(),
		CompressThreshold: cfg.CompressThreshold(),
		Logger:            logger,
	})
	if err := t.Start(); err != nil {
		p.ShutdownNow()
		_ = mon.Close()
		return nil, fmt.Errorf("assemble: transport: %w", err)
	}

	nodes, err := newNodesService(
		t,
		mon,
		cfg.ClusterName(),
		cfg.ReconnectInterval(),
		cfg.NodeCacheSize(),
		clk,
		logger,
	)
	if err != nil {
		_ = t.Close()
		p.ShutdownNow()
		_ = mon.Close()
		return nil, fmt.Errorf("assemble: nodes service: %w", err)
	}

	return &componentGraph{
		config:      cfg,
		environment: env,
		monitor:     mon,
		pool:        p,
		transport:   t,
		nodes:       nodes,
		internal:    newInternalClient(nodes, p, mon, logger),
	}, nil
}
