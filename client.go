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
	"context"
	"fmt"
	"time"

	multierror "github.com/hashicorp/go-multierror"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/seastore-io/seastore-go/internal/config"
)

// Client connects to a Seastore cluster without joining it as a member.
//
// Register candidate node addresses with AddAddresses; the client keeps a
// background process (re)connecting to them as nodes come and go and
// dispatches operations round-robin over the currently connected nodes.
type Client struct {
	graph   *componentGraph
	plugins []Plugin

	shutdownGrace time.Duration

	closed *atomic.Bool

	logger *zap.Logger
}

// New constructs a client from the given options.
//
// Settings are resolved once: defaults, then settings discovered from the
// seastore config file and SEASTORE_* environment variables (unless
// disabled with WithEnvironmentConfig(false)), then explicit settings,
// then plugin settings. The client is always forced into client mode
// regardless of what any layer says.
func New(opts ...Option) (*Client, error) {
	options := defaultOptions()
	for _, o := range opts {
		o.apply(options)
	}

	if options.connectTimeout > 0 {
		options.settings[config.KeyConnectTimeout] = options.connectTimeout
	}

	pluginSettings := make([]map[string]interface{}, 0, len(options.plugins))
	for _, p := range options.plugins {
		if settings := p.Settings(); len(settings) > 0 {
			pluginSettings = append(pluginSettings, settings)
		}
	}

	cfg, env, err := config.Resolve(
		options.settings, options.loadEnvironment, pluginSettings...,
	)
	if err != nil {
		return nil, fmt.Errorf("seastore: %w", err)
	}

	graph, err := newComponentGraph(cfg, env, options.clock, options.logger)
	if err != nil {
		return nil, fmt.Errorf("seastore: %w", err)
	}

	options.logger.Info(
		"client started",
		zap.String("cluster", cfg.ClusterName()),
		zap.String("home", env.HomeDir),
	)

	return &Client{
		graph:         graph,
		plugins:       options.plugins,
		shutdownGrace: cfg.ShutdownGrace(),
		closed:        atomic.NewBool(false),
		logger:        options.logger,
	}, nil
}

// Settings returns a copy of the resolved configuration snapshot.
func (c *Client) Settings() map[string]interface{} {
	return c.graph.config.Settings()
}

// AddAddress registers an address to connect to. See AddAddresses.
func (c *Client) AddAddress(addr string) error {
	return c.AddAddresses(addr)
}

// AddAddresses registers addresses as connection candidates. The node an
// address points to is used once a connection to it succeeds; unreachable
// addresses are retried in the background until removed. Adding an
// already listed address is a no-op.
func (c *Client) AddAddresses(addrs ...string) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.graph.nodes.AddAddresses(addrs...)
}

// RemoveAddress unregisters an address, closing its connection if one is
// established.
func (c *Client) RemoveAddress(addr string) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.graph.nodes.RemoveAddress(addr)
}

// ListedNodes returns the registered addresses, in the order they were
// added.
func (c *Client) ListedNodes() []Node {
	return c.graph.nodes.ListedNodes()
}

// ConnectedNodes returns the nodes the client currently holds a live
// connection to. Always a subset of ListedNodes.
func (c *Client) ConnectedNodes() []Node {
	return c.graph.nodes.ConnectedNodes()
}

// TransportAddresses returns the raw registered addresses.
func (c *Client) TransportAddresses() []string {
	return c.graph.nodes.TransportAddresses()
}

// Index stores a document.
func (c *Client) Index(ctx context.Context, req *IndexRequest) (*IndexResponse, error) {
	return Execute(ctx, c, OpIndex, req)
}

// IndexAsync stores a document, delivering the result to cb on a pool
// worker.
func (c *Client) IndexAsync(ctx context.Context, req *IndexRequest, cb func(*IndexResponse, error)) {
	ExecuteAsync(ctx, c, OpIndex, req, cb)
}

// Update applies a partial document update.
func (c *Client) Update(ctx context.Context, req *UpdateRequest) (*UpdateResponse, error) {
	return Execute(ctx, c, OpUpdate, req)
}

func (c *Client) UpdateAsync(ctx context.Context, req *UpdateRequest, cb func(*UpdateResponse, error)) {
	ExecuteAsync(ctx, c, OpUpdate, req, cb)
}

// Delete removes a document.
func (c *Client) Delete(ctx context.Context, req *DeleteRequest) (*DeleteResponse, error) {
	return Execute(ctx, c, OpDelete, req)
}

func (c *Client) DeleteAsync(ctx context.Context, req *DeleteRequest, cb func(*DeleteResponse, error)) {
	ExecuteAsync(ctx, c, OpDelete, req, cb)
}

// Bulk executes a batch of index, update and delete actions in one round
// trip.
func (c *Client) Bulk(ctx context.Context, req *BulkRequest) (*BulkResponse, error) {
	return Execute(ctx, c, OpBulk, req)
}

func (c *Client) BulkAsync(ctx context.Context, req *BulkRequest, cb func(*BulkResponse, error)) {
	ExecuteAsync(ctx, c, OpBulk, req, cb)
}

// Get fetches a document by id.
func (c *Client) Get(ctx context.Context, req *GetRequest) (*GetResponse, error) {
	return Execute(ctx, c, OpGet, req)
}

func (c *Client) GetAsync(ctx context.Context, req *GetRequest, cb func(*GetResponse, error)) {
	ExecuteAsync(ctx, c, OpGet, req, cb)
}

// MultiGet fetches several documents in one round trip.
func (c *Client) MultiGet(ctx context.Context, req *MultiGetRequest) (*MultiGetResponse, error) {
	return Execute(ctx, c, OpMultiGet, req)
}

func (c *Client) MultiGetAsync(ctx context.Context, req *MultiGetRequest, cb func(*MultiGetResponse, error)) {
	ExecuteAsync(ctx, c, OpMultiGet, req, cb)
}

// Percolate matches a document against the registered predicate queries
// of an index.
func (c *Client) Percolate(ctx context.Context, req *PercolateRequest) (*PercolateResponse, error) {
	return Execute(ctx, c, OpPercolate, req)
}

func (c *Client) PercolateAsync(ctx context.Context, req *PercolateRequest, cb func(*PercolateResponse, error)) {
	ExecuteAsync(ctx, c, OpPercolate, req, cb)
}

// Close shuts the client down: stop background reconnection and close
// connected nodes, stop the transport, stop the monitor, close plugin
// services, then shut down the worker pool waiting up to the shutdown
// grace period before force-terminating.
//
// Every step is best-effort. A failing step is recorded and the remaining
// steps still run; the aggregate of suppressed failures is returned for
// observability. Close is idempotent and operations issued after Close
// fail with ErrClientClosed.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	var suppressed error
	record := func(step string, fn func() error) {
		if err := closeStep(fn); err != nil {
			c.logger.Warn(
				"shutdown step failed",
				zap.String("step", step),
				zap.Error(err),
			)
			suppressed = multierror.Append(
				suppressed, fmt.Errorf("%s: %w", step, err),
			)
		}
	}

	record("nodes", c.graph.nodes.Close)
	record("transport", c.graph.transport.Close)
	record("monitor", c.graph.monitor.Close)

	for _, p := range c.plugins {
		for i, svc := range p.Services() {
			svc := svc
			record(
				fmt.Sprintf("plugin %s service %d", p.Name(), i),
				svc.Close,
			)
		}
	}

	record("pool", func() error {
		c.graph.pool.Shutdown()
		drained := c.graph.pool.AwaitTermination(c.shutdownGrace)
		c.graph.pool.ShutdownNow()
		if !drained {
			return fmt.Errorf("did not drain within %s", c.shutdownGrace)
		}
		return nil
	})

	c.graph.nodes.purgeCache()

	c.logger.Info("client closed")
	return suppressed
}

// closeStep runs one teardown step, converting a panic into an error so a
// misbehaving subsystem cannot abort the remaining steps.
func closeStep(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
