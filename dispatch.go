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

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/seastore-io/seastore-go/internal/pool"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Operation kinds understood by cluster nodes.
const (
	OpKindIndex     = "index"
	OpKindUpdate    = "update"
	OpKindDelete    = "delete"
	OpKindBulk      = "bulk"
	OpKindGet       = "get"
	OpKindMultiGet  = "multi_get"
	OpKindPercolate = "percolate"
)

// Operation ties an operation kind to its request and response types. The
// catalogue of operations is fixed by the cluster protocol; the dispatch
// path is the same for every kind.
type Operation[Req any, Resp any] struct {
	Kind string
}

var (
	OpIndex     = Operation[IndexRequest, IndexResponse]{Kind: OpKindIndex}
	OpUpdate    = Operation[UpdateRequest, UpdateResponse]{Kind: OpKindUpdate}
	OpDelete    = Operation[DeleteRequest, DeleteResponse]{Kind: OpKindDelete}
	OpBulk      = Operation[BulkRequest, BulkResponse]{Kind: OpKindBulk}
	OpGet       = Operation[GetRequest, GetResponse]{Kind: OpKindGet}
	OpMultiGet  = Operation[MultiGetRequest, MultiGetResponse]{Kind: OpKindMultiGet}
	OpPercolate = Operation[PercolateRequest, PercolateResponse]{Kind: OpKindPercolate}
)

// internalClient serializes and transmits single operations. Node
// selection is delegated to the nodes service, re-selected round-robin on
// every call.
type internalClient struct {
	nodes   *nodesService
	pool    *pool.Pool
	monitor *monitor

	seq *atomic.Uint64

	logger *zap.Logger
}

func newInternalClient(
	nodes *nodesService,
	p *pool.Pool,
	mon *monitor,
	logger *zap.Logger,
) *internalClient {
	return &internalClient{
		nodes:   nodes,
		pool:    p,
		monitor: mon,
		seq:     atomic.NewUint64(0),
		logger:  logger,
	}
}

// execute sends one operation to a connected node and blocks for the
// response. There is no automatic retry.
func (c *internalClient) execute(ctx context.Context, op string, body []byte) ([]byte, error) {
	conns := c.nodes.connectedConns()
	if len(conns) == 0 {
		return nil, ErrNoAvailableNodes
	}
	conn := conns[c.seq.Inc()%uint64(len(conns))]

	c.monitor.dispatches.Inc()

	out, err := conn.Invoke(ctx, op, body)
	if err != nil {
		c.monitor.dispatchFailures.Inc()
		c.logger.Debug(
			"dispatch failed",
			zap.String("op", op),
			zap.String("addr", conn.Addr()),
			zap.Error(err),
		)
		return nil, &TransportError{Op: op, Addr: conn.Addr(), Err: err}
	}

	c.logger.Debug(
		"dispatched",
		zap.String("op", op),
		zap.String("addr", conn.Addr()),
	)
	return out, nil
}

// executeAsync runs the operation on a pool worker and invokes cb exactly
// once with the result. cb never runs on the caller's goroutine.
func (c *internalClient) executeAsync(
	ctx context.Context,
	op string,
	body []byte,
	cb func([]byte, error),
) {
	c.callback(func() {
		cb(c.execute(ctx, op, body))
	})
}

// callback schedules task on a pool worker, falling back to a fresh
// goroutine if the pool cannot accept it so the caller is never called
// back inline.
func (c *internalClient) callback(task func()) {
	if err := c.pool.Submit(task); err != nil {
		c.logger.Warn("pool rejected callback", zap.Error(err))
		go task()
	}
}

// Execute dispatches a single operation to the cluster and blocks until
// the response or a transport failure arrives.
func Execute[Req any, Resp any](
	ctx context.Context,
	c *Client,
	op Operation[Req, Resp],
	req *Req,
) (*Resp, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("seastore: encode %s: %w", op.Kind, err)
	}

	out, err := c.graph.internal.execute(ctx, op.Kind, body)
	if err != nil {
		return nil, err
	}

	resp := new(Resp)
	if err := json.Unmarshal(out, resp); err != nil {
		return nil, fmt.Errorf("seastore: decode %s: %w", op.Kind, err)
	}
	return resp, nil
}

// ExecuteAsync dispatches a single operation and calls cb with the result
// on a pool worker. cb is invoked exactly once and never on the calling
// goroutine. Observably equivalent to Execute apart from scheduling.
func ExecuteAsync[Req any, Resp any](
	ctx context.Context,
	c *Client,
	op Operation[Req, Resp],
	req *Req,
	cb func(*Resp, error),
) {
	if c.closed.Load() {
		go cb(nil, ErrClientClosed)
		return
	}

	body, err := json.Marshal(req)
	if err != nil {
		encodeErr := fmt.Errorf("seastore: encode %s: %w", op.Kind, err)
		c.graph.internal.callback(func() {
			cb(nil, encodeErr)
		})
		return
	}

	c.graph.internal.executeAsync(ctx, op.Kind, body, func(out []byte, err error) {
		if err != nil {
			cb(nil, err)
			return
		}
		resp := new(Resp)
		if err := json.Unmarshal(out, resp); err != nil {
			cb(nil, fmt.Errorf("seastore: decode %s: %w", op.Kind, err))
			return
		}
		cb(resp, nil)
	})
}
