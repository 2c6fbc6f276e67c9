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

// Package transport implements the client side of the cluster's private
// wire protocol on top of gRPC.
//
// The transport only ever dials out. It never binds a listening socket as
// the client is not a cluster member.
package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
)

// Options configures the transport layer.
type Options struct {
	// ClusterName is sent on handshake. Nodes in a different cluster
	// reject the connection.
	ClusterName string

	// ConnectTimeout bounds each dial attempt.
	ConnectTimeout time.Duration

	// Compress enables frame compression for payloads of at least
	// CompressThreshold bytes.
	Compress          bool
	CompressThreshold int

	Logger *zap.Logger
}

// Transport dials cluster nodes and tracks the connections it opened so
// they can all be torn down on close.
type Transport struct {
	opts Options

	conns map[*Conn]struct{}
	// mu protects conns.
	mu sync.Mutex

	started *atomic.Bool
	closed  *atomic.Bool

	logger *zap.Logger
}

func New(opts Options) *Transport {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{
		opts:    opts,
		conns:   make(map[*Conn]struct{}),
		started: atomic.NewBool(false),
		closed:  atomic.NewBool(false),
		logger:  logger,
	}
}

// Start marks the transport ready. Client sockets are opened lazily by
// Dial so starting has no observable side effect beyond accepting dials.
func (t *Transport) Start() error {
	if t.closed.Load() {
		return fmt.Errorf("transport: closed")
	}
	t.started.Store(true)
	return nil
}

// Dial opens a connection to addr. The dial blocks until the connection
// is established or ctx expires.
func (t *Transport) Dial(ctx context.Context, addr string) (*Conn, error) {
	if !t.started.Load() || t.closed.Load() {
		return nil, fmt.Errorf("transport: not started")
	}

	ctx, cancel := context.WithTimeout(ctx, t.opts.ConnectTimeout)
	defer cancel()

	cc, err := grpc.DialContext(
		ctx,
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec{})),
		// Block until connected so we know the address is ok.
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}

	conn := &Conn{
		addr:   addr,
		cc:     cc,
		t:      t,
		closed: atomic.NewBool(false),
	}

	t.mu.Lock()
	if t.closed.Load() {
		t.mu.Unlock()
		cc.Close()
		return nil, fmt.Errorf("transport: closed")
	}
	t.conns[conn] = struct{}{}
	t.mu.Unlock()

	return conn, nil
}

// Close closes every connection opened by this transport. Dials issued
// after Close fail.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}

	t.mu.Lock()
	conns := make([]*Conn, 0, len(t.conns))
	for conn := range t.conns {
		conns = append(conns, conn)
	}
	t.conns = make(map[*Conn]struct{})
	t.mu.Unlock()

	for _, conn := range conns {
		if err := conn.doClose(); err != nil {
			t.logger.Warn(
				"close connection",
				zap.String("addr", conn.addr),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (t *Transport) forget(conn *Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns, conn)
}

// Conn is a live connection to one cluster node.
type Conn struct {
	addr string
	cc   *grpc.ClientConn
	t    *Transport

	closed *atomic.Bool
}

// Addr returns the address the connection was dialed with.
func (c *Conn) Addr() string {
	return c.addr
}

// Handshake exchanges identities with the remote node. It fails if the
// node belongs to a different cluster.
func (c *Conn) Handshake(ctx context.Context) (NodeInfo, error) {
	req, err := codecJSON.Marshal(&HandshakeRequest{
		ClusterName: c.t.opts.ClusterName,
	})
	if err != nil {
		return NodeInfo{}, fmt.Errorf("transport: handshake: %w", err)
	}

	in := EncodeFrame(req, false, 0)
	var out []byte
	if err := c.cc.Invoke(ctx, MethodHandshake, &in, &out); err != nil {
		return NodeInfo{}, fmt.Errorf("transport: handshake %s: %w", c.addr, err)
	}

	payload, err := DecodeFrame(out)
	if err != nil {
		return NodeInfo{}, err
	}
	var info NodeInfo
	if err := codecJSON.Unmarshal(payload, &info); err != nil {
		return NodeInfo{}, fmt.Errorf("transport: handshake %s: %w", c.addr, err)
	}
	return info, nil
}

// Invoke sends one operation to the node and returns the raw response
// payload.
func (c *Conn) Invoke(ctx context.Context, op string, body []byte) ([]byte, error) {
	in, err := EncodeEnvelope(
		op, body, c.t.opts.Compress, c.t.opts.CompressThreshold,
	)
	if err != nil {
		return nil, err
	}

	var out []byte
	if err := c.cc.Invoke(ctx, MethodExecute, &in, &out); err != nil {
		return nil, fmt.Errorf("transport: %s %s: %w", op, c.addr, err)
	}
	return DecodeFrame(out)
}

// State returns the connectivity state of the underlying connection.
func (c *Conn) State() connectivity.State {
	return c.cc.GetState()
}

// WaitStateChange blocks until the connectivity state leaves s or ctx is
// done, reporting false on ctx expiry.
func (c *Conn) WaitStateChange(ctx context.Context, s connectivity.State) bool {
	return c.cc.WaitForStateChange(ctx, s)
}

// Alive reports whether the connection is usable for dispatch. Dials
// block until Ready, so Idle means the node dropped the connection.
func (c *Conn) Alive() bool {
	switch c.cc.GetState() {
	case connectivity.Idle, connectivity.Shutdown, connectivity.TransientFailure:
		return false
	default:
		return !c.closed.Load()
	}
}

// Close closes the connection and removes it from the transport's
// tracked set.
func (c *Conn) Close() error {
	c.t.forget(c)
	return c.doClose()
}

func (c *Conn) doClose() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.cc.Close()
}
