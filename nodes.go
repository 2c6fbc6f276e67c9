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
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"google.golang.org/grpc/connectivity"

	"github.com/seastore-io/seastore-go/internal/transport"
)

const (
	initialRetryInterval = time.Second
	handshakeTimeout     = 5 * time.Second
)

// addrState tracks one listed address. An address is either idle (no
// connection, waiting for its next attempt), connecting (a dial is in
// flight) or connected (conn is set and alive).
type addrState struct {
	connecting  bool
	conn        *transport.Conn
	info        transport.NodeInfo
	retry       *backoff.ExponentialBackOff
	nextAttempt time.Time
}

// nodesService owns the set of listed addresses and the subset of
// currently connected nodes, and drives background (re)connection.
//
// This is the only concurrently mutated state in the client. All network
// I/O happens outside the mutex; only state transitions are synchronized.
type nodesService struct {
	transport         *transport.Transport
	monitor           *monitor
	clusterName       string
	reconnectInterval time.Duration
	clock             clock.Clock

	// listed holds registered addresses in insertion order. states has an
	// entry for every listed address and nothing else, so a connected
	// node is always a listed node.
	listed []string
	states map[string]*addrState
	closed bool
	// mu protects the above fields.
	mu sync.Mutex

	// infoCache remembers the identity of nodes seen on previous
	// connections, keyed by address. Instance scoped, purged on close.
	infoCache *lru.Cache[string, transport.NodeInfo]

	ctx    context.Context
	cancel context.CancelFunc
	ticker *clock.Ticker
	wg     sync.WaitGroup

	logger *zap.Logger
}

func newNodesService(
	t *transport.Transport,
	mon *monitor,
	clusterName string,
	reconnectInterval time.Duration,
	cacheSize int,
	clk clock.Clock,
	logger *zap.Logger,
) (*nodesService, error) {
	if cacheSize < 1 {
		cacheSize = 1
	}
	infoCache, err := lru.New[string, transport.NodeInfo](cacheSize)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &nodesService{
		transport:         t,
		monitor:           mon,
		clusterName:       clusterName,
		reconnectInterval: reconnectInterval,
		clock:             clk,
		states:            make(map[string]*addrState),
		infoCache:         infoCache,
		ctx:               ctx,
		cancel:            cancel,
		ticker:            clk.Ticker(reconnectInterval),
		logger:            logger,
	}

	s.wg.Add(1)
	go s.run()

	return s, nil
}

// AddAddresses registers the given addresses as connection candidates.
// Already listed addresses are no-ops. Each newly listed address triggers
// an asynchronous connection attempt; the caller is never blocked on
// network I/O.
func (s *nodesService) AddAddresses(addrs ...string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClientClosed
	}

	var added []string
	for _, addr := range addrs {
		if _, ok := s.states[addr]; ok {
			continue
		}
		retry := backoff.NewExponentialBackOff()
		retry.InitialInterval = initialRetryInterval
		// Retry for as long as the address stays listed.
		retry.MaxElapsedTime = 0

		s.listed = append(s.listed, addr)
		s.states[addr] = &addrState{
			connecting: true,
			retry:      retry,
		}
		added = append(added, addr)
	}
	s.mu.Unlock()

	for _, addr := range added {
		s.logger.Debug("address added", zap.String("addr", addr))

		s.wg.Add(1)
		go s.connect(addr)
	}
	return nil
}

// RemoveAddress unregisters the address. If it is currently connected the
// connection is closed. Removing an unlisted address is a no-op.
func (s *nodesService) RemoveAddress(addr string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClientClosed
	}

	var conn *transport.Conn
	if st, ok := s.states[addr]; ok {
		conn = st.conn
		delete(s.states, addr)
		for i, a := range s.listed {
			if a == addr {
				s.listed = append(s.listed[:i], s.listed[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			s.logger.Warn(
				"close removed node",
				zap.String("addr", addr),
				zap.Error(err),
			)
		}
	}

	s.logger.Debug("address removed", zap.String("addr", addr))
	return nil
}

// ListedNodes returns a point-in-time copy of the registered addresses in
// insertion order. Identity fields are filled in for nodes the client has
// connected to before.
func (s *nodesService) ListedNodes() []Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := make([]Node, 0, len(s.listed))
	for _, addr := range s.listed {
		if info, ok := s.infoCache.Get(addr); ok {
			nodes = append(nodes, nodeFromInfo(addr, info))
		} else {
			nodes = append(nodes, Node{Address: addr})
		}
	}
	return nodes
}

// ConnectedNodes returns a point-in-time copy of the nodes with a live
// connection, in listed order.
func (s *nodesService) ConnectedNodes() []Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	var nodes []Node
	for _, addr := range s.listed {
		st := s.states[addr]
		if st.conn != nil && st.conn.Alive() {
			nodes = append(nodes, nodeFromInfo(addr, st.info))
		}
	}
	return nodes
}

// TransportAddresses returns a copy of the raw registered addresses.
func (s *nodesService) TransportAddresses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.listed...)
}

// connectedConns returns the live connections in listed order for
// dispatch. Never blocks on network I/O.
func (s *nodesService) connectedConns() []*transport.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()

	var conns []*transport.Conn
	for _, addr := range s.listed {
		st := s.states[addr]
		if st.conn != nil && st.conn.Alive() {
			conns = append(conns, st.conn)
		}
	}
	return conns
}

// Close cancels background reconnection and closes every connected node.
func (s *nodesService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true

	var conns []*transport.Conn
	for _, st := range s.states {
		if st.conn != nil {
			conns = append(conns, st.conn)
		}
	}
	s.states = make(map[string]*addrState)
	s.listed = nil
	s.mu.Unlock()

	s.cancel()
	s.ticker.Stop()
	for _, conn := range conns {
		// Best effort; the transport closes stragglers.
		_ = conn.Close()
	}
	s.wg.Wait()
	return nil
}

// purgeCache drops the cached node identities. Final step of client
// shutdown.
func (s *nodesService) purgeCache() {
	s.infoCache.Purge()
}

func (s *nodesService) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.ticker.C:
			s.scan()
		}
	}
}

// scan demotes dropped connections and schedules connection attempts for
// listed addresses that are not connected, honoring per-address backoff.
func (s *nodesService) scan() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	now := s.clock.Now()
	var stale []*transport.Conn
	var attempts []string
	for _, addr := range s.listed {
		st := s.states[addr]
		if st.conn != nil && !st.conn.Alive() {
			stale = append(stale, st.conn)
			st.conn = nil
			st.nextAttempt = now.Add(st.retry.NextBackOff())
		}
		if st.conn == nil && !st.connecting && !now.Before(st.nextAttempt) {
			st.connecting = true
			attempts = append(attempts, addr)
		}
	}
	s.mu.Unlock()

	for _, conn := range stale {
		_ = conn.Close()
	}
	for _, addr := range attempts {
		s.wg.Add(1)
		go s.connect(addr)
	}
}

// connect dials addr and promotes it to connected on success. Runs on its
// own goroutine; holds no lock during network I/O.
func (s *nodesService) connect(addr string) {
	defer s.wg.Done()

	s.monitor.dialAttempts.Inc()

	conn, err := s.transport.Dial(s.ctx, addr)
	if err != nil {
		s.monitor.dialFailures.Inc()
		s.logger.Warn(
			"failed to connect to node",
			zap.String("addr", addr),
			zap.Error(err),
		)
		s.connectFailed(addr)
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, handshakeTimeout)
	info, err := conn.Handshake(ctx)
	cancel()
	if err != nil {
		_ = conn.Close()
		s.monitor.dialFailures.Inc()
		s.logger.Warn(
			"node handshake failed",
			zap.String("addr", addr),
			zap.Error(err),
		)
		s.connectFailed(addr)
		return
	}
	if info.ClusterName != s.clusterName {
		_ = conn.Close()
		s.monitor.dialFailures.Inc()
		s.logger.Warn(
			"node cluster mismatch",
			zap.String("addr", addr),
			zap.String("cluster", info.ClusterName),
			zap.String("expected", s.clusterName),
		)
		s.connectFailed(addr)
		return
	}
	s.monitor.handshakes.Inc()

	s.mu.Lock()
	st, ok := s.states[addr]
	if !ok || s.closed {
		// Removed or shut down while the dial was in flight.
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	// A concurrent connect may have promoted first, such as when the
	// address was removed and re-added while this dial was in flight.
	prev := st.conn
	st.connecting = false
	st.conn = conn
	st.info = info
	st.retry.Reset()
	st.nextAttempt = time.Time{}
	s.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}

	s.infoCache.Add(addr, info)

	s.logger.Info(
		"connected to node",
		zap.String("addr", addr),
		zap.String("id", info.ID),
		zap.String("name", info.Name),
	)

	s.wg.Add(1)
	go s.watch(addr, conn)
}

func (s *nodesService) connectFailed(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.states[addr]; ok {
		st.connecting = false
		st.nextAttempt = s.clock.Now().Add(st.retry.NextBackOff())
	}
}

// watch demotes the address back to disconnected when the connection
// drops. The address stays listed and re-enters the retry cycle.
func (s *nodesService) watch(addr string, conn *transport.Conn) {
	defer s.wg.Done()

	state := conn.State()
	for {
		// The connection was Ready on promotion, so Idle means the node
		// dropped it.
		switch state {
		case connectivity.Idle, connectivity.Shutdown, connectivity.TransientFailure:
			s.disconnected(addr, conn)
			return
		}
		if !conn.WaitStateChange(s.ctx, state) {
			// Client closing.
			return
		}
		state = conn.State()
	}
}

func (s *nodesService) disconnected(addr string, conn *transport.Conn) {
	s.mu.Lock()
	if st, ok := s.states[addr]; ok && st.conn == conn {
		st.conn = nil
		st.nextAttempt = s.clock.Now().Add(st.retry.NextBackOff())
	}
	s.mu.Unlock()

	_ = conn.Close()

	s.logger.Warn("node disconnected", zap.String("addr", addr))
}
