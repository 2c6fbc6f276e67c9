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
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seastore-io/seastore-go/internal/transport"
	"github.com/seastore-io/seastore-go/internal/transport/transporttest"
)

func newTestNodesService(t *testing.T, clusterName string) *nodesService {
	t.Helper()

	tr := transport.New(transport.Options{
		ClusterName:    clusterName,
		ConnectTimeout: 500 * time.Millisecond,
	})
	require.NoError(t, tr.Start())

	mon := newMonitor(clock.New(), zap.NewNop())

	s, err := newNodesService(
		tr, mon, clusterName, 50*time.Millisecond, 16, clock.New(), zap.NewNop(),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close()
		_ = tr.Close()
		_ = mon.Close()
	})
	return s
}

func addrsOf(nodes []Node) []string {
	addrs := make([]string, 0, len(nodes))
	for _, n := range nodes {
		addrs = append(addrs, n.Address)
	}
	return addrs
}

func TestNodes_ListedTracksAddRemove(t *testing.T) {
	s := newTestNodesService(t, "test-cluster")

	require.NoError(t, s.AddAddresses("127.0.0.1:1", "127.0.0.1:2"))
	// Duplicates are no-ops.
	require.NoError(t, s.AddAddresses("127.0.0.1:1"))

	assert.Equal(
		t,
		[]string{"127.0.0.1:1", "127.0.0.1:2"},
		addrsOf(s.ListedNodes()),
	)
	assert.Equal(
		t,
		[]string{"127.0.0.1:1", "127.0.0.1:2"},
		s.TransportAddresses(),
	)

	require.NoError(t, s.RemoveAddress("127.0.0.1:1"))
	// Removing an unlisted address is a no-op.
	require.NoError(t, s.RemoveAddress("127.0.0.1:1"))

	assert.Equal(t, []string{"127.0.0.1:2"}, addrsOf(s.ListedNodes()))
}

func TestNodes_ConnectsToLiveNode(t *testing.T) {
	node, err := transporttest.NewNode("test-cluster")
	require.NoError(t, err)
	defer node.Close()

	s := newTestNodesService(t, "test-cluster")
	require.NoError(t, s.AddAddresses(node.Addr()))

	waitFor(t, time.Second, func() bool {
		return len(s.ConnectedNodes()) == 1
	})

	connected := s.ConnectedNodes()
	require.Len(t, connected, 1)
	assert.Equal(t, node.Addr(), connected[0].Address)
	assert.Equal(t, node.Info().ID, connected[0].ID)
	assert.Equal(t, "test-cluster", connected[0].ClusterName)

	// Once connected the listed snapshot carries the node identity too.
	listed := s.ListedNodes()
	require.Len(t, listed, 1)
	assert.Equal(t, node.Info().ID, listed[0].ID)
}

func TestNodes_ConnectedSubsetOfListed(t *testing.T) {
	node, err := transporttest.NewNode("test-cluster")
	require.NoError(t, err)
	defer node.Close()

	s := newTestNodesService(t, "test-cluster")
	require.NoError(t, s.AddAddresses("127.0.0.1:1", node.Addr()))

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		listed := map[string]bool{}
		for _, addr := range addrsOf(s.ListedNodes()) {
			listed[addr] = true
		}
		for _, addr := range addrsOf(s.ConnectedNodes()) {
			assert.True(t, listed[addr])
		}
		time.Sleep(10 * time.Millisecond)
	}

	waitFor(t, time.Second, func() bool {
		return len(s.ConnectedNodes()) == 1
	})
	assert.Len(t, s.ListedNodes(), 2)
}

func TestNodes_RemoveConnected(t *testing.T) {
	node, err := transporttest.NewNode("test-cluster")
	require.NoError(t, err)
	defer node.Close()

	s := newTestNodesService(t, "test-cluster")
	require.NoError(t, s.AddAddresses(node.Addr()))

	waitFor(t, time.Second, func() bool {
		return len(s.ConnectedNodes()) == 1
	})

	require.NoError(t, s.RemoveAddress(node.Addr()))

	assert.Empty(t, s.ConnectedNodes())
	assert.Empty(t, s.ListedNodes())
}

func TestNodes_ReAddAfterRemove(t *testing.T) {
	node, err := transporttest.NewNode("test-cluster")
	require.NoError(t, err)
	defer node.Close()

	s := newTestNodesService(t, "test-cluster")
	require.NoError(t, s.AddAddresses(node.Addr()))
	waitFor(t, time.Second, func() bool {
		return len(s.ConnectedNodes()) == 1
	})

	require.NoError(t, s.RemoveAddress(node.Addr()))
	assert.Empty(t, s.ConnectedNodes())

	// No permanent blacklist: a removed address can come back.
	require.NoError(t, s.AddAddresses(node.Addr()))
	waitFor(t, time.Second, func() bool {
		return len(s.ConnectedNodes()) == 1
	})
}

func TestNodes_NodeShutdownDemotes(t *testing.T) {
	node, err := transporttest.NewNode("test-cluster")
	require.NoError(t, err)

	s := newTestNodesService(t, "test-cluster")
	require.NoError(t, s.AddAddresses(node.Addr()))
	waitFor(t, time.Second, func() bool {
		return len(s.ConnectedNodes()) == 1
	})

	node.Close()

	// The dropped node leaves the connected set but stays listed and in
	// the retry cycle.
	waitFor(t, 2*time.Second, func() bool {
		return len(s.ConnectedNodes()) == 0
	})
	assert.Equal(t, []string{node.Addr()}, addrsOf(s.ListedNodes()))
}

func TestNodes_PromotionReplacesExistingConn(t *testing.T) {
	node, err := transporttest.NewNode("test-cluster")
	require.NoError(t, err)
	defer node.Close()

	s := newTestNodesService(t, "test-cluster")
	require.NoError(t, s.AddAddresses(node.Addr()))
	waitFor(t, time.Second, func() bool {
		return len(s.ConnectedNodes()) == 1
	})

	s.mu.Lock()
	prev := s.states[node.Addr()].conn
	s.mu.Unlock()
	require.NotNil(t, prev)

	// A second connect racing the established one must not leak the
	// connection it replaces.
	s.wg.Add(1)
	s.connect(node.Addr())

	assert.False(t, prev.Alive())
	assert.Len(t, s.ConnectedNodes(), 1)
}

func TestNodes_ClusterMismatchNeverConnects(t *testing.T) {
	node, err := transporttest.NewNode("other-cluster")
	require.NoError(t, err)
	defer node.Close()

	s := newTestNodesService(t, "test-cluster")
	require.NoError(t, s.AddAddresses(node.Addr()))

	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, s.ConnectedNodes())
	assert.Equal(t, []string{node.Addr()}, addrsOf(s.ListedNodes()))
}

func TestNodes_ClosedErrors(t *testing.T) {
	s := newTestNodesService(t, "test-cluster")
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.AddAddresses("127.0.0.1:1"), ErrClientClosed)
	assert.ErrorIs(t, s.RemoveAddress("127.0.0.1:1"), ErrClientClosed)
	assert.Empty(t, s.ListedNodes())
}
