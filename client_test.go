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
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/seastore-io/seastore-go/internal/transport/transporttest"
)

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never held")
}

func newTestClient(t *testing.T, clusterName string, opts ...Option) *Client {
	t.Helper()

	opts = append([]Option{
		WithEnvironmentConfig(false),
		WithSettings(map[string]interface{}{
			"cluster.name":              clusterName,
			"client.connect_timeout":    "500ms",
			"client.reconnect_interval": "50ms",
			"client.shutdown_grace":     "1s",
		}),
	}, opts...)

	c, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Close()
	})
	return c
}

func TestClient_Lifecycle(t *testing.T) {
	node, err := transporttest.NewNode("test-cluster")
	require.NoError(t, err)
	defer node.Close()

	c := newTestClient(t, "test-cluster")

	require.NoError(t, c.AddAddress(node.Addr()))
	waitFor(t, time.Second, func() bool {
		return len(c.ConnectedNodes()) == 1
	})

	resp, err := c.PrepareIndex().
		Index("orders").
		ID("order-1").
		Document(map[string]interface{}{"total": 17.5}).
		Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "orders", resp.Index)
	assert.Equal(t, "order-1", resp.ID)

	require.NoError(t, c.RemoveAddress(node.Addr()))
	assert.Empty(t, c.ConnectedNodes())
	assert.Empty(t, c.ListedNodes())

	_, err = c.Get(context.Background(), &GetRequest{Index: "orders", ID: "order-1"})
	require.ErrorIs(t, err, ErrNoAvailableNodes)

	require.NoError(t, c.Close())
}

func TestClient_NoAddresses(t *testing.T) {
	c := newTestClient(t, "test-cluster")

	_, err := c.Index(context.Background(), &IndexRequest{Index: "orders"})
	require.ErrorIs(t, err, ErrNoAvailableNodes)

	done := make(chan error, 1)
	c.GetAsync(context.Background(), &GetRequest{Index: "orders", ID: "1"},
		func(resp *GetResponse, err error) {
			done <- err
		})
	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrNoAvailableNodes)
	case <-time.After(time.Second):
		t.Fatal("callback never invoked")
	}
}

func TestClient_CloseIdempotent(t *testing.T) {
	c := newTestClient(t, "test-cluster")

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestClient_CloseNoAddresses(t *testing.T) {
	c := newTestClient(t, "test-cluster")

	start := time.Now()
	require.NoError(t, c.Close())
	// Nothing to drain so shutdown must not wait out the grace period.
	assert.Less(t, time.Since(start), time.Second)
}

func TestClient_ClosedOperationsFail(t *testing.T) {
	node, err := transporttest.NewNode("test-cluster")
	require.NoError(t, err)
	defer node.Close()

	c := newTestClient(t, "test-cluster")
	require.NoError(t, c.AddAddress(node.Addr()))
	waitFor(t, time.Second, func() bool {
		return len(c.ConnectedNodes()) == 1
	})

	require.NoError(t, c.Close())

	_, err = c.Index(context.Background(), &IndexRequest{Index: "orders"})
	require.ErrorIs(t, err, ErrClientClosed)

	assert.ErrorIs(t, c.AddAddress(node.Addr()), ErrClientClosed)
	assert.ErrorIs(t, c.RemoveAddress(node.Addr()), ErrClientClosed)

	done := make(chan error, 1)
	c.IndexAsync(context.Background(), &IndexRequest{Index: "orders"},
		func(resp *IndexResponse, err error) {
			done <- err
		})
	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrClientClosed)
	case <-time.After(time.Second):
		t.Fatal("callback never invoked")
	}
}

func TestClient_ForcedClientMode(t *testing.T) {
	// Explicit settings cannot turn the client into a server or a cluster
	// member.
	c := newTestClient(t, "test-cluster", WithSettings(map[string]interface{}{
		"network.server": true,
		"node.client":    false,
	}))

	assert.False(t, c.graph.config.IsServer())
	assert.True(t, c.graph.config.IsClient())
}

func TestClient_ConnectTimeoutOption(t *testing.T) {
	c, err := New(
		WithEnvironmentConfig(false),
		WithConnectTimeout(250*time.Millisecond),
	)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, 250*time.Millisecond, c.graph.config.ConnectTimeout())
}

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}

type testPlugin struct {
	name     string
	settings map[string]interface{}
	services []io.Closer
}

func (p *testPlugin) Name() string {
	return p.name
}

func (p *testPlugin) Settings() map[string]interface{} {
	return p.settings
}

func (p *testPlugin) Services() []io.Closer {
	return p.services
}

func TestClient_PluginSettings(t *testing.T) {
	plugin := &testPlugin{
		name: "archive",
		settings: map[string]interface{}{
			"cluster.name":  "from-plugin",
			"archive.level": 3,
		},
	}

	c, err := New(
		WithEnvironmentConfig(false),
		WithSettings(map[string]interface{}{
			"cluster.name": "from-explicit",
		}),
		WithPlugins(plugin),
	)
	require.NoError(t, err)
	defer c.Close()

	// Plugin settings override explicit settings.
	assert.Equal(t, "from-plugin", c.graph.config.ClusterName())
	assert.Equal(t, 3, c.graph.config.GetInt("archive.level"))
}

func TestClient_PluginServicesClosed(t *testing.T) {
	closedA := atomic.NewBool(false)
	closedB := atomic.NewBool(false)
	plugin := &testPlugin{
		name: "archive",
		services: []io.Closer{
			closerFunc(func() error {
				closedA.Store(true)
				return nil
			}),
			closerFunc(func() error {
				closedB.Store(true)
				return nil
			}),
		},
	}

	c, err := New(WithEnvironmentConfig(false), WithPlugins(plugin))
	require.NoError(t, err)

	require.NoError(t, c.Close())
	assert.True(t, closedA.Load())
	assert.True(t, closedB.Load())
}

func TestClient_PluginServiceFailureSuppressed(t *testing.T) {
	closedAfter := atomic.NewBool(false)
	failure := errors.New("flush failed")
	plugin := &testPlugin{
		name: "archive",
		services: []io.Closer{
			closerFunc(func() error {
				return failure
			}),
			// A failing service must not stop the remaining steps.
			closerFunc(func() error {
				closedAfter.Store(true)
				return nil
			}),
		},
	}

	c, err := New(WithEnvironmentConfig(false), WithPlugins(plugin))
	require.NoError(t, err)

	err = c.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, failure)
	assert.True(t, closedAfter.Load())

	// Repeated close does not re-run the steps.
	require.NoError(t, c.Close())
}

func TestClient_PluginServicePanicSuppressed(t *testing.T) {
	plugin := &testPlugin{
		name: "archive",
		services: []io.Closer{
			closerFunc(func() error {
				panic("boom")
			}),
		},
	}

	c, err := New(WithEnvironmentConfig(false), WithPlugins(plugin))
	require.NoError(t, err)

	err = c.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
}

func TestClient_Settings(t *testing.T) {
	c := newTestClient(t, "test-cluster")

	settings := c.Settings()
	cluster, ok := settings["cluster"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "test-cluster", cluster["name"])

	// The returned map is a copy.
	settings["cluster"] = nil
	assert.Equal(t, "test-cluster", c.graph.config.ClusterName())
}
