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

// Package seastore implements a transport client for a Seastore cluster.
//
// The client connects to one or more cluster nodes directly by address
// without joining the cluster as a member node. It only ever dials out:
// no listening socket is bound and the forced client-mode settings cannot
// be overridden.
//
// # Construction
//
// Build a client with New, then register the addresses of the nodes to
// use:
//
//	client, err := seastore.New(
//		seastore.WithSettings(map[string]interface{}{
//			"cluster.name": "orders",
//		}),
//	)
//	if err != nil {
//		// ...
//	}
//	defer client.Close()
//
//	client.AddAddresses("192.168.1.1:9300", "192.168.1.2:9300")
//
// By default settings are also loaded from a seastore config file and
// SEASTORE_* environment variables; pass
// seastore.WithEnvironmentConfig(false) to use only explicit settings.
//
// # Addresses and nodes
//
// Registered addresses are connection candidates, not connections. The
// client connects to each candidate in the background and reconnects
// automatically when a node goes away and comes back; an unreachable
// address stays registered and keeps being retried until it is removed.
//
// ListedNodes returns the registered candidates, ConnectedNodes the
// subset the client currently holds a live connection to. Both return
// point-in-time copies that are safe to use while the client keeps
// connecting in the background.
//
// # Operations
//
// Operations are dispatched round-robin over the connected nodes. Each
// operation has a blocking form and a callback form, plus a builder:
//
//	resp, err := client.PrepareIndex().
//		Index("orders").
//		ID("order-123").
//		Document(map[string]interface{}{"total": 42}).
//		Execute(ctx)
//
//	client.IndexAsync(ctx, req, func(resp *seastore.IndexResponse, err error) {
//		// Runs on a client worker, never on the calling goroutine.
//	})
//
// When no connected node is available dispatch fails fast with
// ErrNoAvailableNodes; the client never retries an operation on its own.
//
// # Shutdown
//
// Close stops background reconnection, closes every connection and shuts
// down the client's subsystems in order. Teardown is best-effort: a
// subsystem failing to stop does not prevent stopping the rest, and the
// suppressed failures are returned aggregated. After Close every
// operation fails with ErrClientClosed.
package seastore
