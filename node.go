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
	"github.com/seastore-io/seastore-go/internal/transport"
)

// Node describes a cluster node the client knows about.
//
// A listed node only has an address until a connection succeeds. The
// identity fields are filled in from the handshake and stick around while
// the node is connected (or cached from an earlier connection).
type Node struct {
	// Address is the transport endpoint (host:port) the caller
	// registered. Node identity is the address: two nodes are the same
	// entry in the registry iff their addresses are equal.
	Address string

	// ID is a unique identifier reported by the node on handshake.
	ID string

	// Name is the human readable node name reported on handshake.
	Name string

	// ClusterName is the cluster the node belongs to.
	ClusterName string

	// Version identifies the software version running on the node.
	Version string
}

func (n *Node) Equal(o Node) bool {
	if n.Address != o.Address {
		return false
	}
	if n.ID != o.ID {
		return false
	}
	if n.Name != o.Name {
		return false
	}
	if n.ClusterName != o.ClusterName {
		return false
	}
	if n.Version != o.Version {
		return false
	}
	return true
}

func (n *Node) Copy() Node {
	return *n
}

func nodeFromInfo(addr string, info transport.NodeInfo) Node {
	return Node{
		Address:     addr,
		ID:          info.ID,
		Name:        info.Name,
		ClusterName: info.ClusterName,
		Version:     info.Version,
	}
}
