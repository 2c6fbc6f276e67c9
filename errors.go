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
	"errors"
	"fmt"
)

var (
	// ErrNoAvailableNodes is returned when an operation is dispatched
	// while no connected nodes are available.
	ErrNoAvailableNodes = errors.New("seastore: no available nodes")

	// ErrClientClosed is returned by operations and address mutations
	// issued after Close.
	ErrClientClosed = errors.New("seastore: client closed")
)

// TransportError reports an I/O failure while dispatching an operation to
// a node. The client does not retry; retry policy belongs to the caller.
type TransportError struct {
	// Op is the operation kind being dispatched.
	Op string

	// Addr is the address of the node the operation was sent to.
	Addr string

	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("seastore: %s %s: %s", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
