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

// Package transporttest runs an in-process cluster node speaking the
// client's wire protocol, for hermetic tests.
package transporttest

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/seastore-io/seastore-go/internal/transport"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Handler serves one operation kind, returning the response payload.
type Handler func(body []byte) ([]byte, error)

// Node is a fake cluster node listening on a real local socket.
type Node struct {
	info transport.NodeInfo

	srv *grpc.Server
	lis net.Listener

	handlers map[string]Handler
	received []string
	// mu protects handlers and received.
	mu sync.Mutex
}

// NewNode starts a fake node for the given cluster on an ephemeral local
// port.
func NewNode(clusterName string) (*Node, error) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("transporttest: listen: %w", err)
	}

	id := uuid.New().String()
	n := &Node{
		info: transport.NodeInfo{
			ID:          id,
			Name:        "node-" + id[:8],
			Address:     lis.Addr().String(),
			ClusterName: clusterName,
			Version:     "0.1.0",
		},
		srv:      grpc.NewServer(grpc.ForceServerCodec(transport.Codec{})),
		lis:      lis,
		handlers: make(map[string]Handler),
	}

	n.srv.RegisterService(&grpc.ServiceDesc{
		ServiceName: transport.ServiceName,
		HandlerType: (*interface{})(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "Handshake",
				Handler:    n.handleHandshake,
			},
			{
				MethodName: "Execute",
				Handler:    n.handleExecute,
			},
		},
	}, nil)

	go func() {
		// Serve returns on Stop.
		_ = n.srv.Serve(lis)
	}()

	return n, nil
}

// Info returns the identity the node reports on handshake.
func (n *Node) Info() transport.NodeInfo {
	return n.info
}

// Addr returns the node's listen address.
func (n *Node) Addr() string {
	return n.lis.Addr().String()
}

// Handle registers a handler for the given operation kind. Operations
// without a handler are echoed back unchanged.
func (n *Node) Handle(op string, h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[op] = h
}

// Received returns the operation kinds served so far, in order.
func (n *Node) Received() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.received...)
}

// Close stops the node. Open connections are closed immediately.
func (n *Node) Close() {
	n.srv.Stop()
}

func (n *Node) handleHandshake(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	var frame []byte
	if err := dec(&frame); err != nil {
		return nil, err
	}
	payload, err := transport.DecodeFrame(frame)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	var req transport.HandshakeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.ClusterName != n.info.ClusterName {
		return nil, status.Errorf(
			codes.FailedPrecondition,
			"cluster name mismatch: have %s, want %s",
			req.ClusterName, n.info.ClusterName,
		)
	}

	resp, err := json.Marshal(&n.info)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out := transport.EncodeFrame(resp, false, 0)
	return &out, nil
}

func (n *Node) handleExecute(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	var frame []byte
	if err := dec(&frame); err != nil {
		return nil, err
	}
	env, err := transport.DecodeEnvelope(frame)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	n.mu.Lock()
	n.received = append(n.received, env.Op)
	handler := n.handlers[env.Op]
	n.mu.Unlock()

	body := []byte(env.Body)
	if handler != nil {
		body, err = handler(body)
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
	}

	out := transport.EncodeFrame(body, false, 0)
	return &out, nil
}
