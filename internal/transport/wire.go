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

package transport

import (
	"encoding/json"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/s2"
)

// Wire method names of the private cluster protocol.
const (
	ServiceName     = "seastore.v1.Transport"
	MethodHandshake = "/seastore.v1.Transport/Handshake"
	MethodExecute   = "/seastore.v1.Transport/Execute"
)

// Frame flags. The first byte of every frame says how the rest is encoded.
const (
	frameRaw        = byte(0)
	frameCompressed = byte(1)
)

var codecJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Codec is a passthrough gRPC codec. Frames are opaque byte slices; the
// cluster protocol does its own enveloping so no protobuf stubs are needed.
type Codec struct{}

func (Codec) Marshal(v interface{}) ([]byte, error) {
	b, ok := v.(*[]byte)
	if !ok {
		return nil, fmt.Errorf("transport: codec: unexpected type %T", v)
	}
	return *b, nil
}

func (Codec) Unmarshal(data []byte, v interface{}) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("transport: codec: unexpected type %T", v)
	}
	// grpc may reuse the buffer once Unmarshal returns.
	*b = append([]byte(nil), data...)
	return nil
}

func (Codec) Name() string {
	return "seastore-raw"
}

// Envelope carries one operation over the Execute method.
type Envelope struct {
	Op   string          `json:"op"`
	Body json.RawMessage `json:"body,omitempty"`
}

// HandshakeRequest is sent on connection establishment. The node rejects
// clients configured for a different cluster.
type HandshakeRequest struct {
	ClusterName string `json:"cluster_name"`
}

// NodeInfo identifies the remote node a connection is established to.
type NodeInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	ClusterName string `json:"cluster_name"`
	Version     string `json:"version"`
}

// EncodeFrame encodes payload into a wire frame, compressing it when
// compress is set and the payload is at least threshold bytes.
func EncodeFrame(payload []byte, compress bool, threshold int) []byte {
	if compress && len(payload) >= threshold {
		encoded := s2.Encode(nil, payload)
		frame := make([]byte, 0, 1+len(encoded))
		frame = append(frame, frameCompressed)
		return append(frame, encoded...)
	}
	frame := make([]byte, 0, 1+len(payload))
	frame = append(frame, frameRaw)
	return append(frame, payload...)
}

// DecodeFrame returns the payload of a wire frame.
func DecodeFrame(frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("transport: empty frame")
	}
	switch frame[0] {
	case frameRaw:
		return frame[1:], nil
	case frameCompressed:
		payload, err := s2.Decode(nil, frame[1:])
		if err != nil {
			return nil, fmt.Errorf("transport: decompress frame: %w", err)
		}
		return payload, nil
	default:
		return nil, fmt.Errorf("transport: unknown frame flag %d", frame[0])
	}
}

// EncodeEnvelope encodes an operation envelope into a frame.
func EncodeEnvelope(op string, body []byte, compress bool, threshold int) ([]byte, error) {
	payload, err := codecJSON.Marshal(&Envelope{Op: op, Body: body})
	if err != nil {
		return nil, fmt.Errorf("transport: encode envelope: %w", err)
	}
	return EncodeFrame(payload, compress, threshold), nil
}

// DecodeEnvelope decodes an operation envelope from a frame.
func DecodeEnvelope(frame []byte) (*Envelope, error) {
	payload, err := DecodeFrame(frame)
	if err != nil {
		return nil, err
	}
	var env Envelope
	if err := codecJSON.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("transport: decode envelope: %w", err)
	}
	return &env, nil
}
