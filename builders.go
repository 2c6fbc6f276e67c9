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
)

// Builder-style request construction. Each PrepareX method returns a
// builder bound to the client; Execute dispatches the built request.

type IndexRequestBuilder struct {
	client *Client
	req    IndexRequest
}

// PrepareIndex starts building an index operation.
func (c *Client) PrepareIndex() *IndexRequestBuilder {
	return &IndexRequestBuilder{client: c}
}

func (b *IndexRequestBuilder) Index(index string) *IndexRequestBuilder {
	b.req.Index = index
	return b
}

func (b *IndexRequestBuilder) DocType(docType string) *IndexRequestBuilder {
	b.req.DocType = docType
	return b
}

func (b *IndexRequestBuilder) ID(id string) *IndexRequestBuilder {
	b.req.ID = id
	return b
}

func (b *IndexRequestBuilder) Document(doc map[string]interface{}) *IndexRequestBuilder {
	b.req.Document = doc
	return b
}

func (b *IndexRequestBuilder) Request() *IndexRequest {
	return &b.req
}

func (b *IndexRequestBuilder) Execute(ctx context.Context) (*IndexResponse, error) {
	return Execute(ctx, b.client, OpIndex, &b.req)
}

func (b *IndexRequestBuilder) ExecuteAsync(ctx context.Context, cb func(*IndexResponse, error)) {
	ExecuteAsync(ctx, b.client, OpIndex, &b.req, cb)
}

type UpdateRequestBuilder struct {
	client *Client
	req    UpdateRequest
}

// PrepareUpdate starts building an update operation.
func (c *Client) PrepareUpdate() *UpdateRequestBuilder {
	return &UpdateRequestBuilder{client: c}
}

func (b *UpdateRequestBuilder) Index(index string) *UpdateRequestBuilder {
	b.req.Index = index
	return b
}

func (b *UpdateRequestBuilder) DocType(docType string) *UpdateRequestBuilder {
	b.req.DocType = docType
	return b
}

func (b *UpdateRequestBuilder) ID(id string) *UpdateRequestBuilder {
	b.req.ID = id
	return b
}

func (b *UpdateRequestBuilder) Document(doc map[string]interface{}) *UpdateRequestBuilder {
	b.req.Document = doc
	return b
}

func (b *UpdateRequestBuilder) Upsert(upsert bool) *UpdateRequestBuilder {
	b.req.Upsert = upsert
	return b
}

func (b *UpdateRequestBuilder) Request() *UpdateRequest {
	return &b.req
}

func (b *UpdateRequestBuilder) Execute(ctx context.Context) (*UpdateResponse, error) {
	return Execute(ctx, b.client, OpUpdate, &b.req)
}

func (b *UpdateRequestBuilder) ExecuteAsync(ctx context.Context, cb func(*UpdateResponse, error)) {
	ExecuteAsync(ctx, b.client, OpUpdate, &b.req, cb)
}

type DeleteRequestBuilder struct {
	client *Client
	req    DeleteRequest
}

// PrepareDelete starts building a delete operation.
func (c *Client) PrepareDelete() *DeleteRequestBuilder {
	return &DeleteRequestBuilder{client: c}
}

func (b *DeleteRequestBuilder) Index(index string) *DeleteRequestBuilder {
	b.req.Index = index
	return b
}

func (b *DeleteRequestBuilder) DocType(docType string) *DeleteRequestBuilder {
	b.req.DocType = docType
	return b
}

func (b *DeleteRequestBuilder) ID(id string) *DeleteRequestBuilder {
	b.req.ID = id
	return b
}

func (b *DeleteRequestBuilder) Request() *DeleteRequest {
	return &b.req
}

func (b *DeleteRequestBuilder) Execute(ctx context.Context) (*DeleteResponse, error) {
	return Execute(ctx, b.client, OpDelete, &b.req)
}

func (b *DeleteRequestBuilder) ExecuteAsync(ctx context.Context, cb func(*DeleteResponse, error)) {
	ExecuteAsync(ctx, b.client, OpDelete, &b.req, cb)
}

type BulkRequestBuilder struct {
	client *Client
	req    BulkRequest
}

// PrepareBulk starts building a bulk batch.
func (c *Client) PrepareBulk() *BulkRequestBuilder {
	return &BulkRequestBuilder{client: c}
}

// Add appends actions to the batch.
func (b *BulkRequestBuilder) Add(actions ...BulkAction) *BulkRequestBuilder {
	b.req.Actions = append(b.req.Actions, actions...)
	return b
}

// AddIndex appends an index action built from an index request.
func (b *BulkRequestBuilder) AddIndex(req *IndexRequest) *BulkRequestBuilder {
	return b.Add(BulkAction{
		Kind:     OpKindIndex,
		Index:    req.Index,
		DocType:  req.DocType,
		ID:       req.ID,
		Document: req.Document,
	})
}

// AddDelete appends a delete action built from a delete request.
func (b *BulkRequestBuilder) AddDelete(req *DeleteRequest) *BulkRequestBuilder {
	return b.Add(BulkAction{
		Kind:    OpKindDelete,
		Index:   req.Index,
		DocType: req.DocType,
		ID:      req.ID,
	})
}

// Len returns the number of actions in the batch.
func (b *BulkRequestBuilder) Len() int {
	return len(b.req.Actions)
}

func (b *BulkRequestBuilder) Request() *BulkRequest {
	return &b.req
}

func (b *BulkRequestBuilder) Execute(ctx context.Context) (*BulkResponse, error) {
	return Execute(ctx, b.client, OpBulk, &b.req)
}

func (b *BulkRequestBuilder) ExecuteAsync(ctx context.Context, cb func(*BulkResponse, error)) {
	ExecuteAsync(ctx, b.client, OpBulk, &b.req, cb)
}

type GetRequestBuilder struct {
	client *Client
	req    GetRequest
}

// PrepareGet starts building a get operation.
func (c *Client) PrepareGet() *GetRequestBuilder {
	return &GetRequestBuilder{client: c}
}

func (b *GetRequestBuilder) Index(index string) *GetRequestBuilder {
	b.req.Index = index
	return b
}

func (b *GetRequestBuilder) DocType(docType string) *GetRequestBuilder {
	b.req.DocType = docType
	return b
}

func (b *GetRequestBuilder) ID(id string) *GetRequestBuilder {
	b.req.ID = id
	return b
}

func (b *GetRequestBuilder) Request() *GetRequest {
	return &b.req
}

func (b *GetRequestBuilder) Execute(ctx context.Context) (*GetResponse, error) {
	return Execute(ctx, b.client, OpGet, &b.req)
}

func (b *GetRequestBuilder) ExecuteAsync(ctx context.Context, cb func(*GetResponse, error)) {
	ExecuteAsync(ctx, b.client, OpGet, &b.req, cb)
}

type MultiGetRequestBuilder struct {
	client *Client
	req    MultiGetRequest
}

// PrepareMultiGet starts building a multi-get operation.
func (c *Client) PrepareMultiGet() *MultiGetRequestBuilder {
	return &MultiGetRequestBuilder{client: c}
}

// Add appends a document reference to fetch.
func (b *MultiGetRequestBuilder) Add(index, docType, id string) *MultiGetRequestBuilder {
	b.req.Items = append(b.req.Items, MultiGetItem{
		Index:   index,
		DocType: docType,
		ID:      id,
	})
	return b
}

func (b *MultiGetRequestBuilder) Request() *MultiGetRequest {
	return &b.req
}

func (b *MultiGetRequestBuilder) Execute(ctx context.Context) (*MultiGetResponse, error) {
	return Execute(ctx, b.client, OpMultiGet, &b.req)
}

func (b *MultiGetRequestBuilder) ExecuteAsync(ctx context.Context, cb func(*MultiGetResponse, error)) {
	ExecuteAsync(ctx, b.client, OpMultiGet, &b.req, cb)
}

type PercolateRequestBuilder struct {
	client *Client
	req    PercolateRequest
}

// PreparePercolate starts building a percolate operation against the
// given index and document type.
func (c *Client) PreparePercolate(index, docType string) *PercolateRequestBuilder {
	b := &PercolateRequestBuilder{client: c}
	b.req.Index = index
	b.req.DocType = docType
	return b
}

func (b *PercolateRequestBuilder) Document(doc map[string]interface{}) *PercolateRequestBuilder {
	b.req.Document = doc
	return b
}

func (b *PercolateRequestBuilder) Request() *PercolateRequest {
	return &b.req
}

func (b *PercolateRequestBuilder) Execute(ctx context.Context) (*PercolateResponse, error) {
	return Execute(ctx, b.client, OpPercolate, &b.req)
}

func (b *PercolateRequestBuilder) ExecuteAsync(ctx context.Context, cb func(*PercolateResponse, error)) {
	ExecuteAsync(ctx, b.client, OpPercolate, &b.req, cb)
}
