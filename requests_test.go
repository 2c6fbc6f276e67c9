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

	"github.com/stretchr/testify/assert"
)

func TestBuilder_Index(t *testing.T) {
	c := newTestClient(t, "test-cluster")

	doc := map[string]interface{}{"total": 17.5}
	req := c.PrepareIndex().
		Index("orders").
		DocType("order").
		ID("order-1").
		Document(doc).
		Request()

	assert.Equal(t, &IndexRequest{
		Index:    "orders",
		DocType:  "order",
		ID:       "order-1",
		Document: doc,
	}, req)
}

func TestBuilder_Update(t *testing.T) {
	c := newTestClient(t, "test-cluster")

	doc := map[string]interface{}{"status": "shipped"}
	req := c.PrepareUpdate().
		Index("orders").
		ID("order-1").
		Document(doc).
		Upsert(true).
		Request()

	assert.Equal(t, &UpdateRequest{
		Index:    "orders",
		ID:       "order-1",
		Document: doc,
		Upsert:   true,
	}, req)
}

func TestBuilder_Delete(t *testing.T) {
	c := newTestClient(t, "test-cluster")

	req := c.PrepareDelete().
		Index("orders").
		ID("order-1").
		Request()

	assert.Equal(t, &DeleteRequest{Index: "orders", ID: "order-1"}, req)
}

func TestBuilder_Get(t *testing.T) {
	c := newTestClient(t, "test-cluster")

	req := c.PrepareGet().
		Index("orders").
		DocType("order").
		ID("order-1").
		Request()

	assert.Equal(t, &GetRequest{
		Index:   "orders",
		DocType: "order",
		ID:      "order-1",
	}, req)
}

func TestBuilder_MultiGet(t *testing.T) {
	c := newTestClient(t, "test-cluster")

	req := c.PrepareMultiGet().
		Add("orders", "order", "order-1").
		Add("orders", "order", "order-2").
		Request()

	assert.Equal(t, &MultiGetRequest{Items: []MultiGetItem{
		{Index: "orders", DocType: "order", ID: "order-1"},
		{Index: "orders", DocType: "order", ID: "order-2"},
	}}, req)
}

func TestBuilder_Bulk(t *testing.T) {
	c := newTestClient(t, "test-cluster")

	doc := map[string]interface{}{"total": 17.5}
	b := c.PrepareBulk().
		AddIndex(&IndexRequest{Index: "orders", ID: "order-1", Document: doc}).
		AddDelete(&DeleteRequest{Index: "orders", ID: "order-2"}).
		Add(BulkAction{Kind: OpKindUpdate, Index: "orders", ID: "order-3"})

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, &BulkRequest{Actions: []BulkAction{
		{Kind: OpKindIndex, Index: "orders", ID: "order-1", Document: doc},
		{Kind: OpKindDelete, Index: "orders", ID: "order-2"},
		{Kind: OpKindUpdate, Index: "orders", ID: "order-3"},
	}}, b.Request())
}

func TestBuilder_Percolate(t *testing.T) {
	c := newTestClient(t, "test-cluster")

	doc := map[string]interface{}{"total": 17.5}
	req := c.PreparePercolate("orders", "order").
		Document(doc).
		Request()

	assert.Equal(t, &PercolateRequest{
		Index:    "orders",
		DocType:  "order",
		Document: doc,
	}, req)
}
