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

// The request and response pairs of the cluster's operation catalogue.
// The client treats documents as opaque JSON; it never inspects payloads.

// IndexRequest stores a document, creating or replacing it.
type IndexRequest struct {
	Index    string                 `json:"index"`
	DocType  string                 `json:"doc_type,omitempty"`
	ID       string                 `json:"id,omitempty"`
	Document map[string]interface{} `json:"document,omitempty"`
}

type IndexResponse struct {
	Index   string `json:"index"`
	DocType string `json:"doc_type,omitempty"`
	ID      string `json:"id"`
	Version int64  `json:"version"`
	// Result is "created" or "updated".
	Result string `json:"result"`
}

// UpdateRequest applies a partial document to an existing document. When
// Upsert is set the partial document is stored as-is if the target does
// not exist.
type UpdateRequest struct {
	Index    string                 `json:"index"`
	DocType  string                 `json:"doc_type,omitempty"`
	ID       string                 `json:"id"`
	Document map[string]interface{} `json:"document,omitempty"`
	Upsert   bool                   `json:"upsert,omitempty"`
}

type UpdateResponse struct {
	Index   string `json:"index"`
	DocType string `json:"doc_type,omitempty"`
	ID      string `json:"id"`
	Version int64  `json:"version"`
	Result  string `json:"result"`
}

// DeleteRequest removes a document.
type DeleteRequest struct {
	Index   string `json:"index"`
	DocType string `json:"doc_type,omitempty"`
	ID      string `json:"id"`
}

type DeleteResponse struct {
	Index   string `json:"index"`
	DocType string `json:"doc_type,omitempty"`
	ID      string `json:"id"`
	Found   bool   `json:"found"`
	Version int64  `json:"version"`
}

// GetRequest fetches a document by id.
type GetRequest struct {
	Index   string `json:"index"`
	DocType string `json:"doc_type,omitempty"`
	ID      string `json:"id"`
}

type GetResponse struct {
	Index   string                 `json:"index"`
	DocType string                 `json:"doc_type,omitempty"`
	ID      string                 `json:"id"`
	Found   bool                   `json:"found"`
	Version int64                  `json:"version,omitempty"`
	Source  map[string]interface{} `json:"source,omitempty"`
}

// MultiGetRequest fetches several documents in one round trip.
type MultiGetRequest struct {
	Items []MultiGetItem `json:"items"`
}

type MultiGetItem struct {
	Index   string `json:"index"`
	DocType string `json:"doc_type,omitempty"`
	ID      string `json:"id"`
}

type MultiGetResponse struct {
	Docs []GetResponse `json:"docs"`
}

// BulkRequest batches index, update and delete actions.
type BulkRequest struct {
	Actions []BulkAction `json:"actions"`
}

// BulkAction is one entry of a bulk batch. Kind is an operation kind:
// OpKindIndex, OpKindUpdate or OpKindDelete.
type BulkAction struct {
	Kind     string                 `json:"kind"`
	Index    string                 `json:"index"`
	DocType  string                 `json:"doc_type,omitempty"`
	ID       string                 `json:"id,omitempty"`
	Document map[string]interface{} `json:"document,omitempty"`
}

type BulkResponse struct {
	// Errors reports whether any item failed.
	Errors bool           `json:"errors"`
	Items  []BulkItemInfo `json:"items"`
	TookMS int64          `json:"took_ms"`
}

type BulkItemInfo struct {
	Kind    string `json:"kind"`
	Index   string `json:"index"`
	ID      string `json:"id"`
	Version int64  `json:"version,omitempty"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PercolateRequest matches a document against the registered predicate
// queries of an index, returning the ids of matching queries.
type PercolateRequest struct {
	Index    string                 `json:"index"`
	DocType  string                 `json:"doc_type,omitempty"`
	Document map[string]interface{} `json:"document"`
}

type PercolateResponse struct {
	Matches []string `json:"matches"`
	TookMS  int64    `json:"took_ms"`
}
