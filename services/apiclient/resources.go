package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/trezcool/vims/core/resource"
)

// ListParams are the query parameters every list endpoint accepts.
type ListParams struct {
	Page     int
	PageSize int
	Search   string
}

func (p ListParams) values() url.Values {
	q := make(url.Values)
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(p.PageSize))
	}
	if s := strings.TrimSpace(p.Search); s != "" {
		q.Set("search", s)
	}
	return q
}

// Page is the envelope of list endpoints.
type Page[T any] struct {
	Data            []T     `json:"data"`
	TotalPages      int     `json:"total_pages"`
	CurrentPage     int     `json:"current_page"`
	PageSize        int     `json:"page_size"`
	TotalRecords    int     `json:"total_records"`
	NextPageURL     *string `json:"next_page_url"`
	PreviousPageURL *string `json:"previous_page_url"`
}

func (p *Page[T]) HasNext() bool     { return p.CurrentPage < p.TotalPages }
func (p *Page[T]) HasPrevious() bool { return p.CurrentPage > 1 }

// Resource is the CRUD surface of one collection, e.g. /students/.
type Resource[T any] struct {
	client *Client
	path   string
}

func NewResource[T any](c *Client, collection string) Resource[T] {
	return Resource[T]{client: c, path: "/" + strings.Trim(collection, "/") + "/"}
}

// Records is the untyped resource of a catalogued entity kind.
func (c *Client) Records(kind resource.Kind) Resource[resource.Record] {
	return NewResource[resource.Record](c, kind.Name)
}

func (r Resource[T]) item(idx string) string {
	return r.path + url.PathEscape(idx) + "/"
}

func (r Resource[T]) List(ctx context.Context, params ListParams) (*Page[T], error) {
	var page Page[T]
	if err := r.client.do(ctx, http.MethodGet, r.path, params.values(), nil, &page); err != nil {
		return nil, err
	}
	if page.Data == nil {
		page.Data = make([]T, 0)
	}
	return &page, nil
}

func (r Resource[T]) Get(ctx context.Context, idx string) (*T, error) {
	var out T
	if err := r.client.do(ctx, http.MethodGet, r.item(idx), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r Resource[T]) Create(ctx context.Context, payload interface{}) (*T, error) {
	var out T
	if err := r.client.do(ctx, http.MethodPost, r.path, nil, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r Resource[T]) Update(ctx context.Context, idx string, payload interface{}) (*T, error) {
	var out T
	if err := r.client.do(ctx, http.MethodPut, r.item(idx), nil, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r Resource[T]) Patch(ctx context.Context, idx string, payload interface{}) (*T, error) {
	var out T
	if err := r.client.do(ctx, http.MethodPatch, r.item(idx), nil, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r Resource[T]) Delete(ctx context.Context, idx string) error {
	return r.client.do(ctx, http.MethodDelete, r.item(idx), nil, nil, nil)
}
