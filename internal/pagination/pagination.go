// Package pagination holds the page parameters and page envelope shared by
// every list endpoint.
package pagination

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is bound from the query string (?page=&limit=).
type Params struct {
	Page  int `form:"page" json:"page"`
	Limit int `form:"limit" json:"limit"`
}

// Normalize clamps the params into the accepted range.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

func (p Params) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func NewPage[T any](items []T, total int, p Params) Page[T] {
	p = p.Normalize()
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: total, Page: p.Page, Limit: p.Limit}
}

// Map converts the items of a page, keeping the paging metadata.
func Map[T, U any](page Page[T], fn func(T) U) Page[U] {
	out := make([]U, 0, len(page.Items))
	for _, item := range page.Items {
		out = append(out, fn(item))
	}
	return Page[U]{Items: out, Total: page.Total, Page: page.Page, Limit: page.Limit}
}

// Slice returns the window of items selected by p, for stores that page in
// memory.
func Slice[T any](items []T, p Params) []T {
	offset := p.Offset()
	if offset >= len(items) {
		return []T{}
	}
	end := offset + p.Normalize().Limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
