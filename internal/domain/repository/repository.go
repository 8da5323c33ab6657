// Package repository 生成记录与故事记忆的存储接口
package repository

import "context"

// TxKey 事务句柄在 context 中的键，由存储实现写入
type TxKey struct{}

// Transactor fn 内通过同一 ctx 调用的仓储方法共享一个事务
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pagination 页码从 1 开始
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// NewPagination 非法值回落到第 1 页、每页 20 条，每页最多 100 条
func NewPagination(page, pageSize int) Pagination {
	p := Pagination{Page: max(page, 1), PageSize: pageSize}
	switch {
	case p.PageSize < 1:
		p.PageSize = defaultPageSize
	case p.PageSize > maxPageSize:
		p.PageSize = maxPageSize
	}
	return p
}

func (p Pagination) Offset() int { return (p.Page - 1) * p.PageSize }

func (p Pagination) Limit() int { return p.PageSize }

type PagedResult[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

func NewPagedResult[T any](items []T, total int64, p Pagination) *PagedResult[T] {
	size := int64(max(p.PageSize, 1))
	return &PagedResult[T]{
		Items:      items,
		Total:      total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: int((total + size - 1) / size),
	}
}
