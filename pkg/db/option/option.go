package option

import (
	"github.com/responsiv/pay/pkg/db/pagination"
	"gorm.io/gorm"
)

// Option mutates a gorm statement before execution.
type Option interface {
	Apply(*gorm.DB) *gorm.DB
}

type paginationOption struct {
	page pagination.Pagination
}

// ApplyPagination applies cursor pagination. The statement fetches one
// extra row so the caller can detect whether more pages exist.
func ApplyPagination(page pagination.Pagination) Option {
	return paginationOption{page: page}
}

func (o paginationOption) Apply(stmt *gorm.DB) *gorm.DB {
	if o.page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(o.page.PageToken)
		if err == nil && cursor != nil && cursor.CreatedAt != "" && cursor.ID != "" {
			stmt = stmt.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
		}
	}

	size := o.page.PageSize
	if size <= 0 {
		size = 10
	}
	return stmt.Limit(size + 1)
}
