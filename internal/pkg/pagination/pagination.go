package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/govorilka/core/internal/pkg/response"
	"gorm.io/gorm"
)

const (
	defaultSize = 10
	maxSize     = 100
)

// Query holds normalized page/size parameters from the query string.
type Query struct {
	Page int
	Size int
}

// Offset is the row offset of the current page.
func (q Query) Offset() int { return (q.Page - 1) * q.Size }

// normalize clamps out-of-range values instead of rejecting them: an
// admin panel sending page=0 or size=10000 still gets a sane answer.
func (q Query) normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Size < 1 {
		q.Size = defaultSize
	}
	if q.Size > maxSize {
		q.Size = maxSize
	}
	return q
}

// FromContext reads ?page= and ?size= from the request.
func FromContext(c *gin.Context) Query {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("size"))
	return Query{Page: page, Size: size}.normalize()
}

// Paginate counts the rows of the prepared query, loads one page into
// dest and returns the listing metadata.
func Paginate[T any](db *gorm.DB, q Query, dest *[]T) (response.Pagination, error) {
	q = q.normalize()

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return response.Pagination{}, err
	}

	if err := db.Offset(q.Offset()).Limit(q.Size).Find(dest).Error; err != nil {
		return response.Pagination{}, err
	}

	pages := int(total / int64(q.Size))
	if total%int64(q.Size) != 0 {
		pages++
	}

	return response.Pagination{
		Total:       total,
		CurrentPage: q.Page,
		TotalPage:   pages,
		Size:        q.Size,
		HasNextPage: q.Page < pages,
	}, nil
}
