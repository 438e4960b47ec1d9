package repositories

import (
	"strconv"

	"github.com/lib/pq"
)

const maxPageSize = 100

// pageBounds clamps page and size to sane values.
func pageBounds(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

func itoa(n int) string { return strconv.Itoa(n) }

func stringArray(v []string) pq.StringArray {
	if v == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(v)
}

// argList accumulates positional query arguments and returns their placeholders.
type argList []interface{}

func (a *argList) add(v interface{}) string {
	*a = append(*a, v)
	return "$" + strconv.Itoa(len(*a))
}

// orDB falls back to the pool when no transactional executor is supplied.
func orDB(executor, db SQLExecutor) SQLExecutor {
	if executor == nil {
		return db
	}
	return executor
}
