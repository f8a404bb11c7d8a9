package utils

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PageResponse is the envelope for every paginated listing.
type PageResponse[T any] struct {
	Content       []T   `json:"content"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	First         bool  `json:"first"`
	Last          bool  `json:"last"`
}

// NewPageResponse derives the page flags from the total count. An empty
// result set still reports first=true, last=true.
func NewPageResponse[T any](content []T, page, size int, total int64) PageResponse[T] {
	if content == nil {
		content = []T{}
	}

	totalPages := int((total + int64(size) - 1) / int64(size))

	return PageResponse[T]{
		Content:       content,
		Number:        page,
		Size:          size,
		TotalElements: total,
		TotalPages:    totalPages,
		First:         page == 0,
		Last:          page >= totalPages-1,
	}
}

// ClampPage normalizes raw page/size query values.
func ClampPage(page, size int) (int, int) {
	if page < 0 {
		page = 0
	}

	if size <= 0 {
		size = DefaultPageSize
	}

	if size > MaxPageSize {
		size = MaxPageSize
	}

	return page, size
}
