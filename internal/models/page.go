package models

// DefaultPageSize matches the backend's default page size.
const DefaultPageSize = 20

// Page is one 0-based page of a list. Number is what the backend sent;
// DisplayNumber is what a person sees.
type Page[T any] struct {
	Content       []T   `json:"content"`
	Number        int   `json:"number"`
	Size          int   `json:"size,omitempty"`
	TotalPages    int   `json:"totalPages"`
	TotalElements int64 `json:"totalElements"`
}

// SinglePage wraps an unpaginated list.
func SinglePage[T any](items []T) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Content:       items,
		Number:        0,
		Size:          len(items),
		TotalPages:    1,
		TotalElements: int64(len(items)),
	}
}

func (p Page[T]) DisplayNumber() int {
	return p.Number + 1
}

func (p Page[T]) HasNext() bool {
	return p.Number+1 < p.TotalPages
}

func (p Page[T]) HasPrev() bool {
	return p.Number > 0
}

// NextIndex is the 0-based index to request for the following page.
func (p Page[T]) NextIndex() int {
	return p.Number + 1
}

// PrevIndex is the 0-based index of the preceding page, never below 0.
func (p Page[T]) PrevIndex() int {
	if p.Number == 0 {
		return 0
	}
	return p.Number - 1
}
