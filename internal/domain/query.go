package domain

// Sort orders accepted by list endpoints
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// ListParams selects one page of a searched and sorted collection
type ListParams struct {
	Search    string `query:"search" json:"search,omitempty"`
	SortBy    string `query:"sortBy" json:"sortBy,omitempty"`
	SortOrder string `query:"sortOrder" json:"sortOrder,omitempty" validate:"omitempty,oneof=asc desc"`
	Page      int    `query:"page" json:"page,omitempty" validate:"omitempty,min=1"`
	Limit     int    `query:"limit" json:"limit,omitempty" validate:"omitempty,min=1"`
}

// Page is one page of a collection. Total counts items after filtering,
// TotalAll before.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	TotalAll   int `json:"totalAll"`
	TotalPages int `json:"totalPages"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
}
