package entity

type Pagination struct {
	Page    *uint32 `json:"page,omitempty"`
	Limit   *uint32 `json:"limit,omitempty"`
	HasNext *bool   `json:"has_next,omitempty"`
	Total   *uint32 `json:"total,omitempty"`
}

// GetPage never returns 0, the first page is page 1.
func (e *Pagination) GetPage() uint32 {
	if e != nil && e.Page != nil && *e.Page > 0 {
		return *e.Page
	}
	return 1
}

func (e *Pagination) GetLimit() uint32 {
	if e != nil && e.Limit != nil {
		return *e.Limit
	}
	return 0
}

func (e *Pagination) GetHasNext() bool {
	if e != nil && e.HasNext != nil {
		return *e.HasNext
	}
	return false
}

func (e *Pagination) GetTotal() uint32 {
	if e != nil && e.Total != nil {
		return *e.Total
	}
	return 0
}
