package datagrid

// PaginationView is the page window handed to templates.
type PaginationView struct {
	PageStart    int  `json:"pageStart"`
	PageLimit    int  `json:"pageLimit"`
	NextPage     *int `json:"nextPage"`
	PreviousPage *int `json:"previousPage"`
	Page         int  `json:"page"`
	Pages        int  `json:"pages"`
	Total        int  `json:"total"`
	Filtered     int  `json:"filtered"`
	Throttle     int  `json:"throttle"`
	Threshold    int  `json:"threshold"`
	PerPage      int  `json:"perPage"`
	Infinite     bool `json:"infinite"`
}

// PerPage returns the results per page for a response. Group pagination
// returns the number of groups instead.
func PerPage(method Method, throttle, filtered, defaultThrottle int) int {
	t := throttle
	if t == 0 {
		t = defaultThrottle
	}
	if method != MethodGroup {
		return t
	}
	if t <= 0 {
		return 0
	}
	return (filtered + t - 1) / t
}

// Regular computes the window for single and group pagination. throttle
// and threshold are the grid's current values, reported back as-is.
func Regular(r Response, pageIndex, throttle, threshold, defaultThrottle int) PaginationView {
	perPage := PerPage(r.Method, r.Throttle, r.Filtered, defaultThrottle)

	var limit int
	switch {
	case r.Threshold > r.Filtered:
		limit = r.Filtered
	case pageIndex == 1:
		limit = min(perPage, r.Filtered)
	case r.Total < perPage*pageIndex:
		limit = r.Filtered
	default:
		limit = perPage * pageIndex
	}

	var start int
	switch {
	case perPage == 0:
		start = 0
	case pageIndex == 1:
		if r.Filtered > 0 {
			start = 1
		}
	default:
		start = perPage*(pageIndex-1) + 1
	}

	return PaginationView{
		PageStart:    start,
		PageLimit:    limit,
		NextPage:     r.NextPage,
		PreviousPage: r.PreviousPage,
		Page:         r.Page,
		Pages:        r.Pages,
		Total:        r.Total,
		Filtered:     r.Filtered,
		Throttle:     throttle,
		Threshold:    threshold,
		PerPage:      perPage,
	}
}

// Infinite returns nil once there is no next page.
func Infinite(page int, next *int, pages int) *PaginationView {
	if next == nil || *next == 0 {
		return nil
	}
	return &PaginationView{Page: page, Pages: pages, NextPage: next, Infinite: true}
}

// BuildPagination dispatches on the grid's pagination method.
func BuildPagination(method Method, r Response, pageIndex, throttle, threshold, defaultThrottle int) *PaginationView {
	if r.Method == "" {
		r.Method = method
	}
	if method == MethodInfinite {
		return Infinite(r.Page, r.NextPage, r.Pages)
	}
	v := Regular(r, pageIndex, throttle, threshold, defaultThrottle)
	return &v
}
