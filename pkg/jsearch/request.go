package jsearch

import (
	"strconv"
	"strings"
)

// SearchRequest holds the parameters of one GET /search call. It is a value
// type; build a new one for every change instead of mutating.
type SearchRequest struct {
	Query      string
	Page       int
	NumPages   int
	Country    string
	DatePosted DatePosted
}

// NewSearchRequest fills the defaults the API expects: page and num_pages of
// at least 1, country "us" and date_posted "all".
func NewSearchRequest(query string, page, numPages int, country string, datePosted DatePosted) SearchRequest {
	if page < 1 {
		page = 1
	}
	if numPages < 1 {
		numPages = 1
	}
	country = strings.ToLower(strings.TrimSpace(country))
	if country == "" {
		country = DefaultCountry
	}
	if datePosted == "" {
		datePosted = DefaultDatePosted
	}
	return SearchRequest{
		Query:      query,
		Page:       page,
		NumPages:   numPages,
		Country:    country,
		DatePosted: datePosted,
	}
}

// CacheKey is the request path with its query string. Parameter order is
// fixed so equal requests always produce equal keys.
func (r SearchRequest) CacheKey() string {
	var b strings.Builder
	b.WriteString("/search?query=")
	b.WriteString(escape(r.Query))
	b.WriteString("&page=")
	b.WriteString(strconv.Itoa(r.Page))
	b.WriteString("&num_pages=")
	b.WriteString(strconv.Itoa(r.NumPages))
	b.WriteString("&country=")
	b.WriteString(escape(r.Country))
	b.WriteString("&date_posted=")
	b.WriteString(escape(string(r.DatePosted)))
	return b.String()
}

// WithPage returns a copy of r for another page.
func (r SearchRequest) WithPage(page int) SearchRequest {
	if page < 1 {
		page = 1
	}
	r.Page = page
	return r
}
