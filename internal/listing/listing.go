// Package listing is the sortable, filterable, paginated table shared by the
// catalog and every back-office list. Only whitelisted columns ever reach SQL.
package listing

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
	"gorm.io/gorm/clause"      // Order by column
)

const (
	DefaultPageSize = 20                          // Page size when none is given
	MaxPageSize     = 100                         // Largest page a client may ask for
	MaxPage         = math.MaxInt32 / MaxPageSize // Larger page numbers are capped
)

// likeEscaper escapes LIKE wildcards in a search term with '!'
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// Spec whitelists what a table may be sorted, filtered and searched by
type Spec struct {
	Sortable     map[string]string // sort param -> column
	Filterable   map[string]string // query param -> column, equality match
	Searchable   []string          // columns matched by q with LIKE
	DateColumn   string            // column bounded by from/to, optional
	DefaultSort  string            // sort param used when none is given
	DefaultOrder string            // asc or desc
}

// Params is a parsed table request
type Params struct {
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Sort     string            `json:"sort"`
	Order    string            `json:"order"`
	Search   string            `json:"q,omitempty"`
	From     string            `json:"from,omitempty"`
	To       string            `json:"to,omitempty"`
	Filters  map[string]string `json:"filters,omitempty"`
}

// Page is one page of results
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// ParseParams reads page, page_size, sort, order, q, from, to and every
// whitelisted filter. Unknown or invalid values fall back to defaults.
func ParseParams(c *gin.Context, spec Spec) Params {
	p := Params{Page: 1, PageSize: DefaultPageSize, Filters: map[string]string{}}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		p.Page = min(v, MaxPage) // Set page if valid
	}
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil && v > 0 && v <= MaxPageSize {
		p.PageSize = v // Set page size within limits
	}
	p.Sort = spec.DefaultSort
	if s := c.Query("sort"); s != "" {
		if _, ok := spec.Sortable[s]; ok {
			p.Sort = s // Only whitelisted sort keys
		}
	}
	p.Order = spec.DefaultOrder
	if o := strings.ToLower(c.Query("order")); o == "asc" || o == "desc" {
		p.Order = o
	}
	if p.Order == "" {
		p.Order = "asc"
	}
	p.Search = strings.TrimSpace(c.Query("q"))
	if spec.DateColumn != "" {
		p.From = c.Query("from")
		p.To = c.Query("to")
	}
	for key := range spec.Filterable {
		if v := c.Query(key); v != "" {
			p.Filters[key] = v
		}
	}
	return p
}

// CacheKey is a stable key for caching this page under prefix
func (p Params) CacheKey(prefix string) string {
	keys := make([]string, 0, len(p.Filters))
	for k := range p.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := []string{
		"page=" + strconv.Itoa(p.Page),
		"size=" + strconv.Itoa(p.PageSize),
		"sort=" + p.Sort,
		"order=" + p.Order,
		"q=" + p.Search,
		"from=" + p.From,
		"to=" + p.To,
	}
	for _, k := range keys {
		parts = append(parts, k+"="+p.Filters[k])
	}
	return prefix + strings.Join(parts, ":")
}

// Apply adds the filter, search and date conditions of p to db
func Apply(db *gorm.DB, spec Spec, p Params) *gorm.DB {
	for key, value := range p.Filters {
		if col, ok := spec.Filterable[key]; ok {
			db = db.Where(col+" = ?", value) // Column comes from the whitelist
		}
	}
	if p.Search != "" && len(spec.Searchable) > 0 {
		like := "%" + likeEscaper.Replace(p.Search) + "%" // Wildcards in q match literally
		conds := make([]string, len(spec.Searchable))
		args := make([]any, len(spec.Searchable))
		for i, col := range spec.Searchable {
			conds[i] = col + " LIKE ? ESCAPE '!'"
			args[i] = like
		}
		db = db.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
	if spec.DateColumn != "" {
		if p.From != "" {
			db = db.Where(spec.DateColumn+" >= ?", p.From) // Filter by start date
		}
		if p.To != "" {
			db = db.Where(spec.DateColumn+" <= ?", p.To) // Filter by end date
		}
	}
	return db
}

// Find runs the table query for T. The scopes (preloads, extra conditions
// that must not affect the count) apply to the page fetch only.
func Find[T any](db *gorm.DB, spec Spec, p Params, scopes ...func(*gorm.DB) *gorm.DB) (Page[T], error) {
	base := Apply(db.Model(new(T)), spec, p).Session(&gorm.Session{})
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return Page[T]{}, err
	}
	items := make([]T, 0, p.PageSize)
	query := base.Scopes(scopes...)
	if col, ok := spec.Sortable[p.Sort]; ok {
		query = query.Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: p.Order == "desc"})
	}
	page := max(1, min(p.Page, MaxPage))
	offset := (page - 1) * p.PageSize // Calculate offset for pagination
	if err := query.Offset(offset).Limit(p.PageSize).Find(&items).Error; err != nil {
		return Page[T]{}, err
	}
	return Page[T]{
		Items:      items,
		Page:       p.Page,
		PageSize:   p.PageSize,
		Total:      total,
		TotalPages: int((total + int64(p.PageSize) - 1) / int64(p.PageSize)),
	}, nil
}
