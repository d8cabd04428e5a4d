// Package gateway abstracts the remote row store: generic filtered reads and
// row-level writes over named collections. Joins are not supported here;
// view composition happens in the aggregation layer.
package gateway

import "context"

// Collection names understood by the gateway.
const (
	CollectionPosts         = "posts"
	CollectionProfiles      = "profiles"
	CollectionLikes         = "likes"
	CollectionComments      = "comments"
	CollectionFollows       = "follows"
	CollectionNotifications = "notifications"
)

// Op is a filter operator.
type Op string

const (
	OpEq    Op = "eq"
	OpILike Op = "ilike"
)

// Filter matches rows where Field relates to Value via Op.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Eq builds an equality filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEq, Value: value}
}

// ILike builds a case-insensitive pattern filter.
func ILike(field, pattern string) Filter {
	return Filter{Field: field, Op: OpILike, Value: pattern}
}

// OrderBy orders results by one field.
type OrderBy struct {
	Field string
	Desc  bool
}

// Query describes a filtered read over one collection. Filters are ANDed;
// Any, when present, is an ORed set ANDed with Filters. Order entries are
// applied in sequence so callers can pin a deterministic tie-break.
type Query struct {
	Collection string
	Filters    []Filter
	Any        []Filter
	Order      []OrderBy
	Offset     int
	Limit      int
}

// Gateway is the boundary with the remote data store. Implementations must
// wrap store failures in models.NewGatewayError and report a missing single
// row from SelectOne via models.NewNotFoundError.
type Gateway interface {
	// Select reads all rows matching q into dest (a pointer to a slice of
	// the collection's model type).
	Select(ctx context.Context, q Query, dest any) error
	// SelectOne reads a single row matching q into dest.
	SelectOne(ctx context.Context, q Query, dest any) error
	// Count returns the number of rows matching q.
	Count(ctx context.Context, q Query) (int64, error)
	// Exists reports whether at least one row matches q.
	Exists(ctx context.Context, q Query) (bool, error)
	// Insert writes one row.
	Insert(ctx context.Context, collection string, row any) error
	// Update sets values on every row matching the filters.
	Update(ctx context.Context, collection string, filters []Filter, values map[string]any) error
	// Delete removes every row matching the filters.
	Delete(ctx context.Context, collection string, filters []Filter) error
}
