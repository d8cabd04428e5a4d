package gateway

import (
	"context"
	"errors"
	"fmt"

	"glimpse/internal/models"
	"glimpse/internal/observability"

	"gorm.io/gorm"
)

// gormGateway implements Gateway on top of a gorm.DB.
type gormGateway struct {
	db *gorm.DB
}

// NewGormGateway creates a gateway backed by the given database handle.
func NewGormGateway(db *gorm.DB) Gateway {
	return &gormGateway{db: db}
}

func (g *gormGateway) apply(ctx context.Context, q Query) *gorm.DB {
	tx := g.db.WithContext(ctx).Table(q.Collection)
	for _, f := range q.Filters {
		tx = g.applyFilter(tx, f)
	}
	if len(q.Any) > 0 {
		or := g.db.Table(q.Collection)
		for i, f := range q.Any {
			if i == 0 {
				or = g.applyFilter(or, f)
			} else {
				or = g.orFilter(or, f)
			}
		}
		tx = tx.Where(or)
	}
	for _, o := range q.Order {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		tx = tx.Order(fmt.Sprintf("%s %s", o.Field, dir))
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	return tx
}

// likeOperator picks the pattern operator for the active dialect. Postgres
// has ILIKE; sqlite LIKE is already case-insensitive for ASCII.
func (g *gormGateway) likeOperator() string {
	if g.db.Dialector.Name() == "postgres" {
		return "ILIKE"
	}
	return "LIKE"
}

func (g *gormGateway) applyFilter(tx *gorm.DB, f Filter) *gorm.DB {
	switch f.Op {
	case OpILike:
		return tx.Where(fmt.Sprintf("%s %s ?", f.Field, g.likeOperator()), f.Value)
	default:
		return tx.Where(fmt.Sprintf("%s = ?", f.Field), f.Value)
	}
}

func (g *gormGateway) orFilter(tx *gorm.DB, f Filter) *gorm.DB {
	switch f.Op {
	case OpILike:
		return tx.Or(fmt.Sprintf("%s %s ?", f.Field, g.likeOperator()), f.Value)
	default:
		return tx.Or(fmt.Sprintf("%s = ?", f.Field), f.Value)
	}
}

func (g *gormGateway) Select(ctx context.Context, q Query, dest any) error {
	if err := g.apply(ctx, q).Find(dest).Error; err != nil {
		return g.fail("select", err)
	}
	return nil
}

func (g *gormGateway) SelectOne(ctx context.Context, q Query, dest any) error {
	q.Limit = 1
	err := g.apply(ctx, q).Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(q.Collection, q.Filters)
	}
	if err != nil {
		return g.fail("select_one", err)
	}
	return nil
}

func (g *gormGateway) Count(ctx context.Context, q Query) (int64, error) {
	var n int64
	q.Offset, q.Limit = 0, 0
	if err := g.apply(ctx, q).Count(&n).Error; err != nil {
		return 0, g.fail("count", err)
	}
	return n, nil
}

func (g *gormGateway) Exists(ctx context.Context, q Query) (bool, error) {
	q.Offset, q.Limit = 0, 1
	row := map[string]any{}
	err := g.apply(ctx, q).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, g.fail("exists", err)
	}
	return true, nil
}

func (g *gormGateway) Insert(ctx context.Context, collection string, row any) error {
	if err := g.db.WithContext(ctx).Table(collection).Create(row).Error; err != nil {
		return g.fail("insert", err)
	}
	return nil
}

func (g *gormGateway) Update(ctx context.Context, collection string, filters []Filter, values map[string]any) error {
	tx := g.db.WithContext(ctx).Table(collection)
	for _, f := range filters {
		tx = g.applyFilter(tx, f)
	}
	if err := tx.Updates(values).Error; err != nil {
		return g.fail("update", err)
	}
	return nil
}

func (g *gormGateway) Delete(ctx context.Context, collection string, filters []Filter) error {
	tx := g.db.WithContext(ctx).Table(collection)
	for _, f := range filters {
		tx = g.applyFilter(tx, f)
	}
	if err := tx.Delete(modelFor(collection)).Error; err != nil {
		return g.fail("delete", err)
	}
	return nil
}

// modelFor maps a collection name to an empty model value so gorm can
// resolve the schema for write statements.
func modelFor(collection string) any {
	switch collection {
	case CollectionPosts:
		return &models.Post{}
	case CollectionProfiles:
		return &models.Profile{}
	case CollectionLikes:
		return &models.Like{}
	case CollectionComments:
		return &models.Comment{}
	case CollectionFollows:
		return &models.Follow{}
	case CollectionNotifications:
		return &models.Notification{}
	default:
		return nil
	}
}

func (g *gormGateway) fail(operation string, err error) error {
	observability.GatewayErrors.WithLabelValues(operation).Inc()
	return models.NewGatewayError(err)
}
