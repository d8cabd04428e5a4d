// Package testutil provides shared test fixtures, most importantly an
// in-memory gateway implementation with call counting and error injection.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"glimpse/internal/gateway"
	"glimpse/internal/models"
)

// MemGateway is an in-memory gateway.Gateway for tests. It stores copies of
// the rows given to it and evaluates queries against them, so tests can
// exercise the full read/write paths without a database. Every operation is
// counted, and any operation can be made to fail on demand.
type MemGateway struct {
	mu   sync.Mutex
	rows map[string][]any

	calls  map[string]int
	failOn map[string]error

	// Hook, when set, runs at the start of every operation, outside the
	// lock. Tests use it to block a fetch mid-flight.
	Hook func(op, collection string)
}

// NewMemGateway creates an empty in-memory gateway.
func NewMemGateway() *MemGateway {
	return &MemGateway{
		rows:   make(map[string][]any),
		calls:  make(map[string]int),
		failOn: make(map[string]error),
	}
}

// Seed adds rows to a collection without counting as an operation.
func (m *MemGateway) Seed(collection string, rows ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		m.rows[collection] = append(m.rows[collection], copyRow(row))
	}
}

// FailWith makes every subsequent op on collection return err; a nil err
// clears the injection. op is one of select, selectone, count, exists,
// insert, update, delete.
func (m *MemGateway) FailWith(op, collection string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := op + ":" + collection
	if err == nil {
		delete(m.failOn, key)
	} else {
		m.failOn[key] = err
	}
}

// Calls returns how many times op ran against collection.
func (m *MemGateway) Calls(op, collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op+":"+collection]
}

// Rows returns the current rows of a collection, newest insertions last.
func (m *MemGateway) Rows(collection string) []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]any, len(m.rows[collection]))
	copy(out, m.rows[collection])
	return out
}

func (m *MemGateway) begin(op, collection string) error {
	if m.Hook != nil {
		m.Hook(op, collection)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op+":"+collection]++
	if err, ok := m.failOn[op+":"+collection]; ok {
		return err
	}
	return nil
}

func (m *MemGateway) Select(ctx context.Context, q gateway.Query, dest any) error {
	if err := m.begin("select", q.Collection); err != nil {
		return err
	}
	matched := m.query(q)
	return assign(dest, matched)
}

func (m *MemGateway) SelectOne(ctx context.Context, q gateway.Query, dest any) error {
	if err := m.begin("selectone", q.Collection); err != nil {
		return err
	}
	matched := m.query(q)
	if len(matched) == 0 {
		var id any = "?"
		if len(q.Filters) > 0 {
			id = q.Filters[0].Value
		}
		return models.NewNotFoundError(q.Collection, id)
	}
	return assign(dest, matched[:1])
}

func (m *MemGateway) Count(ctx context.Context, q gateway.Query) (int64, error) {
	if err := m.begin("count", q.Collection); err != nil {
		return 0, err
	}
	return int64(len(m.query(q))), nil
}

func (m *MemGateway) Exists(ctx context.Context, q gateway.Query) (bool, error) {
	if err := m.begin("exists", q.Collection); err != nil {
		return false, err
	}
	return len(m.query(q)) > 0, nil
}

func (m *MemGateway) Insert(ctx context.Context, collection string, row any) error {
	if err := m.begin("insert", collection); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[collection] = append(m.rows[collection], copyRow(row))
	return nil
}

func (m *MemGateway) Update(ctx context.Context, collection string, filters []gateway.Filter, values map[string]any) error {
	if err := m.begin("update", collection); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows[collection] {
		if matches(row, filters, nil) {
			for field, value := range values {
				setField(row, field, value)
			}
		}
	}
	return nil
}

func (m *MemGateway) Delete(ctx context.Context, collection string, filters []gateway.Filter) error {
	if err := m.begin("delete", collection); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[collection][:0]
	for _, row := range m.rows[collection] {
		if !matches(row, filters, nil) {
			kept = append(kept, row)
		}
	}
	m.rows[collection] = kept
	return nil
}

// query evaluates filters, order, offset, and limit, returning row copies.
func (m *MemGateway) query(q gateway.Query) []any {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []any
	for _, row := range m.rows[q.Collection] {
		if matches(row, q.Filters, q.Any) {
			matched = append(matched, copyRow(row))
		}
	}

	if len(q.Order) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, ord := range q.Order {
				c := compare(fieldOf(matched[i], ord.Field), fieldOf(matched[j], ord.Field))
				if c == 0 {
					continue
				}
				if ord.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched
}

func matches(row any, all, anyOf []gateway.Filter) bool {
	for _, f := range all {
		if !matchFilter(row, f) {
			return false
		}
	}
	if len(anyOf) == 0 {
		return true
	}
	for _, f := range anyOf {
		if matchFilter(row, f) {
			return true
		}
	}
	return false
}

func matchFilter(row any, f gateway.Filter) bool {
	got := fieldOf(row, f.Field)
	switch f.Op {
	case gateway.OpILike:
		pattern, _ := f.Value.(string)
		needle := strings.ToLower(strings.Trim(pattern, "%"))
		haystack := strings.ToLower(fmt.Sprintf("%v", got))
		return strings.Contains(haystack, needle)
	default:
		return fmt.Sprintf("%v", got) == fmt.Sprintf("%v", f.Value)
	}
}

func compare(a, b any) int {
	switch av := a.(type) {
	case time.Time:
		bv := b.(time.Time)
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		}
		return 0
	case string:
		return strings.Compare(av, b.(string))
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case av:
			return 1
		}
		return -1
	default:
		return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
	}
}

func copyRow(row any) any {
	switch r := row.(type) {
	case *models.Post:
		c := *r
		return &c
	case *models.Profile:
		c := *r
		return &c
	case *models.Like:
		c := *r
		return &c
	case *models.Comment:
		c := *r
		return &c
	case *models.Follow:
		c := *r
		return &c
	case *models.Notification:
		c := *r
		return &c
	default:
		panic(fmt.Sprintf("testutil: unknown row type %T", row))
	}
}

func fieldOf(row any, field string) any {
	switch r := row.(type) {
	case *models.Post:
		switch field {
		case "id":
			return r.ID
		case "user_id":
			return r.UserID
		case "image_url":
			return r.ImageURL
		case "caption":
			return r.Caption
		case "location":
			return r.Location
		case "created_at":
			return r.CreatedAt
		case "updated_at":
			return r.UpdatedAt
		}
	case *models.Profile:
		switch field {
		case "id":
			return r.ID
		case "user_id":
			return r.UserID
		case "username":
			return r.Username
		case "full_name":
			return r.FullName
		case "avatar_url":
			return r.AvatarURL
		case "bio":
			return r.Bio
		case "website":
			return r.Website
		case "is_private":
			return r.IsPrivate
		case "created_at":
			return r.CreatedAt
		}
	case *models.Like:
		switch field {
		case "id":
			return r.ID
		case "user_id":
			return r.UserID
		case "post_id":
			return r.PostID
		case "created_at":
			return r.CreatedAt
		}
	case *models.Comment:
		switch field {
		case "id":
			return r.ID
		case "post_id":
			return r.PostID
		case "user_id":
			return r.UserID
		case "content":
			return r.Content
		case "created_at":
			return r.CreatedAt
		}
	case *models.Follow:
		switch field {
		case "id":
			return r.ID
		case "follower_id":
			return r.FollowerID
		case "following_id":
			return r.FollowingID
		case "created_at":
			return r.CreatedAt
		}
	case *models.Notification:
		switch field {
		case "id":
			return r.ID
		case "user_id":
			return r.UserID
		case "actor_id":
			return r.ActorID
		case "type":
			return string(r.Type)
		case "post_id":
			return r.PostID
		case "is_read":
			return r.IsRead
		case "created_at":
			return r.CreatedAt
		}
	}
	panic(fmt.Sprintf("testutil: unknown field %q on %T", field, row))
}

func setField(row any, field string, value any) {
	switch r := row.(type) {
	case *models.Profile:
		switch field {
		case "full_name":
			r.FullName = value.(string)
			return
		case "bio":
			r.Bio = value.(string)
			return
		case "website":
			r.Website = value.(string)
			return
		case "avatar_url":
			r.AvatarURL = value.(string)
			return
		case "is_private":
			r.IsPrivate = value.(bool)
			return
		case "updated_at":
			r.UpdatedAt = value.(time.Time)
			return
		}
	case *models.Post:
		switch field {
		case "caption":
			r.Caption = value.(string)
			return
		case "location":
			r.Location = value.(string)
			return
		case "updated_at":
			r.UpdatedAt = value.(time.Time)
			return
		}
	case *models.Notification:
		switch field {
		case "is_read":
			r.IsRead = value.(bool)
			return
		}
	}
	panic(fmt.Sprintf("testutil: cannot set field %q on %T", field, row))
}

func assign(dest any, rows []any) error {
	switch d := dest.(type) {
	case *[]*models.Post:
		out := make([]*models.Post, len(rows))
		for i, row := range rows {
			out[i] = row.(*models.Post)
		}
		*d = out
	case *[]*models.Profile:
		out := make([]*models.Profile, len(rows))
		for i, row := range rows {
			out[i] = row.(*models.Profile)
		}
		*d = out
	case *[]*models.Like:
		out := make([]*models.Like, len(rows))
		for i, row := range rows {
			out[i] = row.(*models.Like)
		}
		*d = out
	case *[]*models.Comment:
		out := make([]*models.Comment, len(rows))
		for i, row := range rows {
			out[i] = row.(*models.Comment)
		}
		*d = out
	case *[]*models.Follow:
		out := make([]*models.Follow, len(rows))
		for i, row := range rows {
			out[i] = row.(*models.Follow)
		}
		*d = out
	case *[]*models.Notification:
		out := make([]*models.Notification, len(rows))
		for i, row := range rows {
			out[i] = row.(*models.Notification)
		}
		*d = out
	case *models.Post:
		*d = *rows[0].(*models.Post)
	case *models.Profile:
		*d = *rows[0].(*models.Profile)
	case *models.Like:
		*d = *rows[0].(*models.Like)
	case *models.Comment:
		*d = *rows[0].(*models.Comment)
	case *models.Follow:
		*d = *rows[0].(*models.Follow)
	case *models.Notification:
		*d = *rows[0].(*models.Notification)
	default:
		return fmt.Errorf("testutil: unsupported dest type %T", dest)
	}
	return nil
}
