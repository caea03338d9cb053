package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Params is what a listing endpoint accepts from the caller.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor marks the last row already returned. Ledger listings are newest
// first, ties on created_at broken by id, so the pair is a total order.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

var errMalformedCursor = errors.New("malformed cursor")

type wireCursor struct {
	At string `json:"at"`
	ID string `json:"id"`
}

func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// LimitWithBuffer over-fetches one row; its presence means another page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Find runs q as a keyset page: rows strictly after the cursor, newest
// first, one extra row fetched to decide whether a next cursor is emitted.
// A cursor that does not decode is a caller error, not a storage one.
func Find[T any](q *gorm.DB, params Params, cursorOf func(T) Cursor) (Page[T], error) {
	cursor, err := ParseCursor(params.Cursor)
	if err != nil {
		return Page[T]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []T
	if err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(LimitWithBuffer(params.Limit)).
		Find(&rows).Error; err != nil {
		return Page[T]{}, err
	}
	return Build(rows, params.Limit, cursorOf), nil
}

// Build drops the buffered row, if any, and points the next cursor at the
// last row kept.
func Build[T any](rows []T, limit int, cursorOf func(T) Cursor) Page[T] {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		return Page[T]{Items: rows}
	}
	kept := rows[:limit]
	return Page[T]{Items: kept, NextCursor: EncodeCursor(cursorOf(kept[limit-1]))}
}

// EncodeCursor is opaque to callers; they only hand it back.
func EncodeCursor(c Cursor) string {
	raw, _ := json.Marshal(wireCursor{
		At: c.CreatedAt.UTC().Format(time.RFC3339Nano),
		ID: c.ID.String(),
	})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor returns nil for a blank value: the first page.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedCursor, err)
	}
	var w wireCursor
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedCursor, err)
	}
	at, err := time.Parse(time.RFC3339Nano, w.At)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", errMalformedCursor, err)
	}
	id, err := uuid.Parse(w.ID)
	if err != nil || id == uuid.Nil {
		return nil, fmt.Errorf("%w: id %q", errMalformedCursor, w.ID)
	}
	return &Cursor{CreatedAt: at, ID: id}, nil
}
