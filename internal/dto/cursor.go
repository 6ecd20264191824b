package dto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// ErrInvalidCursor is returned when a pagination cursor cannot be decoded
var ErrInvalidCursor = errors.New("invalid pagination cursor")

// Cursor encodes the last-seen (sort key, id) pair of a catalog page along
// with the sort key it was minted under, so a cursor replayed against a
// different ordering is rejected instead of silently misordering. The key is
// kept in string form; the repository interprets it according to the sort
// column. Keyset cursors keep pagination stable under concurrent inserts and
// deletes, unlike numeric offsets.
type Cursor struct {
	Sort string `json:"s"`
	Key  string `json:"k"`
	ID   string `json:"id"`
}

// Encode returns the opaque URL-safe form of the cursor
func (c Cursor) Encode() string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses an opaque cursor produced by Encode
func DecodeCursor(s string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	if c.ID == "" {
		return Cursor{}, ErrInvalidCursor
	}
	return c, nil
}
