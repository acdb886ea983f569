package statement

import (
	"encoding/base64"
	"encoding/json"

	"github.com/ganot/coursetrace/internal/storage"
)

// cursor resumes a multi-partition query: Source indexes into the actor's
// candidate key set, Token is the underlying table's continuation token for
// that partition.
type cursor struct {
	Source int    `json:"s"`
	Token  string `json:"t,omitempty"`
}

func encodeCursor(c cursor) string {
	data, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeCursor(s string) (cursor, error) {
	var c cursor
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return cursor{}, storage.WithStatus(400, storage.ErrBadToken)
	}
	if err := json.Unmarshal(data, &c); err != nil || c.Source < 0 {
		return cursor{}, storage.WithStatus(400, storage.ErrBadToken)
	}
	return c, nil
}
