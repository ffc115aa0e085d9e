package pagination

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/famledger/internal/common"
)

type cursorState struct {
	SortKey   string    `json:"k"`
	Direction Direction `json:"d"`
	Value     any       `json:"v"`
	ID        string    `json:"id"`
}

func encodeCursor(c cursorState) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// decodeCursor restores the sort value with its SQL type: integers stay
// int64 so large timestamps keep full precision.
func decodeCursor(s string) (cursorState, error) {
	var c cursorState

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("%w: malformed cursor", common.ErrInvalidArgument)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&c); err != nil || c.ID == "" {
		return c, fmt.Errorf("%w: malformed cursor", common.ErrInvalidArgument)
	}

	switch v := c.Value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			c.Value = i
		} else if f, err := v.Float64(); err == nil {
			c.Value = f
		} else {
			return c, fmt.Errorf("%w: malformed cursor value", common.ErrInvalidArgument)
		}
	case string:
	default:
		return c, fmt.Errorf("%w: unsupported cursor value %T", common.ErrInvalidArgument, c.Value)
	}
	return c, nil
}
