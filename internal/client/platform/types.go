package platform

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// LookupMaxIDs is the most identifiers one bulk lookup accepts.
const LookupMaxIDs = 100

// BlocksPage is one page of a block listing. IDs preserves the wire order.
type BlocksPage struct {
	IDs        []string
	NextCursor string
}

// User is the subset of a lookup result the engine records.
type User struct {
	ID          string
	Handle      string
	DisplayName string
}

// rawID accepts an identifier sent either as a JSON string or as a bare
// number and keeps its exact decimal form. Large ids overflow float64, so the
// numeric form is re-rendered from the raw token rather than a parsed value.
type rawID string

func (r *rawID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*r = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = rawID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id is neither string nor number: %w", err)
	}
	*r = rawID(n.String())
	return nil
}

// rawCursor accepts a pagination cursor as either a string or a number.
type rawCursor string

func (r *rawCursor) UnmarshalJSON(data []byte) error {
	id := rawID("")
	if err := id.UnmarshalJSON(data); err != nil {
		return err
	}
	*r = rawCursor(id)
	return nil
}

func parseBlocksPage(data []byte) (*BlocksPage, error) {
	var raw struct {
		IDs           []rawID   `json:"ids"`
		NextCursorStr rawCursor `json:"next_cursor_str"`
		NextCursor    rawCursor `json:"next_cursor"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse blocks page: %w", err)
	}
	page := &BlocksPage{IDs: make([]string, 0, len(raw.IDs))}
	for _, id := range raw.IDs {
		if id == "" {
			continue
		}
		page.IDs = append(page.IDs, string(id))
	}
	page.NextCursor = string(raw.NextCursorStr)
	if page.NextCursor == "" {
		page.NextCursor = string(raw.NextCursor)
	}
	if page.NextCursor == "" {
		page.NextCursor = CursorEnd
	}
	return page, nil
}

func parseUsers(data []byte) ([]User, error) {
	var raw []struct {
		ID         rawID  `json:"id"`
		IDStr      string `json:"id_str"`
		ScreenName string `json:"screen_name"`
		Name       string `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse user lookup: %w", err)
	}
	users := make([]User, 0, len(raw))
	for _, u := range raw {
		id := u.IDStr
		if id == "" {
			id = string(u.ID)
		}
		if id == "" {
			continue
		}
		users = append(users, User{ID: id, Handle: u.ScreenName, DisplayName: u.Name})
	}
	return users, nil
}

// ChunkIDs splits ids into lookup-sized batches.
func ChunkIDs(ids []string, size int) [][]string {
	if size <= 0 {
		size = LookupMaxIDs
	}
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
