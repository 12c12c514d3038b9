package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Ref is a relation that arrives either as a bare ID or as an expanded
// document carrying an "id" field. The zero value means no relation.
type Ref struct {
	id  string
	Doc map[string]any
}

// RefTo returns a reference holding only an ID.
func RefTo(id string) Ref { return Ref{id: id} }

// Expanded returns a reference to id carrying the populated fields of the
// related document.
func Expanded(id string, doc map[string]any) Ref {
	d := make(map[string]any, len(doc)+1)
	for k, v := range doc {
		d[k] = v
	}
	d["id"] = id
	return Ref{id: id, Doc: d}
}

// ID returns the referenced ID regardless of how the relation was supplied.
func (r Ref) ID() string { return r.id }

// IsZero reports whether the reference is absent.
func (r Ref) IsZero() bool { return r.id == "" }

// MarshalJSON writes the expanded document when present, the bare ID otherwise.
func (r Ref) MarshalJSON() ([]byte, error) {
	if r.id == "" {
		return []byte("null"), nil
	}
	if r.Doc != nil {
		return json.Marshal(r.Doc)
	}
	return json.Marshal(r.id)
}

// UnmarshalJSON accepts null, a string or numeric ID, or an object with "id".
func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*r = Ref{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		r.id = s
		return nil
	case '{':
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		id, ok := idString(doc["id"])
		if !ok {
			return fmt.Errorf("reference object has no id")
		}
		r.id = id
		r.Doc = doc
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid reference: %s", data)
		}
		r.id = n.String()
		return nil
	}
}

func idString(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		return id, id != ""
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case json.Number:
		return id.String(), true
	default:
		return "", false
	}
}
