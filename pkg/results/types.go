// Package results merges the pages of a paginated VK list method into a single result.
package results

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingID is returned when decoding an indexed object that carries no "id" field.
var ErrMissingID = errors.New("object has no id")

// Object is an API record identified by its "id" field.
// Raw keeps the complete JSON of the record so no fields are lost across merges.
type Object struct {
	ID  int64
	Raw json.RawMessage
}

// UnmarshalJSON extracts the id and keeps a copy of the raw record.
func (o *Object) UnmarshalJSON(data []byte) error {
	var head struct {
		ID *int64 `json:"id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("decode object: %w", err)
	}
	if head.ID == nil {
		return ErrMissingID
	}

	o.ID = *head.ID
	o.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON writes the raw record, or just the id when the object was built in code.
func (o Object) MarshalJSON() ([]byte, error) {
	if len(o.Raw) == 0 {
		return json.Marshal(struct {
			ID int64 `json:"id"`
		}{o.ID})
	}
	return o.Raw, nil
}

// Page is a single response of a paginated list method.
type Page struct {
	// Count is the total number of items the server reports for the whole listing.
	Count int `json:"count"`

	// Items are the primary records of this page, in server order.
	Items []json.RawMessage `json:"items"`

	// Profiles and Groups are attached by the server in extended mode.
	Profiles []Object `json:"profiles,omitempty"`
	Groups   []Object `json:"groups,omitempty"`
}

// Extended holds the related object collections of an extended listing.
type Extended struct {
	Profiles []Object `json:"profiles"`
	Groups   []Object `json:"groups"`
}

// Result is the merged view of every page seen so far.
// Extended is nil unless extended mode was requested, so its keys are absent from JSON.
type Result struct {
	Count int               `json:"count"`
	Items []json.RawMessage `json:"items"`
	*Extended
}
