package models

import "encoding/json"

// Object is a single configuration record, kept as the raw JSON the appliance
// returned so it can be re-submitted byte for byte.
type Object = json.RawMessage

// Collection is an ordered list of configuration records.
type Collection []Object

// MarshalJSON encodes a nil collection as [] rather than null.
func (c Collection) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]json.RawMessage(c))
}
