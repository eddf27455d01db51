package storage

import "encoding/json"

// MarshalJSONIndent marshals v as pretty-printed JSON with a trailing
// newline, matching the on-disk format mandated for every JSON file in the
// session/checkpoint layout.
func MarshalJSONIndent(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, newErr(ErrSerialization, "", err)
	}
	return append(data, '\n'), nil
}

// WriteJSON pretty-marshals v and writes it to key through Backend.Write.
func WriteJSON(b Backend, key string, v any) error {
	data, err := MarshalJSONIndent(v)
	if err != nil {
		return err
	}
	return b.Write(key, data)
}

// ReadJSON reads key and unmarshals it into v. A missing key surfaces as a
// storage NotFound error so callers can distinguish "absent" from
// "corrupt".
func ReadJSON(b Backend, key string, v any) error {
	data, err := b.Read(key)
	if err != nil {
		return err
	}
	if unmarshalErr := json.Unmarshal(data, v); unmarshalErr != nil {
		return newErr(ErrDeserialization, key, unmarshalErr)
	}
	return nil
}
