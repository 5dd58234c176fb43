// Package persist provides helpers to store state as JSON snapshots.
//
// Every persisted record is a JSON object carrying its concrete type in the
// TypeKey field. Loaders read the tag with PeekType and decode into the
// matching Go type. The set of tags is closed, each package that owns
// heterogeneous records decodes them with an explicit switch.
package persist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// TypeKey is the name of the JSON field containing the type tag.
const TypeKey = "__persistent_type__"

var ErrTypeMismatch = errors.New("persistent type mismatch")

// Marshal encodes v as JSON object and adds the TypeKey field with the value
// tag. v must encode to a JSON object.
func Marshal(tag string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	body = bytes.TrimSpace(body)
	if len(body) < 2 || body[0] != '{' || body[len(body)-1] != '}' {
		return nil, fmt.Errorf("%s: value does not encode to a json object", tag)
	}

	tagField, err := json.Marshal(tag)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(TypeKey) + len(tagField) + 4)
	buf.WriteString(`{"` + TypeKey + `":`)
	buf.Write(tagField)

	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// PeekType returns the value of the TypeKey field of the JSON object in data.
func PeekType(data []byte) (string, error) {
	var t struct {
		Type string `json:"__persistent_type__"`
	}

	if err := json.Unmarshal(data, &t); err != nil {
		return "", err
	}

	if t.Type == "" {
		return "", fmt.Errorf("json object has no %s field", TypeKey)
	}

	return t.Type, nil
}

// Unmarshal decodes data into v after ensuring that its type tag is
// wantTag.
func Unmarshal(data []byte, wantTag string, v any) error {
	tag, err := PeekType(data)
	if err != nil {
		return err
	}

	if tag != wantTag {
		return fmt.Errorf("%w: got %q, expected %q", ErrTypeMismatch, tag, wantTag)
	}

	return json.Unmarshal(data, v)
}
