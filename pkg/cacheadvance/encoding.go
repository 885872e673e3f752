package cacheadvance

import "encoding/json"

// JSONEncoder is the default [Encoder]: it marshals messages with
// encoding/json (spec §6).
type JSONEncoder[T any] struct{}

func (JSONEncoder[T]) Encode(v T) ([]byte, error) {
	return json.Marshal(v)
}

// JSONDecoder is the default [Decoder], the inverse of [JSONEncoder].
type JSONDecoder[T any] struct{}

func (JSONDecoder[T]) Decode(b []byte) (T, error) {
	var v T

	err := json.Unmarshal(b, &v)

	return v, err
}
