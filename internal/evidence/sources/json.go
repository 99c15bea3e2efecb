package sources

import (
	"bytes"
	"encoding/json"
)

// oneOrMany decodes a JSON array, a single object or an empty value into a
// slice. The pest and agency APIs collapse one-row lists into bare objects.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")), bytes.Equal(data, []byte(`""`)):
		*o = nil
	case data[0] == '[':
		var many []T
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*o = many
	default:
		var one T
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*o = oneOrMany[T]{one}
	}
	return nil
}
