package api

import (
	"encoding/json"
	"errors"
	"io"
)

var errInvalidJSON = errors.New("invalid JSON body")

// decodeJSON decodes exactly one JSON value into dst. Field rules are checked
// by the managers, which own them.
func decodeJSON(body io.Reader, dst any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errInvalidJSON
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errInvalidJSON
	}

	return nil
}
