package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// areasPath is the fixed path into the registry document that holds the
// area record list.
const areasPath = "data.areas"

// ReadError indicates the registry file could not be read or is not
// parseable as the expected structure.
type ReadError struct {
	// Path is the registry file that failed to read.
	Path string
	// Err is the underlying cause.
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read registry %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// ReadSnapshot parses the registry file at path and returns the full area
// collection as a Snapshot, preserving the file's record order.
//
// A document that parses as JSON but lacks the data.areas collection yields
// an empty Snapshot, not an error: absence of the collection is a valid
// registry state. Only a missing/unreadable file, invalid JSON, a
// non-array value at data.areas, or a record failing validation produce a
// *ReadError.
//
// ReadSnapshot has no side effects.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}

	if !gjson.ValidBytes(data) {
		return nil, &ReadError{Path: path, Err: fmt.Errorf("invalid JSON document")}
	}

	result := gjson.GetBytes(data, areasPath)
	if !result.Exists() {
		// No area collection in the document. Valid, just empty.
		return Snapshot{}, nil
	}
	if !result.IsArray() {
		return nil, &ReadError{Path: path, Err: fmt.Errorf("%s is not an array", areasPath)}
	}

	var areas []Area
	if err := json.Unmarshal([]byte(result.Raw), &areas); err != nil {
		return nil, &ReadError{Path: path, Err: fmt.Errorf("failed to parse %s: %w", areasPath, err)}
	}

	for i := range areas {
		if err := areas[i].Validate(); err != nil {
			return nil, &ReadError{Path: path, Err: fmt.Errorf("invalid area at index %d: %w", i, err)}
		}
	}

	return Snapshot(areas), nil
}
