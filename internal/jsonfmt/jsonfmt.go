// Package jsonfmt normalises API response bodies and renders them as
// sorted-key, indented JSON for the console and the log artifact.
package jsonfmt

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/pretty"
)

// Indent is the indentation used for every rendered document.
const Indent = "  "

// Width 0 keeps every array element on its own line.
var prettyOptions = &pretty.Options{
	Width:    0,
	Prefix:   "",
	Indent:   Indent,
	SortKeys: true,
}

// Decode returns body unchanged when it is valid JSON. Anything else
// (including an empty body) is wrapped as {"raw": "<text>"}.
func Decode(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return trimmed
	}
	wrapped, _ := json.Marshal(map[string]string{"raw": string(body)})
	return wrapped
}

// IsRaw reports whether doc is a {"raw": ...} wrapper produced by Decode.
func IsRaw(doc []byte) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(doc, &m); err != nil {
		return false
	}
	_, ok := m["raw"]
	return ok && len(m) == 1
}

// Pretty renders a JSON document with sorted keys and two-space indent.
// The result never carries a trailing newline.
func Pretty(doc []byte) []byte {
	if !json.Valid(doc) {
		doc = Decode(doc)
	}
	return bytes.TrimRight(pretty.PrettyOptions(doc, prettyOptions), "\n")
}

// Marshal encodes v and renders it like Pretty.
func Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Pretty(data), nil
}
