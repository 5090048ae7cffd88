package ovsdb

import (
	"bytes"
	"encoding/json"
)

// UnmarshalJSON decodes with UseNumber so integer columns survive intact.
func UnmarshalJSON(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(out)
}
