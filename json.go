package packstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/packstore/packstore/codec"
)

type jsonEntry struct {
	Key   json.RawMessage `json:"key"`
	Value json.RawMessage `json:"value"`
}

// ParseJSON converts a JSON document into a Value. Integral numbers become Int
// (or Uint above the int64 range), other numbers become Float.
func ParseJSON(data []byte) (codec.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return codec.Value{}, err
	}
	if dec.More() {
		return codec.Value{}, fmt.Errorf("trailing data after JSON value")
	}
	return codec.ValueOf(fromJSON(v))
}

func fromJSON(v interface{}) interface{} {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(x.String(), 10, 64); err == nil {
			return u
		}
		f, _ := x.Float64()
		return f
	case []interface{}:
		for i := range x {
			x[i] = fromJSON(x[i])
		}
	case map[string]interface{}:
		for k := range x {
			x[k] = fromJSON(x[k])
		}
	}
	return v
}

// ExportJSON writes every stored pair, in key order, to a JSON file as an array
// of {"key": ..., "value": ...} objects. Bytes are written as base64 strings and
// times as RFC 3339 strings, so they are imported back as strings.
func (db *DB) ExportJSON(exportPath string) error {
	entries := make([]map[string]interface{}, 0)
	err := db.ForEach(func(key, value codec.Value) error {
		entries = append(entries, map[string]interface{}{
			"key":   key.Interface(),
			"value": value.Interface(),
		})
		return nil
	})
	if err != nil {
		return err
	}

	jsonString, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return os.WriteFile(exportPath, jsonString, 0o644)
}

// ImportJSON stores the pairs of a file written by ExportJSON, replacing the
// values of keys that are already stored. The pairs are written in a single
// transaction.
func (db *DB) ImportJSON(importPath string) error {
	file, err := os.Open(importPath)
	if err != nil {
		return err
	}
	defer file.Close()

	var entries []jsonEntry
	if err := json.NewDecoder(bufio.NewReader(file)).Decode(&entries); err != nil {
		return fmt.Errorf("%s: %w", importPath, err)
	}

	keys := make([]codec.Value, len(entries))
	values := make([]codec.Value, len(entries))
	for i, e := range entries {
		if keys[i], err = ParseJSON(e.Key); err != nil {
			return fmt.Errorf("%s: entry %d key: %w", importPath, i, err)
		}
		if values[i], err = ParseJSON(e.Value); err != nil {
			return fmt.Errorf("%s: entry %d value: %w", importPath, i, err)
		}
	}

	err = db.update(func(tx *writeTx) error {
		for i, k := range keys {
			encodedKey, err := tx.ctx.encodeKey(k)
			if err != nil {
				return err
			}
			encodedValue, err := tx.ctx.encodeValue(values[i])
			if err != nil {
				return err
			}
			if err := tx.set(encodedKey, encodedValue); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		db.log.Info().Str("file", importPath).Int("entries", len(entries)).Msg("json imported")
	}
	return err
}
