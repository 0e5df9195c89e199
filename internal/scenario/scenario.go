// Package scenario loads scenario definitions from JSON or Lua files and
// derives the stable identifiers and schema that describe them.
package scenario

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/invopop/jsonschema"

	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/scenario/script"
)

// ErrUnsupportedFormat indicates a scenario file extension with no loader.
var ErrUnsupportedFormat = errors.New("unsupported scenario format")

// Decode reads a JSON scenario and validates it. Unknown fields are rejected.
func Decode(r io.Reader) (domain.Scenario, error) {
	var sc domain.Scenario
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sc); err != nil {
		return domain.Scenario{}, fmt.Errorf("decode scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return domain.Scenario{}, err
	}
	return sc, nil
}

// LoadFile loads a .json or .lua scenario. A scenario without a name is
// named after its file.
func LoadFile(path string) (domain.Scenario, error) {
	var (
		sc  domain.Scenario
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var data []byte
		data, err = os.ReadFile(path)
		if err != nil {
			return domain.Scenario{}, fmt.Errorf("read scenario: %w", err)
		}
		sc, err = Decode(bytes.NewReader(data))
	case ".lua":
		sc, err = script.LoadFile(path)
		if err == nil {
			err = sc.Validate()
		}
	default:
		return domain.Scenario{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return domain.Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	if strings.TrimSpace(sc.Name) == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return sc, nil
}

// Hash returns a stable identifier of the scenario's content. Two
// scenarios with the same hash produce the same runs for the same seed.
func Hash(sc domain.Scenario) (string, error) {
	data, err := json.Marshal(sc)
	if err != nil {
		return "", fmt.Errorf("hash scenario: %w", err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data)), nil
}

// Schema describes the JSON scenario format.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
	}
	schema := reflector.Reflect(&domain.Scenario{})
	schema.Title = "Skirmish Scenario"
	schema.Description = "A party of player characters and the timeline of encounters and rests it faces."
	return schema
}

// WriteSchema writes the indented JSON schema to w.
func WriteSchema(w io.Writer) error {
	data, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write schema: %w", err)
	}
	return nil
}
