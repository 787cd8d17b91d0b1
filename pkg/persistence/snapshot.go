package persistence

import (
	"cmp"
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/dukex/taskgraph/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed snapshot.schema.json
var snapshotSchemaJSON []byte

var snapshotSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(snapshotSchemaJSON))
})

// EncodeSnapshot serialises a snapshot document.
func EncodeSnapshot(state *models.InstanceState) ([]byte, error) {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	return data, nil
}

// DecodeSnapshot validates data against the snapshot schema and decodes it.
func DecodeSnapshot(data []byte) (*models.InstanceState, error) {
	schema, err := snapshotSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrCorruptSnapshot, strings.Join(problems, "; "))
	}

	var state models.InstanceState

	err = json.Unmarshal(data, &state)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	if state.Nodes == nil {
		state.Nodes = make(map[string]*models.NodeRecord)
	}

	if state.Context == nil {
		state.Context = make(map[string]json.RawMessage)
	}

	return &state, nil
}

// DecodeEvents decodes log entries, skipping those of unknown type. Malformed
// entries are reported through skip and ignored.
func DecodeEvents(lines [][]byte, skip func(line int, err error)) []models.Event {
	events := make([]models.Event, 0, len(lines))

	for i, line := range lines {
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		event, err := models.UnmarshalEvent(line)
		if err != nil {
			if skip != nil {
				skip(i+1, err)
			}

			continue
		}

		events = append(events, event)
	}

	slices.SortStableFunc(events, func(a, b models.Event) int {
		return cmp.Compare(a.GetSequence(), b.GetSequence())
	})

	return events
}
