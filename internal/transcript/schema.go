package transcript

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"time"

	"sessionlog/internal/model"
)

const schemaVersion = "1.0"

// Schema accumulates the shapes seen across classified events. It only
// observes; nothing in ingestion depends on it.
type Schema struct {
	mu sync.Mutex

	eventTypes   map[string]struct{}
	fieldsByType map[string]map[string]struct{}
	contentTypes map[string]struct{}
	toolNames    map[string]struct{}
	models       map[string]struct{}
	stopReasons  map[string]struct{}

	files  int
	events int
	errors int
}

// NewSchema returns an empty accumulator.
func NewSchema() *Schema {
	return &Schema{
		eventTypes:   map[string]struct{}{},
		fieldsByType: map[string]map[string]struct{}{},
		contentTypes: map[string]struct{}{},
		toolNames:    map[string]struct{}{},
		models:       map[string]struct{}{},
		stopReasons:  map[string]struct{}{},
	}
}

// Observe records the facts carried by one event.
func (s *Schema) Observe(ev *model.NormalizedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events++
	typ := ev.Type
	if typ == "" {
		typ = string(model.KindUnknown)
	}
	s.eventTypes[typ] = struct{}{}

	fieldSet, ok := s.fieldsByType[typ]
	if !ok {
		fieldSet = map[string]struct{}{}
		s.fieldsByType[typ] = fieldSet
	}
	var top map[string]json.RawMessage
	if json.Unmarshal(ev.Raw, &top) == nil {
		for k := range top {
			fieldSet[k] = struct{}{}
		}
	}

	if msg := ev.Message; msg != nil {
		addNonEmpty(s.models, msg.Model)
		addNonEmpty(s.stopReasons, msg.StopReason)
		s.observeContent(msg.Content)
	}
	for _, tu := range ev.ToolUses {
		addNonEmpty(s.toolNames, tu.ToolName)
	}
}

func (s *Schema) observeContent(content json.RawMessage) {
	if isNull(content) {
		return
	}
	var str string
	if json.Unmarshal(content, &str) == nil {
		s.contentTypes["string"] = struct{}{}
		return
	}
	var parts []struct {
		Type string `json:"type"`
	}
	if json.Unmarshal(content, &parts) != nil {
		return
	}
	for _, p := range parts {
		addNonEmpty(s.contentTypes, p.Type)
	}
}

// CountFile records one scanned source.
func (s *Schema) CountFile() {
	s.mu.Lock()
	s.files++
	s.mu.Unlock()
}

// CountError records one line that could not be decoded or classified.
func (s *Schema) CountError() {
	s.mu.Lock()
	s.errors++
	s.mu.Unlock()
}

func addNonEmpty(set map[string]struct{}, v string) {
	if v != "" {
		set[v] = struct{}{}
	}
}

// SchemaStatistics are the totals of a discovery pass.
type SchemaStatistics struct {
	TotalFiles  int `json:"totalFiles"`
	TotalEvents int `json:"totalEvents"`
	ErrorCount  int `json:"errorCount"`
}

// SchemaFacts are the sorted sets of discovered values.
type SchemaFacts struct {
	EventTypes          []string            `json:"eventTypes"`
	FieldsByType        map[string][]string `json:"fieldsByType"`
	MessageContentTypes []string            `json:"messageContentTypes"`
	ToolNames           []string            `json:"toolNames"`
	Models              []string            `json:"models"`
	StopReasons         []string            `json:"stopReasons"`
}

// SchemaSnapshot is the exported form of a Schema.
type SchemaSnapshot struct {
	Version     string           `json:"version"`
	GeneratedAt time.Time        `json:"generatedAt"`
	Statistics  SchemaStatistics `json:"statistics"`
	Schema      SchemaFacts      `json:"schema"`
}

// Snapshot copies the accumulated facts into sorted slices.
func (s *Schema) Snapshot(now time.Time) SchemaSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	byType := make(map[string][]string, len(s.fieldsByType))
	for typ, set := range s.fieldsByType {
		byType[typ] = sortedKeys(set)
	}

	return SchemaSnapshot{
		Version:     schemaVersion,
		GeneratedAt: now.UTC(),
		Statistics: SchemaStatistics{
			TotalFiles:  s.files,
			TotalEvents: s.events,
			ErrorCount:  s.errors,
		},
		Schema: SchemaFacts{
			EventTypes:          sortedKeys(s.eventTypes),
			FieldsByType:        byType,
			MessageContentTypes: sortedKeys(s.contentTypes),
			ToolNames:           sortedKeys(s.toolNames),
			Models:              sortedKeys(s.models),
			StopReasons:         sortedKeys(s.stopReasons),
		},
	}
}

// WriteJSON writes the snapshot as indented JSON.
func (s *Schema) WriteJSON(w io.Writer, now time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.Snapshot(now)); err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	return slices.Sorted(maps.Keys(set))
}
