// Package transcript classifies Claude Code JSONL events, both from
// session log files and from the live stream-json protocol.
package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sessionlog/internal/model"
)

// ErrNotObject is returned by Classify for a line that is valid JSON but not
// an object.
var ErrNotObject = errors.New("event is not a JSON object")

type fields map[string]json.RawMessage

// Classify maps one decoded line to a NormalizedEvent. It never rejects an
// event for its shape: unknown types map to KindUnknown and malformed
// sub-fields are dropped and reported as schema mismatches.
func Classify(raw json.RawMessage) (model.NormalizedEvent, []*model.SchemaMismatch, error) {
	var f fields
	if err := json.Unmarshal(raw, &f); err != nil || f == nil {
		return model.NormalizedEvent{}, nil, ErrNotObject
	}

	c := classifier{f: f}
	ev := model.NormalizedEvent{
		Type:        c.str("type"),
		Subtype:     c.str("subtype"),
		UUID:        c.str("uuid"),
		ParentUUID:  c.str("parentUuid"),
		CWD:         c.str("cwd"),
		GitBranch:   c.str("gitBranch"),
		IsSidechain: c.boolean("isSidechain"),
		AgentID:     c.str("agentId"),
		RequestID:   c.str("requestId"),
		SessionID:   c.str("sessionId"),
		Raw:         raw,
	}
	ev.Kind = model.ParseKind(ev.Type)
	ev.Timestamp = parseTimestamp(c.str("timestamp"))
	c.uuid, c.typ = ev.UUID, ev.Type

	if msg, ok := f["message"]; ok && !isNull(msg) {
		ev.Message, ev.ToolUses = c.message(msg, ev.Timestamp)
	}

	switch ev.Kind {
	case model.KindSystem:
		ev.System = &model.SystemInfo{
			SessionID: c.str("session_id"),
			CWD:       ev.CWD,
			Model:     c.str("model"),
		}
	case model.KindTool:
		ev.Tool = &model.ToolExecution{
			Name:   c.firstStr("tool_name", "name"),
			CallID: c.firstStr("tool_call_id", "id"),
			Input:  c.rawField("input"),
			Output: c.rawField("output"),
			Status: c.str("status"),
		}
	case model.KindResult:
		ev.Result = &model.ResultInfo{
			SessionID:     c.str("session_id"),
			TotalCostUSD:  c.float("total_cost_usd"),
			DurationMS:    int64(c.float("duration_ms")),
			DurationAPIMS: int64(c.float("duration_api_ms")),
			NumTurns:      int(c.float("num_turns")),
			IsError:       c.boolean("is_error"),
			Error:         c.text("error"),
			Text:          c.str("result"),
		}
	}
	if ev.SessionID == "" {
		ev.SessionID = ev.SessionIDHint()
	}

	return ev, c.mismatches, nil
}

// classifier decodes individual fields leniently, recording a mismatch
// instead of failing when a field has an unexpected JSON type.
type classifier struct {
	f          fields
	uuid, typ  string
	mismatches []*model.SchemaMismatch
}

func (c *classifier) mismatch(format string, args ...any) {
	c.mismatches = append(c.mismatches, &model.SchemaMismatch{
		EventUUID: c.uuid,
		Type:      c.typ,
		Detail:    fmt.Sprintf(format, args...),
	})
}

func (c *classifier) str(key string) string {
	return c.strFrom(c.f, key)
}

func (c *classifier) strFrom(f fields, key string) string {
	v, ok := f[key]
	if !ok || isNull(v) {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		c.mismatch("field %q is not a string", key)
		return ""
	}
	return s
}

func (c *classifier) firstStr(keys ...string) string {
	for _, k := range keys {
		if s := c.str(k); s != "" {
			return s
		}
	}
	return ""
}

func (c *classifier) boolean(key string) bool {
	v, ok := c.f[key]
	if !ok || isNull(v) {
		return false
	}
	var b bool
	if err := json.Unmarshal(v, &b); err != nil {
		c.mismatch("field %q is not a boolean", key)
		return false
	}
	return b
}

func (c *classifier) float(key string) float64 {
	v, ok := c.f[key]
	if !ok || isNull(v) {
		return 0
	}
	var n float64
	if err := json.Unmarshal(v, &n); err != nil {
		c.mismatch("field %q is not a number", key)
		return 0
	}
	return n
}

// text returns a string field verbatim, or the compact JSON of any other value.
func (c *classifier) text(key string) string {
	v, ok := c.f[key]
	if !ok || isNull(v) {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return string(v)
}

func (c *classifier) rawField(key string) json.RawMessage {
	v, ok := c.f[key]
	if !ok || isNull(v) {
		return nil
	}
	return v
}

func (c *classifier) message(raw json.RawMessage, ts time.Time) (*model.Message, []model.ToolUseRecord) {
	var mf fields
	if err := json.Unmarshal(raw, &mf); err != nil || mf == nil {
		c.mismatch("message is not an object")
		return nil, nil
	}

	msg := &model.Message{
		ID:         c.strFrom(mf, "id"),
		Role:       c.strFrom(mf, "role"),
		Model:      c.strFrom(mf, "model"),
		StopReason: c.strFrom(mf, "stop_reason"),
		RawMessage: raw,
	}

	content, ok := mf["content"]
	if !ok || isNull(content) {
		return msg, nil
	}
	msg.Content = content

	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		msg.Text = s
		return msg, nil
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(content, &parts); err != nil {
		c.mismatch("message content is neither a string nor an array")
		return msg, nil
	}

	var (
		text strings.Builder
		uses []model.ToolUseRecord
	)
	for i, p := range parts {
		var pf fields
		if err := json.Unmarshal(p, &pf); err != nil || pf == nil {
			c.mismatch("content part %d is not an object", i)
			continue
		}
		switch c.strFrom(pf, "type") {
		case "text":
			text.WriteString(c.strFrom(pf, "text"))
		case "tool_use":
			name := c.strFrom(pf, "name")
			if name == "" {
				c.mismatch("tool_use part %d has no name", i)
				continue
			}
			uses = append(uses, model.ToolUseRecord{
				EventUUID:  c.uuid,
				ToolName:   name,
				ToolCallID: c.strFrom(pf, "id"),
				Input:      pf["input"],
				Timestamp:  ts,
			})
		case "tool_result":
			msg.ToolResults++
		default:
			if _, ok := pf["tool_use_id"]; ok {
				msg.ToolResults++
			}
		}
	}
	msg.Text = text.String()
	return msg, uses
}

func isNull(v json.RawMessage) bool {
	return len(v) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// parseTimestamp returns the zero time for absent or unparseable values;
// unknown timestamps are never defaulted to now.
func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

// FirstModel returns the first model named on an assistant event. Later
// differing values are ignored, so a session spanning a model switch keeps
// its original model.
func FirstModel(events []model.NormalizedEvent) string {
	for i := range events {
		ev := &events[i]
		if ev.Kind == model.KindAssistant && ev.Message != nil && ev.Message.Model != "" {
			return ev.Message.Model
		}
	}
	return ""
}
