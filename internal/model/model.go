// Package model defines the domain types shared across the application.
package model

import (
	"encoding/json"
	"time"
)

// Kind is the normalized discriminator of a log event.
type Kind string

const (
	KindUser      Kind = "user"
	KindAssistant Kind = "assistant"
	KindSystem    Kind = "system"
	KindTool      Kind = "tool"
	KindResult    Kind = "result"
	KindUnknown   Kind = "unknown"
)

// ParseKind maps a raw "type" value to a Kind. Unrecognized values map to
// KindUnknown; they are never rejected.
func ParseKind(raw string) Kind {
	switch k := Kind(raw); k {
	case KindUser, KindAssistant, KindSystem, KindTool, KindResult:
		return k
	default:
		return KindUnknown
	}
}

// NormalizedEvent is the canonical shape of one log line after classification.
// Exactly one of System, Tool and Result is set when Kind names it; Message is
// set whenever the line carried a "message" object.
type NormalizedEvent struct {
	SessionID   string
	UUID        string // empty when absent
	ParentUUID  string
	Kind        Kind
	Type        string // original "type" value, kept even when Kind is unknown
	Subtype     string
	Timestamp   time.Time // zero when absent or unparseable
	IsSidechain bool
	AgentID     string
	CWD         string
	GitBranch   string
	RequestID   string

	Message  *Message
	ToolUses []ToolUseRecord

	System *SystemInfo
	Tool   *ToolExecution
	Result *ResultInfo

	Raw json.RawMessage
}

// Message is the structured "message" payload of user and assistant events.
type Message struct {
	ID          string
	Role        string
	Model       string
	StopReason  string
	Text        string          // concatenated text parts, or the plain string content
	Content     json.RawMessage // original content, string or array
	RawMessage  json.RawMessage // whole message object
	ToolResults int             // number of tool_result parts
}

// SystemInfo holds fields of system events (subtype "init" carries cwd).
type SystemInfo struct {
	SessionID string
	CWD       string
	Model     string
}

// ToolExecution holds fields of stand-alone tool events on the live stream.
type ToolExecution struct {
	Name   string
	CallID string
	Input  json.RawMessage
	Output json.RawMessage
	Status string
}

// ResultInfo holds the terminal result event of a live invocation.
type ResultInfo struct {
	SessionID     string
	TotalCostUSD  float64
	DurationMS    int64
	DurationAPIMS int64
	NumTurns      int
	IsError       bool
	Error         string
	Text          string
}

// SessionIDHint returns the session identifier reported by the event itself,
// if any. Only system and result events carry one on the live stream.
func (e *NormalizedEvent) SessionIDHint() string {
	switch {
	case e.System != nil && e.System.SessionID != "":
		return e.System.SessionID
	case e.Result != nil && e.Result.SessionID != "":
		return e.Result.SessionID
	}
	return ""
}

// Text returns the extracted textual payload, or "".
func (e *NormalizedEvent) Text() string {
	if e.Message == nil {
		return ""
	}
	return e.Message.Text
}

// ToolUseRecord is one tool invocation found in a message's content parts.
type ToolUseRecord struct {
	EventUUID  string
	ToolName   string
	ToolCallID string
	Input      json.RawMessage
	Timestamp  time.Time
}

// SessionRecord is the persisted summary of one log stream.
type SessionRecord struct {
	SessionID      string
	ProjectPath    string
	IsAgent        bool
	AgentID        string
	CreatedAt      time.Time
	LastActive     time.Time
	EventCount     int
	Model          string
	SourcePath     string
	SourceSize     int64
	LastImportedAt time.Time
}

// SearchResult is an event matched by a text search.
type SearchResult struct {
	ID        int64
	SessionID string
	Type      string
	Content   string
	Timestamp time.Time
}

// ToolResult is a stored tool invocation matched by a tool search.
type ToolResult struct {
	SessionID string
	ToolName  string
	ToolInput string // raw JSON
	Timestamp time.Time
}

// ProjectStat aggregates sessions per project.
type ProjectStat struct {
	ProjectPath  string
	SessionCount int
	LastActive   time.Time
}

// NameCount is a generic "name, count" aggregate row.
type NameCount struct {
	Name  string
	Count int
}

// EventPreview is a short view of a stored event.
type EventPreview struct {
	Type      string
	Timestamp time.Time
	Preview   string
}

// Timeline holds the first and last event timestamps of a session.
type Timeline struct {
	Start time.Time
	End   time.Time
}

// Duration returns End-Start, or 0 when either bound is unknown.
func (t Timeline) Duration() time.Duration {
	if t.Start.IsZero() || t.End.IsZero() || t.End.Before(t.Start) {
		return 0
	}
	return t.End.Sub(t.Start)
}
