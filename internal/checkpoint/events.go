package checkpoint

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"agentcore/internal/storage"
)

// EventKind classifies an Event per SPEC_FULL §3.
type EventKind string

const (
	EventMessage      EventKind = "message"
	EventToolCall     EventKind = "tool_call"
	EventToolResult   EventKind = "tool_result"
	EventSystemSignal EventKind = "system_signal"
	EventError        EventKind = "error"
)

// Event is one immutable line of a session's events.jsonl.
type Event struct {
	ID          string          `json:"id"`
	Kind        EventKind       `json:"kind"`
	SessionID   string          `json:"session_id"`
	ProjectHash string          `json:"project_hash"`
	Timestamp   time.Time       `json:"timestamp"`
	Sequence    int             `json:"sequence"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

func marshalPayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	return data, nil
}

// eventsLog reads and appends events.jsonl for one session. Sequence
// numbers are dense starting at 1; a parse failure on any non-blank line
// aborts the read with the offending line number.
type eventsLog struct {
	backend storage.Backend
	key     string
}

func (l *eventsLog) append(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return l.backend.AppendLine(l.key, data)
}

// readAll returns every event in the log, in file order, skipping blank
// lines and discarding a truncated trailing partial line.
func (l *eventsLog) readAll() ([]Event, error) {
	data, err := l.backend.Read(l.key)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var events []Event
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	type numberedLine struct {
		lineNo int
		data   []byte
	}
	var lines []numberedLine
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		lines = append(lines, numberedLine{lineNo: lineNo, data: append([]byte{}, line...)})
	}

	// A file not ending in '\n' means the final scanned line may be a
	// truncated partial write; discard it rather than fail the read.
	if len(lines) > 0 && len(data) > 0 && data[len(data)-1] != '\n' {
		lines = lines[:len(lines)-1]
	}

	for _, nl := range lines {
		var ev Event
		if err := json.Unmarshal(nl.data, &ev); err != nil {
			return nil, fmt.Errorf("parse events.jsonl line %d: %w", nl.lineNo, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// readFiltered returns up to limit events starting at offset (0-based,
// counted over non-blank lines in file order).
func (l *eventsLog) readFiltered(limit, offset int) ([]Event, error) {
	all, err := l.readAll()
	if err != nil {
		return nil, err
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

// lastSequence returns the sequence of the final event, or zero if the
// log is empty.
func (l *eventsLog) lastSequence() (int, error) {
	all, err := l.readAll()
	if err != nil {
		return 0, err
	}
	if len(all) == 0 {
		return 0, nil
	}
	return all[len(all)-1].Sequence, nil
}
