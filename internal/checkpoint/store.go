package checkpoint

import (
	"fmt"
	"sort"
	"time"

	"agentcore/internal/storage"
)

// Store is the checkpoint store contract of SPEC_FULL §4.2.
type Store interface {
	CreateSession(projectHash, sessionID, taskDescription string) (*SessionMetadata, error)
	LoadSession(projectHash, sessionID string) (*SessionMetadata, error)
	ListSessions(projectHash string) ([]SessionMetadata, error)
	DeleteSession(projectHash, sessionID string) error

	SaveCheckpoint(projectHash, sessionID, id string, meta CheckpointMetadata, agent AgentState, conv Conversation) error
	LoadCheckpoint(projectHash, sessionID, id string) (*CheckpointMetadata, *AgentState, *Conversation, error)
	LoadCheckpointMetadata(projectHash, sessionID, id string) (*CheckpointMetadata, error)
	LoadCheckpointAgent(projectHash, sessionID, id string) (*AgentState, error)
	LoadCheckpointConversation(projectHash, sessionID, id string) (*Conversation, error)
	DeleteCheckpoint(projectHash, sessionID, id string) error
	ListCheckpoints(projectHash, sessionID string) ([]IndexEntry, error)
	LatestCheckpoint(projectHash, sessionID string) (*IndexEntry, error)
	NextCheckpointID(projectHash, sessionID string) (string, error)

	AppendEvent(projectHash, sessionID string, kind EventKind, payload any) (*Event, error)
	ReadEvents(projectHash, sessionID string) ([]Event, error)
	ReadEventsFiltered(projectHash, sessionID string, limit, offset int) ([]Event, error)
	LastSequence(projectHash, sessionID string) (int, error)
}

// FileStore is the reference Store implementation, built over an
// internal/storage.Backend rather than direct filesystem calls so a
// document-store backend can be substituted per SPEC_FULL §4.1.
type FileStore struct {
	backend storage.Backend
}

// NewFileStore builds a FileStore rooted at backend's key space.
func NewFileStore(backend storage.Backend) *FileStore {
	return &FileStore{backend: backend}
}

func sessionDir(projectHash, sessionID string) string {
	return fmt.Sprintf("projects/%s/sessions/%s", projectHash, sessionID)
}

func (s *FileStore) sessionMetaKey(projectHash, sessionID string) string {
	return sessionDir(projectHash, sessionID) + "/session_metadata.json"
}

func (s *FileStore) indexKey(projectHash, sessionID string) string {
	return sessionDir(projectHash, sessionID) + "/checkpoints.json"
}

func (s *FileStore) eventsKey(projectHash, sessionID string) string {
	return sessionDir(projectHash, sessionID) + "/events.jsonl"
}

func (s *FileStore) checkpointKey(projectHash, sessionID, id, part string) string {
	return fmt.Sprintf("%s/%s_%s.json", sessionDir(projectHash, sessionID), id, part)
}

func (s *FileStore) CreateSession(projectHash, sessionID, taskDescription string) (*SessionMetadata, error) {
	now := time.Now().UTC()
	meta := SessionMetadata{
		SessionID:       sessionID,
		ProjectHash:     projectHash,
		TaskDescription: taskDescription,
		CreatedAt:       now,
		UpdatedAt:       now,
		WorkflowStep:    StepAnalyze,
		Mode:            "confirm",
		Status:          "active",
	}
	if err := storage.WriteJSON(s.backend, s.sessionMetaKey(projectHash, sessionID), meta); err != nil {
		return nil, err
	}
	if err := storage.WriteJSON(s.backend, s.indexKey(projectHash, sessionID), Index{}); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *FileStore) LoadSession(projectHash, sessionID string) (*SessionMetadata, error) {
	var meta SessionMetadata
	if err := storage.ReadJSON(s.backend, s.sessionMetaKey(projectHash, sessionID), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *FileStore) ListSessions(projectHash string) ([]SessionMetadata, error) {
	listing, err := s.backend.List(fmt.Sprintf("projects/%s/sessions", projectHash), 0, "")
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var sessions []SessionMetadata
	for _, item := range listing.Items {
		if !hasSuffixPath(item, "/session_metadata.json") {
			continue
		}
		if seen[item] {
			continue
		}
		seen[item] = true
		var meta SessionMetadata
		if err := storage.ReadJSON(s.backend, item, &meta); err != nil {
			continue
		}
		sessions = append(sessions, meta)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func hasSuffixPath(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

func (s *FileStore) DeleteSession(projectHash, sessionID string) error {
	listing, err := s.backend.List(sessionDir(projectHash, sessionID), 0, "")
	if err != nil {
		return err
	}
	return s.backend.DeleteMany(listing.Items)
}

// SaveCheckpoint writes the checkpoint in the crash-safe order SPEC_FULL
// §4.2 requires: metadata, agent, conversation, index, session metadata.
// If any step after the first fails, the index remains the last
// successfully-committed authority and any further-along orphan files are
// ignored by readers.
func (s *FileStore) SaveCheckpoint(projectHash, sessionID, id string, meta CheckpointMetadata, agent AgentState, conv Conversation) error {
	meta.ID = id
	meta.AgentFile = fmt.Sprintf("%s_agent.json", id)
	meta.ConversationFile = fmt.Sprintf("%s_conversation.json", id)
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	meta.MessageCount = len(conv.Messages)

	if err := storage.WriteJSON(s.backend, s.checkpointKey(projectHash, sessionID, id, "metadata"), meta); err != nil {
		return err
	}
	if err := storage.WriteJSON(s.backend, s.checkpointKey(projectHash, sessionID, id, "agent"), agent); err != nil {
		return err
	}
	if err := storage.WriteJSON(s.backend, s.checkpointKey(projectHash, sessionID, id, "conversation"), conv); err != nil {
		return err
	}

	idx, err := s.loadIndex(projectHash, sessionID)
	if err != nil {
		return err
	}
	idx.Entries = appendOrReplaceIndexEntry(idx.Entries, IndexEntry{
		ID: id, WorkflowStep: meta.WorkflowStep, Iteration: meta.Iteration, CreatedAt: meta.CreatedAt,
	})
	if err := storage.WriteJSON(s.backend, s.indexKey(projectHash, sessionID), idx); err != nil {
		return err
	}

	session, err := s.LoadSession(projectHash, sessionID)
	if err != nil {
		return err
	}
	session.UpdatedAt = time.Now().UTC()
	session.WorkflowStep = meta.WorkflowStep
	session.Iteration = meta.Iteration
	session.CheckpointCount = len(idx.Entries)
	return storage.WriteJSON(s.backend, s.sessionMetaKey(projectHash, sessionID), session)
}

func appendOrReplaceIndexEntry(entries []IndexEntry, entry IndexEntry) []IndexEntry {
	for i, e := range entries {
		if e.ID == entry.ID {
			entries[i] = entry
			return entries
		}
	}
	return append(entries, entry)
}

func (s *FileStore) loadIndex(projectHash, sessionID string) (Index, error) {
	var idx Index
	if err := storage.ReadJSON(s.backend, s.indexKey(projectHash, sessionID), &idx); err != nil {
		if storage.IsNotFound(err) {
			return Index{}, nil
		}
		return Index{}, err
	}
	return idx, nil
}

func (s *FileStore) LoadCheckpointMetadata(projectHash, sessionID, id string) (*CheckpointMetadata, error) {
	// Consult the index first per SPEC_FULL §4.2; fall back to the
	// on-disk metadata file if the index lacks the entry (e.g. recovery
	// after a partial write that never reached the index update step).
	idx, err := s.loadIndex(projectHash, sessionID)
	if err == nil {
		for _, e := range idx.Entries {
			if e.ID == id {
				var meta CheckpointMetadata
				if readErr := storage.ReadJSON(s.backend, s.checkpointKey(projectHash, sessionID, id, "metadata"), &meta); readErr == nil {
					return &meta, nil
				}
				break
			}
		}
	}
	var meta CheckpointMetadata
	if err := storage.ReadJSON(s.backend, s.checkpointKey(projectHash, sessionID, id, "metadata"), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *FileStore) LoadCheckpointAgent(projectHash, sessionID, id string) (*AgentState, error) {
	var agent AgentState
	if err := storage.ReadJSON(s.backend, s.checkpointKey(projectHash, sessionID, id, "agent"), &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

func (s *FileStore) LoadCheckpointConversation(projectHash, sessionID, id string) (*Conversation, error) {
	var conv Conversation
	if err := storage.ReadJSON(s.backend, s.checkpointKey(projectHash, sessionID, id, "conversation"), &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *FileStore) LoadCheckpoint(projectHash, sessionID, id string) (*CheckpointMetadata, *AgentState, *Conversation, error) {
	meta, err := s.LoadCheckpointMetadata(projectHash, sessionID, id)
	if err != nil {
		return nil, nil, nil, err
	}
	agent, err := s.LoadCheckpointAgent(projectHash, sessionID, id)
	if err != nil {
		return nil, nil, nil, err
	}
	conv, err := s.LoadCheckpointConversation(projectHash, sessionID, id)
	if err != nil {
		return nil, nil, nil, err
	}
	return meta, agent, conv, nil
}

// DeleteCheckpoint removes all three companion files and the index entry.
// Per SPEC_FULL §4.2 this must appear atomic with respect to readers: the
// index entry is removed first, so a concurrent reader that consults the
// index will never observe a partially-deleted checkpoint as present.
func (s *FileStore) DeleteCheckpoint(projectHash, sessionID, id string) error {
	idx, err := s.loadIndex(projectHash, sessionID)
	if err != nil {
		return err
	}
	filtered := idx.Entries[:0:0]
	for _, e := range idx.Entries {
		if e.ID != id {
			filtered = append(filtered, e)
		}
	}
	idx.Entries = filtered
	if err := storage.WriteJSON(s.backend, s.indexKey(projectHash, sessionID), idx); err != nil {
		return err
	}
	return s.backend.DeleteMany([]string{
		s.checkpointKey(projectHash, sessionID, id, "metadata"),
		s.checkpointKey(projectHash, sessionID, id, "agent"),
		s.checkpointKey(projectHash, sessionID, id, "conversation"),
	})
}

func (s *FileStore) ListCheckpoints(projectHash, sessionID string) ([]IndexEntry, error) {
	idx, err := s.loadIndex(projectHash, sessionID)
	if err != nil {
		return nil, err
	}
	return idx.Entries, nil
}

func (s *FileStore) LatestCheckpoint(projectHash, sessionID string) (*IndexEntry, error) {
	entries, err := s.ListCheckpoints(projectHash, sessionID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	last := entries[len(entries)-1]
	return &last, nil
}

// NextCheckpointID mirrors the original's `format!("{:03}", len+1)`.
func (s *FileStore) NextCheckpointID(projectHash, sessionID string) (string, error) {
	entries, err := s.ListCheckpoints(projectHash, sessionID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%03d", len(entries)+1), nil
}

func (s *FileStore) log(projectHash, sessionID string) *eventsLog {
	return &eventsLog{backend: s.backend, key: s.eventsKey(projectHash, sessionID)}
}

func (s *FileStore) AppendEvent(projectHash, sessionID string, kind EventKind, payload any) (*Event, error) {
	log := s.log(projectHash, sessionID)
	seq, err := log.lastSequence()
	if err != nil {
		return nil, err
	}
	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}
	ev := Event{
		ID:          fmt.Sprintf("%s-%d", sessionID, seq+1),
		Kind:        kind,
		SessionID:   sessionID,
		ProjectHash: projectHash,
		Timestamp:   time.Now().UTC(),
		Sequence:    seq + 1,
		Payload:     raw,
	}
	if err := log.append(ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *FileStore) ReadEvents(projectHash, sessionID string) ([]Event, error) {
	return s.log(projectHash, sessionID).readAll()
}

func (s *FileStore) ReadEventsFiltered(projectHash, sessionID string, limit, offset int) ([]Event, error) {
	return s.log(projectHash, sessionID).readFiltered(limit, offset)
}

func (s *FileStore) LastSequence(projectHash, sessionID string) (int, error) {
	return s.log(projectHash, sessionID).lastSequence()
}
