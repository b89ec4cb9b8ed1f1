package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SessionCompleted is the only status written to session artifacts
const SessionCompleted = "completed"

// Session is the debug artifact recorded per session and agent
type Session struct {
	SessionID string `json:"session_id"`
	AgentType string `json:"agent_type"`
	Result    string `json:"result"`
	Status    string `json:"status"`
}

// SessionStore writes session artifacts as JSON files in one directory
type SessionStore struct {
	dir string
}

// NewSessionStore creates a store rooted at dir
func NewSessionStore(dir string) *SessionStore {
	return &SessionStore{dir: dir}
}

// Dir returns the artifact directory
func (s *SessionStore) Dir() string {
	return s.dir
}

// Path returns the file used for a session/agent pair
func (s *SessionStore) Path(sessionID, agentType string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.json", sessionID, agentType))
}

// Save writes the artifact and returns its path
func (s *SessionStore) Save(sessionID, agentType, result string) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("creating session dir: %w", err)
	}

	path := s.Path(sessionID, agentType)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating session file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Session{
		SessionID: sessionID,
		AgentType: agentType,
		Result:    result,
		Status:    SessionCompleted,
	}); err != nil {
		return "", fmt.Errorf("writing session: %w", err)
	}
	return path, nil
}

// Load reads a saved artifact. A missing file yields an error wrapping os.ErrNotExist.
func (s *SessionStore) Load(sessionID, agentType string) (*Session, error) {
	data, err := os.ReadFile(s.Path(sessionID, agentType))
	if err != nil {
		return nil, fmt.Errorf("reading session %s/%s: %w", sessionID, agentType, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parsing session %s/%s: %w", sessionID, agentType, err)
	}
	return &sess, nil
}
