package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Session is the persisted auth state. The client authenticates with the
// server's session cookie; authenticating (logging in) happens outside this
// tool, the cookies are just carried along on every request.
type Session struct {
	Cookies map[string]string `json:"cookies"`
}

// LoadSession reads the stored session. A missing file yields an empty
// session rather than an error.
func LoadSession() (*Session, error) {
	data, err := os.ReadFile(SessionFile)
	if os.IsNotExist(err) {
		return &Session{Cookies: map[string]string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	s := &Session{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	if s.Cookies == nil {
		s.Cookies = map[string]string{}
	}
	return s, nil
}

// SaveSession writes the session back to disk.
func SaveSession(s *Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}
	if err := os.WriteFile(SessionFile, data, FilePermissions); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}
