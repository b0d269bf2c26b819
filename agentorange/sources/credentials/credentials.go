// Package credentials holds vendor API keys by backend name.
package credentials

import (
	"agentorange/agentorange/config"
	"strings"
	"sync"
)

const (
	KeyOpenAI = "openai"
	KeyClaude = "claude"
	KeyGemini = "gemini"
)

type Store struct {
	mu   sync.RWMutex
	keys map[string]string
}

func NewStore() *Store {
	return &Store{keys: make(map[string]string)}
}

// FromConfig seeds a store with the keys found in the environment config.
func FromConfig(cfg config.Config) *Store {
	s := NewStore()
	s.Set(KeyOpenAI, cfg.OpenAIKey)
	s.Set(KeyClaude, cfg.ClaudeKey)
	s.Set(KeyGemini, cfg.GeminiKey)
	return s
}

// Get returns the trimmed key. Blank keys count as missing.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.keys[strings.ToLower(key)]
	return v, ok && v != ""
}

// Set stores value under key; a blank value removes the key.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key = strings.ToLower(key)
	value = strings.TrimSpace(value)
	if value == "" {
		delete(s.keys, key)
		return
	}
	s.keys[key] = value
}
