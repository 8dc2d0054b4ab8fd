package models

import (
	"encoding/json"
	"sort"
	"sync"
)

// BookmarkStore holds the per-stream watermarks for one run
type BookmarkStore interface {
	GetBookmark(streamID, key string) (string, bool)
	SetBookmark(streamID, key, value string)
}

// State is the Singer state document: {"bookmarks": {stream: {key: value}}}
type State struct {
	mu        sync.RWMutex
	bookmarks map[string]map[string]string
}

type stateJSON struct {
	Bookmarks map[string]map[string]string `json:"bookmarks"`
}

func NewState() *State {
	return &State{bookmarks: map[string]map[string]string{}}
}

func (s *State) GetBookmark(streamID, key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.bookmarks[streamID][key]
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func (s *State) SetBookmark(streamID, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bookmarks == nil {
		s.bookmarks = map[string]map[string]string{}
	}
	if s.bookmarks[streamID] == nil {
		s.bookmarks[streamID] = map[string]string{}
	}
	s.bookmarks[streamID][key] = value
}

// Streams lists the stream ids holding a bookmark, sorted
func (s *State) Streams() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.bookmarks))
	for id := range s.bookmarks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns a deep copy of the bookmarks
func (s *State) Snapshot() map[string]map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]map[string]string, len(s.bookmarks))
	for stream, keys := range s.bookmarks {
		inner := make(map[string]string, len(keys))
		for k, v := range keys {
			inner[k] = v
		}
		out[stream] = inner
	}
	return out
}

func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateJSON{Bookmarks: s.Snapshot()})
}

// UnmarshalJSON keeps string bookmarks as they are and numbers or booleans
// as their JSON text. Nested values, and streams whose bookmarks are not an
// object, are ignored.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw struct {
		Bookmarks map[string]json.RawMessage `json:"bookmarks"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	bookmarks := map[string]map[string]string{}
	for stream, rawKeys := range raw.Bookmarks {
		var keys map[string]interface{}
		if err := json.Unmarshal(rawKeys, &keys); err != nil || keys == nil {
			continue
		}
		inner := map[string]string{}
		for k, v := range keys {
			switch value := v.(type) {
			case string:
				inner[k] = value
			case float64, bool:
				text, _ := json.Marshal(value)
				inner[k] = string(text)
			}
		}
		bookmarks[stream] = inner
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookmarks = bookmarks
	return nil
}
