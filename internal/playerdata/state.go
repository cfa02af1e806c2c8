package playerdata

import "sync"

// AppState is the in-memory mirror of the settings and the analytics summary.
// It is owned by the composition root and written only by a Manager.
type AppState struct {
	mu       sync.RWMutex
	settings Settings
	summary  Summary
}

// NewAppState returns a state holding the defaults.
func NewAppState() *AppState {
	return &AppState{settings: DefaultSettings()}
}

// Settings returns a copy of the mirrored settings.
func (s *AppState) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Summary returns a copy of the mirrored analytics summary.
func (s *AppState) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum := s.summary
	if sum.LastPlayed != nil {
		lp := *sum.LastPlayed
		sum.LastPlayed = &lp
	}
	return sum
}

func (s *AppState) setSettings(v Settings) {
	s.mu.Lock()
	s.settings = v
	s.mu.Unlock()
}

func (s *AppState) updateSummary(fn func(*Summary)) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.summary)
	return s.summary
}

func (s *AppState) reset() {
	s.mu.Lock()
	s.settings = DefaultSettings()
	s.summary = Summary{}
	s.mu.Unlock()
}
