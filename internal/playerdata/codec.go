package playerdata

import (
	"encoding/json"
	"errors"
	"fmt"
)

// errNewerSchema is returned when a stored value was written by a newer build.
var errNewerSchema = errors.New("stored schema version is newer than supported")

// codec is the serialization contract of one persisted entity.
//
// Object entities carry their schema version in a "v" field; a missing field reads as
// version 1. Decoding starts from the entity default, so fields absent from the stored
// document keep their default values. Any decode error leaves the caller with the default.
type codec[T any] struct {
	entity    string
	version   int // 0 for payloads that cannot carry a version, such as JSON arrays
	defaults  func() T
	normalize func(*T)
}

func (c codec[T]) decode(raw string) (T, error) {
	if c.version > 0 {
		var hdr struct {
			V *int `json:"v"`
		}
		if err := json.Unmarshal([]byte(raw), &hdr); err != nil {
			return c.defaults(), fmt.Errorf("decode %s: %w", c.entity, err)
		}
		if hdr.V != nil && *hdr.V > c.version {
			return c.defaults(), fmt.Errorf("decode %s: %w (v%d > v%d)", c.entity, errNewerSchema, *hdr.V, c.version)
		}
	}

	v := c.defaults()
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return c.defaults(), fmt.Errorf("decode %s: %w", c.entity, err)
	}
	if c.normalize != nil {
		c.normalize(&v)
	}
	return v, nil
}

func (c codec[T]) encode(v T) (string, error) {
	if c.normalize != nil {
		c.normalize(&v)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", c.entity, err)
	}
	if c.version == 0 {
		return string(b), nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return "", fmt.Errorf("encode %s: %w", c.entity, err)
	}
	fields["v"] = json.RawMessage(fmt.Sprint(c.version))
	b, err = json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", c.entity, err)
	}
	return string(b), nil
}

var settingsCodec = codec[Settings]{
	entity:   "settings",
	version:  1,
	defaults: DefaultSettings,
	normalize: func(s *Settings) {
		if !s.Difficulty.Valid() {
			s.Difficulty = DifficultyNormal
		}
		if s.Theme == "" {
			s.Theme = "default"
		}
	},
}

var progressCodec = codec[Progress]{
	entity:   "progress",
	version:  1,
	defaults: DefaultProgress,
	normalize: func(p *Progress) {
		if p.Level < 1 {
			p.Level = 1
		}
		if p.Score < 0 {
			p.Score = 0
		}
		if p.HighScore < 0 {
			p.HighScore = 0
		}
	},
}

var purchasesCodec = codec[[]Purchase]{
	entity:   "purchases",
	defaults: func() []Purchase { return []Purchase{} },
	normalize: func(p *[]Purchase) {
		if *p == nil {
			*p = []Purchase{}
		}
	},
}

var eventLogCodec = codec[EventLog]{
	entity:   "analytics",
	version:  1,
	defaults: func() EventLog { return EventLog{Events: []Event{}} },
	normalize: func(l *EventLog) {
		if l.Events == nil {
			l.Events = []Event{}
		}
	},
}

var summaryCodec = codec[Summary]{
	entity:   "analytics summary",
	version:  1,
	defaults: func() Summary { return Summary{} },
	normalize: func(s *Summary) {
		if s.GamesPlayed < 0 {
			s.GamesPlayed = 0
		}
		if s.TotalPlayTime < 0 {
			s.TotalPlayTime = 0
		}
	},
}
