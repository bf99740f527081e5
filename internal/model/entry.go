// Package model defines the core lorebook data types.
package model

import (
	"encoding/json"
	"fmt"
)

// Position is an entry's placement slot. The numeric values are part of the
// persisted wire format and must not be renumbered.
type Position int

const (
	PosBeforeChar       Position = 0
	PosAfterChar        Position = 1
	PosBeforeAuthorNote Position = 2
	PosAfterAuthorNote  Position = 3
	PosAtDepth          Position = 4
	PosBeforeExamples   Position = 5
	PosAfterExamples    Position = 6
)

var positionNames = map[Position]string{
	PosBeforeChar:       "before_char",
	PosAfterChar:        "after_char",
	PosBeforeAuthorNote: "before_author_note",
	PosAfterAuthorNote:  "after_author_note",
	PosAtDepth:          "at_depth",
	PosBeforeExamples:   "before_examples",
	PosAfterExamples:    "after_examples",
}

// Valid reports whether p is one of the seven known placement slots.
func (p Position) Valid() bool {
	_, ok := positionNames[p]
	return ok
}

func (p Position) String() string {
	if name, ok := positionNames[p]; ok {
		return name
	}
	return fmt.Sprintf("position(%d)", int(p))
}

// ParsePosition parses a position name or numeric value.
func ParsePosition(s string) (Position, error) {
	for p, name := range positionNames {
		if name == s {
			return p, nil
		}
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err == nil && Position(n).Valid() {
		return Position(n), nil
	}
	return 0, fmt.Errorf("unknown position %q", s)
}

// Entry is one addressable unit of injectable content within a book.
//
// Fields not in this shape but present on a persisted entry are captured in
// Extra so they survive edit/save round-trips (field-level last-writer-wins:
// local known fields always win, remote-only fields are preserved).
type Entry struct {
	UID         int
	Comment     string
	Content     string
	Disable     bool
	Constant    bool
	Key         []string
	Position    Position
	Depth       int
	Order       int
	Probability float64
	Selective   bool

	Extra map[string]json.RawMessage
}

// Defaults used when a field is absent from the persisted form. They match
// the defaults a freshly created entry gets.
const (
	DefaultDepth       = 4
	DefaultProbability = 100
)

// NewEntry returns a fresh entry with creation defaults and the given uid.
func NewEntry(uid int) Entry {
	return Entry{
		UID:         uid,
		Comment:     "New Entry",
		Content:     "",
		Disable:     false,
		Constant:    false,
		Key:         []string{},
		Order:       0,
		Position:    PosBeforeChar,
		Depth:       DefaultDepth,
		Probability: DefaultProbability,
		Selective:   true,
	}
}

// NextUID returns the uid to assign to a new entry: max(existing)+1, or 0
// for an empty book. UIDs are never reused within a session.
func NextUID(entries []Entry) int {
	max := -1
	for _, e := range entries {
		if e.UID > max {
			max = e.UID
		}
	}
	return max + 1
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	c := e
	if e.Key != nil {
		c.Key = append([]string(nil), e.Key...)
	}
	if e.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(e.Extra))
		for k, v := range e.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

// CloneEntries deep-copies a slice of entries.
func CloneEntries(entries []Entry) []Entry {
	if entries == nil {
		return nil
	}
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}

// MergeEntry merges a local entry over its remote counterpart. Known local
// fields always win; fields only the remote side carries are preserved.
func MergeEntry(remote, local Entry) Entry {
	merged := local.Clone()
	if len(remote.Extra) > 0 {
		if merged.Extra == nil {
			merged.Extra = make(map[string]json.RawMessage, len(remote.Extra))
		}
		for k, v := range remote.Extra {
			if _, ok := merged.Extra[k]; !ok {
				merged.Extra[k] = v
			}
		}
	}
	return merged
}

var knownEntryKeys = map[string]bool{
	"uid": true, "comment": true, "content": true, "disable": true,
	"constant": true, "key": true, "position": true, "depth": true,
	"order": true, "probability": true, "selective": true,
}

// UnmarshalJSON decodes an entry, applying defaults for absent fields
// (position → after_char, depth → 4, probability → 100, selective → true)
// and capturing unknown fields in Extra.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*e = Entry{
		Position:    PosAfterChar,
		Depth:       DefaultDepth,
		Probability: DefaultProbability,
		Selective:   true,
	}

	pick := func(key string, dst any) error {
		v, ok := raw[key]
		if !ok {
			return nil
		}
		return json.Unmarshal(v, dst)
	}

	var pos int = int(PosAfterChar)
	for key, dst := range map[string]any{
		"uid": &e.UID, "comment": &e.Comment, "content": &e.Content,
		"disable": &e.Disable, "constant": &e.Constant, "key": &e.Key,
		"position": &pos, "depth": &e.Depth, "order": &e.Order,
		"probability": &e.Probability, "selective": &e.Selective,
	} {
		if err := pick(key, dst); err != nil {
			return fmt.Errorf("entry field %s: %w", key, err)
		}
	}
	e.Position = Position(pos)

	for k, v := range raw {
		if knownEntryKeys[k] {
			continue
		}
		if e.Extra == nil {
			e.Extra = make(map[string]json.RawMessage)
		}
		e.Extra[k] = v
	}
	return nil
}

// MarshalJSON encodes the entry with its Extra fields inlined. Known fields
// override Extra on key collision.
func (e Entry) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(knownEntryKeys)+len(e.Extra))
	for k, v := range e.Extra {
		out[k] = v
	}
	key := e.Key
	if key == nil {
		key = []string{}
	}
	out["uid"] = e.UID
	out["comment"] = e.Comment
	out["content"] = e.Content
	out["disable"] = e.Disable
	out["constant"] = e.Constant
	out["key"] = key
	out["position"] = int(e.Position)
	out["depth"] = e.Depth
	out["order"] = e.Order
	out["probability"] = e.Probability
	out["selective"] = e.Selective
	return json.Marshal(out)
}
