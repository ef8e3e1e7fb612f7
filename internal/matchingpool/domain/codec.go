package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type document struct {
	SchemaVersion int     `json:"schema_version"`
	Entries       []Entry `json:"entries"`
}

// EncodeLedger renders entries as a versioned ledger document.
func EncodeLedger(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	return json.Marshal(document{SchemaVersion: SchemaVersion, Entries: entries})
}

// DecodeLedger parses a persisted ledger. Empty input is an empty ledger. A
// bare JSON array is read as the unversioned legacy layout.
func DecodeLedger(data []byte) ([]Entry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []Entry{}, nil
	}

	var entries []Entry
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, &DecodeError{Reason: "malformed legacy array", Err: err}
		}
	case '{':
		var doc document
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, &DecodeError{Reason: "malformed document", Err: err}
		}
		if doc.SchemaVersion < 1 || doc.SchemaVersion > SchemaVersion {
			return nil, &DecodeError{Reason: fmt.Sprintf("unsupported schema_version %d", doc.SchemaVersion)}
		}
		entries = doc.Entries
	default:
		return nil, &DecodeError{Reason: "unexpected leading byte"}
	}

	if entries == nil {
		entries = []Entry{}
	}
	if err := validateEntries(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func validateEntries(entries []Entry) error {
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			return &DecodeError{Reason: fmt.Sprintf("entry %d has no id", i)}
		}
		if _, dup := seen[e.ID]; dup {
			return &DecodeError{Reason: fmt.Sprintf("duplicate entry id %s", e.ID)}
		}
		seen[e.ID] = struct{}{}
		if e.SadaqahCoinsAmount < 0 {
			return &DecodeError{Reason: fmt.Sprintf("entry %s has negative amount", e.ID)}
		}
		if e.Matched && (e.MatchedAt == nil || e.MatchedByBusinessID == "") {
			return &DecodeError{Reason: fmt.Sprintf("entry %s is matched without match details", e.ID)}
		}
		if !e.Matched && e.MatchedAt != nil {
			return &DecodeError{Reason: fmt.Sprintf("entry %s has matchedAt but is unmatched", e.ID)}
		}
	}
	return nil
}
