package model

import "encoding/json"

// Misc is the per-entity bag of server-provided fields a typed struct
// does not recognize. FromServer populates it from whatever is left
// over after typed fields are consumed; ToArchive re-merges it with the
// typed fields winning on key conflict. This is what lets an archive
// round-trip through a future server version without losing data.
type Misc map[string]json.RawMessage

// Clone returns a shallow copy, safe to mutate independently of the
// original (the archiver never mutates a post after it reaches the
// fetcher callback, but cloning keeps that invariant cheap to hold).
func (m Misc) Clone() Misc {
	if m == nil {
		return nil
	}

	out := make(Misc, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}

// consumeFields decodes raw into a map, deletes every key in known, and
// returns what remains as a Misc bag (nil if nothing remains).
func consumeFields(raw json.RawMessage, known ...string) (Misc, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, err
	}

	for _, k := range known {
		delete(all, k)
	}

	if len(all) == 0 {
		return nil, nil
	}

	return Misc(all), nil
}

// mergeMisc flattens typed into a generic map, then applies misc on top
// without overwriting any key typed already set.
func mergeMisc(typed map[string]json.RawMessage, misc Misc) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(typed)+len(misc))
	for k, v := range misc {
		out[k] = v
	}

	for k, v := range typed {
		out[k] = v
	}

	return out
}
