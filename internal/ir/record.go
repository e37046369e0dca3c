package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Question is an opaque question payload (text, passage, options).
// The core never interprets it beyond counting.
type Question = json.RawMessage

// Section is one numbered group of questions ("mondai") sharing a category.
type Section struct {
	Mondai    int
	Part      Category
	Questions []Question

	// NumberKey is the key the number was read from when it was not
	// "mondai" ("mondaiNumber"). It is written back under the same key.
	NumberKey string

	// Extra holds fields this package does not model (instructions, audio, ...).
	// They are written back verbatim.
	Extra map[string]json.RawMessage
}

// Record is one exam: identity, level, ordered sections and cached statistics.
//
// Absent fields decode to their zero value; Sections is nil only when the
// "sections" key itself is missing, so "absent" and "empty" stay distinguishable.
type Record struct {
	ID         string
	Title      string
	Level      Level
	Type       string
	Sections   []Section
	Statistics *Statistics

	Extra map[string]json.RawMessage
}

// QuestionCount returns the number of questions in the section.
func (s Section) QuestionCount() int {
	return len(s.Questions)
}

// QuestionCount returns the number of questions across all sections.
func (r *Record) QuestionCount() int {
	total := 0
	for _, s := range r.Sections {
		total += s.QuestionCount()
	}
	return total
}

// Clone returns a deep copy of the record. Question payload bytes are shared;
// nothing in this module mutates them.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Extra = cloneRaw(r.Extra)
	if r.Sections != nil {
		out.Sections = make([]Section, len(r.Sections))
		for i, s := range r.Sections {
			out.Sections[i] = s.Clone()
		}
	}
	out.Statistics = r.Statistics.Clone()
	return &out
}

// Clone returns a copy of the section with its own slices and maps.
func (s Section) Clone() Section {
	out := s
	if s.Questions != nil {
		out.Questions = append([]Question(nil), s.Questions...)
	}
	out.Extra = cloneRaw(s.Extra)
	return out
}

func cloneRaw(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// UnmarshalJSON decodes a record, keeping unknown keys in Extra.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*r = Record{}
	for key, raw := range fields {
		var err error
		switch key {
		case "id":
			err = json.Unmarshal(raw, &r.ID)
		case "title":
			err = json.Unmarshal(raw, &r.Title)
		case "level":
			err = json.Unmarshal(raw, &r.Level)
		case "type":
			err = json.Unmarshal(raw, &r.Type)
		case "sections":
			err = json.Unmarshal(raw, &r.Sections)
		case "statistics":
			if !isNull(raw) {
				r.Statistics = &Statistics{}
				err = json.Unmarshal(raw, r.Statistics)
			}
		default:
			if r.Extra == nil {
				r.Extra = make(map[string]json.RawMessage)
			}
			r.Extra[key] = raw
		}
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

// MarshalJSON writes the record with a stable key order: modelled fields
// first, then unknown keys sorted, then sections and statistics.
func (r Record) MarshalJSON() ([]byte, error) {
	w := &objectWriter{}
	if r.ID != "" {
		w.field("id", r.ID)
	}
	if r.Title != "" {
		w.field("title", r.Title)
	}
	if r.Level != 0 {
		w.field("level", r.Level)
	}
	if r.Type != "" {
		w.field("type", r.Type)
	}
	w.extras(r.Extra)
	if r.Sections != nil {
		w.field("sections", r.Sections)
	}
	if r.Statistics != nil {
		w.field("statistics", r.Statistics)
	}
	return w.bytes()
}

const (
	keyMondai       = "mondai"
	keyMondaiNumber = "mondaiNumber"
)

// UnmarshalJSON decodes a section. "mondaiNumber" is accepted as an alias of "mondai".
func (s *Section) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*s = Section{}
	for key, raw := range fields {
		var err error
		switch key {
		case keyMondai:
			err = json.Unmarshal(raw, &s.Mondai)
		case keyMondaiNumber:
			err = json.Unmarshal(raw, &s.Mondai)
			s.NumberKey = keyMondaiNumber
		case "part":
			var part string
			err = json.Unmarshal(raw, &part)
			s.Part = Category(part)
		case "questions":
			err = json.Unmarshal(raw, &s.Questions)
		default:
			if s.Extra == nil {
				s.Extra = make(map[string]json.RawMessage)
			}
			s.Extra[key] = raw
		}
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

// MarshalJSON writes the number and part first, then unknown keys, then
// questions. The number goes under NumberKey, "mondai" when unset.
func (s Section) MarshalJSON() ([]byte, error) {
	w := &objectWriter{}
	if s.Mondai != 0 {
		key := s.NumberKey
		if key == "" {
			key = keyMondai
		}
		w.field(key, s.Mondai)
	}
	if s.Part != "" {
		w.field("part", s.Part)
	}
	w.extras(s.Extra)
	if s.Questions != nil {
		w.field("questions", s.Questions)
	}
	return w.bytes()
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// objectWriter builds a JSON object with caller-controlled key order and
// without HTML escaping (question text routinely contains markup).
type objectWriter struct {
	buf bytes.Buffer
	n   int
	err error
}

func (w *objectWriter) field(key string, v any) {
	if w.err != nil {
		return
	}
	val, err := encodeNoEscape(v)
	if err != nil {
		w.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	keyBytes, _ := encodeNoEscape(key)
	if w.n == 0 {
		w.buf.WriteByte('{')
	} else {
		w.buf.WriteByte(',')
	}
	w.buf.Write(keyBytes)
	w.buf.WriteByte(':')
	w.buf.Write(val)
	w.n++
}

func (w *objectWriter) extras(m map[string]json.RawMessage) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		w.field(k, m[k])
	}
}

func (w *objectWriter) bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	if w.n == 0 {
		return []byte("{}"), nil
	}
	w.buf.WriteByte('}')
	return w.buf.Bytes(), nil
}

func encodeNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
