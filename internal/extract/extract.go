// Package extract reads SMS records returned by the Android gateway. The
// device API has no fixed schema, so sender, body, timestamp, read state and
// direction are each found by an ordered list of rules.
package extract

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrNotExtractable is returned when a record has no sender or no body.
var ErrNotExtractable = errors.New("record has no sender or body")

// Record is one decoded JSON object from the gateway.
type Record map[string]any

// Message is the normalized view of a gateway record.
type Message struct {
	Sender     string
	Body       string
	Timestamp  time.Time // zero when the record carries none
	IsRead     bool
	SenderRule string
	BodyRule   string
}

// ReceivedAt returns the record timestamp, or now when it had none.
func (m Message) ReceivedAt(now time.Time) time.Time {
	if m.Timestamp.IsZero() {
		return now
	}
	return m.Timestamp
}

// Extractor applies the prioritized rules built from a Fields set.
type Extractor struct {
	fields Fields
	sender []Rule[string]
	body   []Rule[string]
}

// New builds an extractor. Empty entries in f fall back to DefaultFields.
func New(f Fields) *Extractor {
	f = f.withDefaults()
	return &Extractor{
		fields: f,
		sender: senderRules(f),
		body:   bodyRules(f),
	}
}

// Default returns an extractor over DefaultFields.
func Default() *Extractor {
	return New(DefaultFields())
}

// Fields returns the effective key names.
func (e *Extractor) Fields() Fields {
	return e.fields
}

// Sender returns the sender number and the rule that found it.
func (e *Extractor) Sender(rec Record) (string, string, bool) {
	return firstMatch(e.sender, rec)
}

// Body returns the message text and the rule that found it.
func (e *Extractor) Body(rec Record) (string, string, bool) {
	return firstMatch(e.body, rec)
}

// Timestamp returns the first parseable timestamp field.
func (e *Extractor) Timestamp(rec Record) (time.Time, bool) {
	for _, key := range e.fields.Timestamp {
		if t, ok := parseTime(rec[key]); ok {
			return t, true
		}
	}
	if states, ok := asRecord(rec["states"]); ok {
		if t, ok := parseTime(states["Delivered"]); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsRead is true when any read flag is truthy or the status says "read".
func (e *Extractor) IsRead(rec Record) bool {
	for _, key := range e.fields.Read {
		if truthy(rec[key]) {
			return true
		}
	}
	s, _ := rec[e.fields.Status].(string)
	return strings.EqualFold(s, "read")
}

// IsInbound reports an explicit inbound marker: type 1, direction "in",
// inbound true, or a folder containing "inbox".
func (e *Extractor) IsInbound(rec Record) bool {
	if n, ok := number(rec[e.fields.Type]); ok && n == 1 {
		return true
	}
	if s, ok := rec[e.fields.Direction].(string); ok && strings.EqualFold(s, "in") {
		return true
	}
	switch v := rec[e.fields.Inbound].(type) {
	case bool:
		if v {
			return true
		}
	case string:
		if strings.EqualFold(v, "true") {
			return true
		}
	}
	if folder, ok := rec.scalar(e.fields.Folder); ok && strings.Contains(strings.ToLower(folder), "inbox") {
		return true
	}
	return false
}

// HasBodyField reports whether any body-like key is present, whatever its value.
func (e *Extractor) HasBodyField(rec Record) bool {
	for _, key := range e.fields.Body {
		if _, ok := rec[key]; ok {
			return true
		}
	}
	_, ok := rec[e.fields.Parts]
	return ok
}

// HasRecipients reports whether the record exposes a recipients list key.
func (e *Extractor) HasRecipients(rec Record) bool {
	_, ok := rec[e.fields.Recipients]
	return ok
}

// LooksLikeSentLog is the signature of a sent or delivery-status record:
// recipients present and no body-like field.
func (e *Extractor) LooksLikeSentLog(rec Record) bool {
	return e.HasRecipients(rec) && !e.HasBodyField(rec)
}

// IsReceived classifies a record as an inbound SMS.
func (e *Extractor) IsReceived(rec Record) bool {
	if e.IsInbound(rec) {
		return true
	}
	return e.HasBodyField(rec) && !e.HasRecipients(rec)
}

// Extract produces the normalized message or ErrNotExtractable.
func (e *Extractor) Extract(rec Record) (Message, error) {
	if rec == nil {
		return Message{}, ErrNotExtractable
	}
	sender, senderRule, ok := e.Sender(rec)
	if !ok {
		return Message{}, ErrNotExtractable
	}
	body, bodyRule, ok := e.Body(rec)
	if !ok {
		return Message{}, ErrNotExtractable
	}
	ts, _ := e.Timestamp(rec)
	return Message{
		Sender:     sender,
		Body:       body,
		Timestamp:  ts,
		IsRead:     e.IsRead(rec),
		SenderRule: senderRule,
		BodyRule:   bodyRule,
	}, nil
}

// Unwrap returns the nested payload object some devices wrap webhook
// deliveries in, or rec itself.
func (e *Extractor) Unwrap(rec Record) Record {
	if inner, ok := asRecord(rec[e.fields.Payload]); ok {
		return inner
	}
	return rec
}

// MessageID returns the device message id of a webhook delivery, looking at
// the unwrapped data first and the outer envelope second.
func (e *Extractor) MessageID(data, outer Record) string {
	if id, ok := data.scalar(e.fields.MessageID); ok {
		return id
	}
	if id, ok := outer.scalar(e.fields.OuterID); ok {
		return id
	}
	return ""
}

// Items unwraps a decoded response body into records. Arrays are used as is;
// objects are searched for a wrapper array. Anything else yields no records.
func (e *Extractor) Items(decoded any) []Record {
	switch v := decoded.(type) {
	case []any:
		return toRecords(v)
	case map[string]any:
		for _, key := range e.fields.Wrappers {
			if list, ok := v[key].([]any); ok {
				return toRecords(list)
			}
		}
	}
	return nil
}

func toRecords(list []any) []Record {
	out := make([]Record, 0, len(list))
	for _, item := range list {
		if rec, ok := asRecord(item); ok {
			out = append(out, rec)
		}
	}
	return out
}

func asRecord(v any) (Record, bool) {
	switch m := v.(type) {
	case map[string]any:
		return Record(m), true
	case Record:
		return m, true
	}
	return nil, false
}

// scalar returns a non-empty string or number value as a string.
func (r Record) scalar(key string) (string, bool) {
	switch v := r[key].(type) {
	case string:
		s := strings.TrimSpace(v)
		return s, s != ""
	case float64:
		if v == 0 {
			return "", false
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case json.Number:
		return v.String(), v.String() != "" && v.String() != "0"
	case int:
		return strconv.Itoa(v), v != 0
	case int64:
		return strconv.FormatInt(v, 10), v != 0
	}
	return "", false
}

func (r Record) firstScalar(keys []string) (string, bool) {
	for _, key := range keys {
		if s, ok := r.scalar(key); ok {
			return s, true
		}
	}
	return "", false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "0" && !strings.EqualFold(t, "false")
	case float64:
		return t != 0 && !math.IsNaN(t)
	case int:
		return t != 0
	case int64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	}
	return true
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), true
			}
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return fromEpoch(n)
		}
	case float64, int, int64, json.Number:
		if n, ok := number(t); ok {
			return fromEpoch(n)
		}
	}
	return time.Time{}, false
}

// fromEpoch accepts seconds or milliseconds since the epoch.
func fromEpoch(n float64) (time.Time, bool) {
	if n <= 0 {
		return time.Time{}, false
	}
	if n > 1e12 {
		return time.UnixMilli(int64(n)).UTC(), true
	}
	return time.Unix(int64(n), 0).UTC(), true
}
