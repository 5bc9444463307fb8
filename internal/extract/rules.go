package extract

import (
	"encoding/json"
	"strings"
)

// Rule is one extraction attempt. Rules are kept in priority order and the
// first one that matches wins.
type Rule[T any] struct {
	Name  string
	Match func(Record) (T, bool)
}

// firstMatch runs rules in order and returns the first hit with its rule name.
func firstMatch[T any](rules []Rule[T], rec Record) (T, string, bool) {
	for _, r := range rules {
		if v, ok := r.Match(rec); ok {
			return v, r.Name, true
		}
	}
	var zero T
	return zero, "", false
}

func senderRules(f Fields) []Rule[string] {
	return []Rule[string]{
		{
			Name: "sender",
			Match: func(rec Record) (string, bool) {
				return rec.firstScalar(f.Sender)
			},
		},
		{
			Name: "from",
			Match: func(rec Record) (string, bool) {
				return rec.firstScalar(f.From)
			},
		},
		{
			// Usually an outbound record, kept as the last resort.
			Name: "recipient",
			Match: func(rec Record) (string, bool) {
				list, ok := rec[f.Recipients].([]any)
				if !ok || len(list) == 0 {
					return "", false
				}
				first, ok := asRecord(list[0])
				if !ok {
					return "", false
				}
				return first.scalar(f.RecipientPhone)
			},
		},
	}
}

func bodyRules(f Fields) []Rule[string] {
	return []Rule[string]{
		{
			Name: "direct",
			Match: func(rec Record) (string, bool) {
				for _, key := range f.Body {
					if s, ok := rec[key].(string); ok {
						if s = strings.TrimSpace(s); s != "" {
							return s, true
						}
					}
				}
				return "", false
			},
		},
		{
			Name: "nested",
			Match: func(rec Record) (string, bool) {
				nested, ok := asRecord(rec[f.NestedMessage])
				if !ok {
					return "", false
				}
				for _, key := range f.NestedBody {
					if s, ok := nested[key].(string); ok && s != "" {
						return s, true
					}
				}
				b, err := json.Marshal(map[string]any(nested))
				if err != nil {
					return "", false
				}
				return string(b), true
			},
		},
		{
			Name: "parts",
			Match: func(rec Record) (string, bool) {
				parts, ok := rec[f.Parts].([]any)
				if !ok {
					return "", false
				}
				var b strings.Builder
				for _, p := range parts {
					part, ok := asRecord(p)
					if !ok {
						continue
					}
					for _, key := range f.PartBody {
						if s, ok := part[key].(string); ok && s != "" {
							b.WriteString(s)
							break
						}
					}
				}
				return b.String(), b.Len() > 0
			},
		},
		{
			Name: "payload",
			Match: func(rec Record) (string, bool) {
				s, ok := rec[f.Payload].(string)
				return s, ok && s != ""
			},
		},
	}
}
