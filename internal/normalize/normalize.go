// Package normalize turns raw Claude Code JSONL lines into usage records.
//
// Log entries have changed shape across CLI versions, so a line is first
// decoded into a loose map and then matched against an ordered list of
// known shapes. Anything that carries no billable usage is skipped; only
// lines that are broken for their apparent shape are reported as malformed.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/j-veylop/claude-usage-tui/internal/models"
)

// Kind classifies the outcome of Normalize.
type Kind int

// Result kinds.
const (
	KindRecord Kind = iota
	KindSkip
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindSkip:
		return "skip"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Skip reasons.
const (
	ReasonSummary   = "summary entry"
	ReasonNoUsage   = "no usage"
	ReasonSynthetic = "synthetic model"
)

// Result is the classification of one line. Record is only set for KindRecord.
type Result struct {
	Reason string
	Record models.UsageRecord
	Kind   Kind
}

type object = map[string]json.RawMessage

// shape is one known entry layout. match reports whether the entry looks
// like this shape; extract pulls the usage-bearing fields out of it.
type shape struct {
	match   func(typ string, entry object) bool
	extract func(entry object) Result
}

var shapes = []shape{
	{
		match:   func(typ string, _ object) bool { return typ == "summary" },
		extract: func(object) Result { return skip(ReasonSummary) },
	},
	{
		// type=assistant with usage nested under message.
		match:   func(typ string, _ object) bool { return typ == "assistant" },
		extract: extractCurrent,
	},
	{
		// Early CLI builds wrote model and usage at the top level,
		// or a message object with no type discriminant.
		match: func(typ string, entry object) bool {
			if typ != "" {
				return false
			}
			_, hasUsage := entry["usage"]
			_, hasMessage := entry["message"]
			return hasUsage || hasMessage
		},
		extract: extractLegacy,
	},
}

// Normalize classifies line. It never panics and never returns an error:
// problems are expressed as KindMalformed with a reason.
func Normalize(line []byte) Result {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return malformed("not a JSON object")
	}

	var entry object
	if err := json.Unmarshal(line, &entry); err != nil {
		return malformed("invalid JSON: " + err.Error())
	}

	typ, err := optionalString(entry, "type")
	if err != nil {
		return malformed(err.Error())
	}

	for _, s := range shapes {
		if s.match(typ, entry) {
			return s.extract(entry)
		}
	}

	// user, system, tool results and other entries without usage.
	return skip(ReasonNoUsage)
}

func extractCurrent(entry object) Result {
	raw, ok := entry["message"]
	if !ok || isNull(raw) {
		return malformed("assistant entry without message")
	}
	var msg object
	if err := json.Unmarshal(raw, &msg); err != nil {
		return malformed("message is not an object")
	}
	return build(entry, msg)
}

func extractLegacy(entry object) Result {
	if _, ok := entry["usage"]; ok {
		return build(entry, entry)
	}
	var msg object
	if err := json.Unmarshal(entry["message"], &msg); err != nil || msg == nil {
		return skip(ReasonNoUsage)
	}
	return build(entry, msg)
}

// build assembles a record from the envelope (ids, timestamp) and the
// object carrying model and usage; for legacy lines both are the same.
func build(envelope, body object) Result {
	usageRaw, ok := body["usage"]
	if !ok || isNull(usageRaw) {
		return skip(ReasonNoUsage)
	}

	model, err := optionalString(body, "model")
	if err != nil {
		return malformed(err.Error())
	}
	if model == models.SyntheticModel {
		return skip(ReasonSynthetic)
	}
	if model == "" {
		return malformed("usage entry without model")
	}

	usage, err := parseUsage(usageRaw)
	if err != nil {
		return malformed(err.Error())
	}

	ts, err := parseTimestamp(envelope)
	if err != nil {
		return malformed(err.Error())
	}

	sessionID, err := optionalString(envelope, "sessionId")
	if err != nil {
		return malformed(err.Error())
	}
	requestID, err := optionalString(envelope, "requestId")
	if err != nil {
		return malformed(err.Error())
	}

	return Result{
		Kind: KindRecord,
		Record: models.UsageRecord{
			Timestamp: ts,
			SessionID: sessionID,
			RequestID: requestID,
			Model:     model,
			Usage:     usage,
		},
	}
}

func parseUsage(raw json.RawMessage) (models.TokenUsage, error) {
	var u object
	if err := json.Unmarshal(raw, &u); err != nil || u == nil {
		return models.TokenUsage{}, errors.New("usage is not an object")
	}

	var out models.TokenUsage
	fields := []struct {
		dst *int64
		key string
	}{
		{&out.Input, "input_tokens"},
		{&out.Output, "output_tokens"},
		{&out.CacheWrite, "cache_creation_input_tokens"},
		{&out.CacheRead, "cache_read_input_tokens"},
	}
	for _, f := range fields {
		n, err := tokenCount(u[f.key])
		if err != nil {
			return models.TokenUsage{}, fmt.Errorf("usage.%s: %w", f.key, err)
		}
		*f.dst = n
	}
	return out, nil
}

// tokenCount accepts a JSON number or a numeric string. Absent and null
// values count as zero.
func tokenCount(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 || isNull(raw) {
		return 0, nil
	}

	var num json.Number
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		num = json.Number(strings.TrimSpace(s))
	} else {
		num = json.Number(raw)
	}

	if n, err := num.Int64(); err == nil {
		if n < 0 {
			return 0, errors.New("negative token count")
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(string(num), 64)
	if err != nil {
		return 0, errors.New("token count is not numeric")
	}
	if f < 0 {
		return 0, errors.New("negative token count")
	}
	return int64(f), nil
}

func parseTimestamp(entry object) (time.Time, error) {
	s, err := optionalString(entry, "timestamp")
	if err != nil {
		return time.Time{}, err
	}
	if s == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q", s)
	}
	return ts.UTC(), nil
}

// optionalString returns the string at key, or "" when absent or null.
func optionalString(entry object, key string) (string, error) {
	raw, ok := entry[key]
	if !ok || isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%s is not a string", key)
	}
	return s, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func skip(reason string) Result {
	return Result{Kind: KindSkip, Reason: reason}
}

func malformed(reason string) Result {
	return Result{Kind: KindMalformed, Reason: reason}
}
