package normalize

import (
	"testing"
	"time"

	"github.com/j-veylop/claude-usage-tui/internal/models"
)

const currentLine = `{"parentUuid":"p1","isSidechain":false,"userType":"external","sessionId":"s1",` +
	`"version":"1.0.51","type":"assistant","message":{"id":"msg_1","type":"message","role":"assistant",` +
	`"model":"claude-sonnet-4-20250514","content":[],"usage":{"input_tokens":10,` +
	`"cache_creation_input_tokens":200,"cache_read_input_tokens":3000,"output_tokens":40,` +
	`"service_tier":"standard"}},"requestId":"req_1","uuid":"u1","timestamp":"2025-06-01T12:34:56.789Z"}`

func TestNormalize_Current(t *testing.T) {
	res := Normalize([]byte(currentLine))
	if res.Kind != KindRecord {
		t.Fatalf("Normalize() kind = %v (%s), want record", res.Kind, res.Reason)
	}

	rec := res.Record
	want := models.TokenUsage{Input: 10, Output: 40, CacheWrite: 200, CacheRead: 3000}
	if rec.Usage != want {
		t.Errorf("Usage = %+v, want %+v", rec.Usage, want)
	}
	if rec.Model != "claude-sonnet-4-20250514" {
		t.Errorf("Model = %q", rec.Model)
	}
	if rec.RequestID != "req_1" || rec.SessionID != "s1" {
		t.Errorf("ids = %q/%q, want req_1/s1", rec.RequestID, rec.SessionID)
	}
	wantTS := time.Date(2025, 6, 1, 12, 34, 56, 789_000_000, time.UTC)
	if !rec.Timestamp.Equal(wantTS) {
		t.Errorf("Timestamp = %v, want %v", rec.Timestamp, wantTS)
	}
	if rec.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp location = %v, want UTC", rec.Timestamp.Location())
	}
	if rec.Cost != 0 {
		t.Errorf("Cost = %v, want 0 before aggregation", rec.Cost)
	}
}

func TestNormalize_Classification(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		wantKind   Kind
		wantReason string
	}{
		{
			name:       "Summary",
			line:       `{"type":"summary","summary":"Refactor parser","leafUuid":"abc"}`,
			wantKind:   KindSkip,
			wantReason: ReasonSummary,
		},
		{
			name:       "UserTurn",
			line:       `{"type":"user","message":{"role":"user","content":"hi"},"timestamp":"2025-06-01T12:00:00Z"}`,
			wantKind:   KindSkip,
			wantReason: ReasonNoUsage,
		},
		{
			name:       "AssistantWithoutUsage",
			line:       `{"type":"assistant","message":{"model":"claude-sonnet-4","content":[]},"timestamp":"2025-06-01T12:00:00Z"}`,
			wantKind:   KindSkip,
			wantReason: ReasonNoUsage,
		},
		{
			name:       "Synthetic",
			line:       `{"type":"assistant","message":{"model":"<synthetic>","usage":{"input_tokens":0,"output_tokens":0}},"timestamp":"2025-06-01T12:00:00Z"}`,
			wantKind:   KindSkip,
			wantReason: ReasonSynthetic,
		},
		{
			name:     "UnknownTypeSkipped",
			line:     `{"type":"file-history-snapshot","snapshot":{}}`,
			wantKind: KindSkip,
		},
		{
			name:     "Garbage",
			line:     `this is not json`,
			wantKind: KindMalformed,
		},
		{
			name:     "TruncatedJSON",
			line:     `{"type":"assistant","message":{"model":`,
			wantKind: KindMalformed,
		},
		{
			name:     "Array",
			line:     `[1,2,3]`,
			wantKind: KindMalformed,
		},
		{
			name:     "AssistantWithoutMessage",
			line:     `{"type":"assistant","timestamp":"2025-06-01T12:00:00Z"}`,
			wantKind: KindMalformed,
		},
		{
			name:     "MissingTimestamp",
			line:     `{"type":"assistant","message":{"model":"claude-sonnet-4","usage":{"input_tokens":1,"output_tokens":1}}}`,
			wantKind: KindMalformed,
		},
		{
			name:     "BadTimestamp",
			line:     `{"type":"assistant","timestamp":"yesterday","message":{"model":"claude-sonnet-4","usage":{"input_tokens":1}}}`,
			wantKind: KindMalformed,
		},
		{
			name:     "MissingModel",
			line:     `{"type":"assistant","timestamp":"2025-06-01T12:00:00Z","message":{"usage":{"input_tokens":1}}}`,
			wantKind: KindMalformed,
		},
		{
			name:     "UsageNotObject",
			line:     `{"type":"assistant","timestamp":"2025-06-01T12:00:00Z","message":{"model":"claude-sonnet-4","usage":"lots"}}`,
			wantKind: KindMalformed,
		},
		{
			name:     "TokenNotNumeric",
			line:     `{"type":"assistant","timestamp":"2025-06-01T12:00:00Z","message":{"model":"claude-sonnet-4","usage":{"input_tokens":"many"}}}`,
			wantKind: KindMalformed,
		},
		{
			name:     "TypeNotString",
			line:     `{"type":7}`,
			wantKind: KindMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Normalize([]byte(tt.line))
			if res.Kind != tt.wantKind {
				t.Fatalf("Normalize() kind = %v (%s), want %v", res.Kind, res.Reason, tt.wantKind)
			}
			if tt.wantReason != "" && res.Reason != tt.wantReason {
				t.Errorf("Normalize() reason = %q, want %q", res.Reason, tt.wantReason)
			}
			if res.Kind == KindMalformed && res.Reason == "" {
				t.Error("malformed result without reason")
			}
		})
	}
}

func TestNormalize_Legacy(t *testing.T) {
	tests := []struct {
		name string
		line string
		want models.TokenUsage
	}{
		{
			name: "TopLevelUsage",
			line: `{"timestamp":"2024-11-01T08:00:00Z","model":"claude-3-5-sonnet-20241022","costUSD":0.01,` +
				`"usage":{"input_tokens":5,"output_tokens":6},"sessionId":"s"}`,
			want: models.TokenUsage{Input: 5, Output: 6},
		},
		{
			name: "UntypedMessage",
			line: `{"timestamp":"2024-11-01T08:00:00Z","requestId":"r","message":{"model":"claude-3-opus-20240229",` +
				`"usage":{"input_tokens":"7","output_tokens":8.0,"cache_read_input_tokens":null}}}`,
			want: models.TokenUsage{Input: 7, Output: 8},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Normalize([]byte(tt.line))
			if res.Kind != KindRecord {
				t.Fatalf("Normalize() kind = %v (%s), want record", res.Kind, res.Reason)
			}
			if res.Record.Usage != tt.want {
				t.Errorf("Usage = %+v, want %+v", res.Record.Usage, tt.want)
			}
		})
	}
}

func TestNormalize_NullRequestID(t *testing.T) {
	line := `{"type":"assistant","requestId":null,"timestamp":"2025-06-01T12:00:00Z",` +
		`"message":{"model":"claude-haiku-4-5","usage":{"input_tokens":1,"output_tokens":2}}}`

	res := Normalize([]byte(line))
	if res.Kind != KindRecord {
		t.Fatalf("Normalize() kind = %v (%s), want record", res.Kind, res.Reason)
	}
	if res.Record.HasRequestID() {
		t.Errorf("RequestID = %q, want empty", res.Record.RequestID)
	}
}
