package domain

import "testing"

func TestParseFilenameMetadata(t *testing.T) {
	meta, ok := ParseFilenameMetadata("20240315_1430220m45s_5551234567_ANSWERED_jsmith.mp3")
	if !ok {
		t.Fatal("expected filename to match dialer pattern")
	}
	if meta.CallDate != "2024-03-15" {
		t.Errorf("call date = %q, want 2024-03-15", meta.CallDate)
	}
	if meta.CallTime != "14:30:22" {
		t.Errorf("call time = %q, want 14:30:22", meta.CallTime)
	}
	if meta.PhoneNumber != "5551234567" {
		t.Errorf("phone = %q, want 5551234567", meta.PhoneNumber)
	}
	if meta.CallStatus != "ANSWERED" {
		t.Errorf("status = %q, want ANSWERED", meta.CallStatus)
	}
	if meta.AgentName != "jsmith" {
		t.Errorf("agent = %q, want jsmith", meta.AgentName)
	}
	if meta.EstimatedDurationSeconds != 45 {
		t.Errorf("estimated duration = %d, want 45", meta.EstimatedDurationSeconds)
	}
}

func TestParseFilenameMetadataDuration(t *testing.T) {
	meta, ok := ParseFilenameMetadata("20240101_0900003m20s_5550001111_ANSWERED_agent.wav")
	if !ok {
		t.Fatal("expected match")
	}
	if meta.EstimatedDurationSeconds != 200 {
		t.Errorf("estimated duration = %d, want 200", meta.EstimatedDurationSeconds)
	}
}

func TestParseFilenameMetadataNoMatch(t *testing.T) {
	for _, name := range []string{
		"recording.mp3",
		"2024_call.wav",
		"",
	} {
		if _, ok := ParseFilenameMetadata(name); ok {
			t.Errorf("expected no match for %q", name)
		}
	}
}

func TestApplyTo(t *testing.T) {
	meta, ok := ParseFilenameMetadata("20240315_1430220m45s_5551234567_ANSWERED_jsmith.mp3")
	if !ok {
		t.Fatal("expected match")
	}
	var rec CallRecord
	meta.ApplyTo(&rec)
	if rec.AgentName != "jsmith" || rec.CallDate != "2024-03-15" || rec.EstimatedDurationSeconds != 45 {
		t.Errorf("record not populated: %+v", rec)
	}
}

func TestIsTerminal(t *testing.T) {
	cases := []struct {
		status RecordStatus
		want   bool
	}{
		{StatusPending, false},
		{StatusProcessing, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}
	for _, tc := range cases {
		r := CallRecord{Status: tc.status}
		if got := r.IsTerminal(); got != tc.want {
			t.Errorf("IsTerminal(%s) = %v, want %v", tc.status, got, tc.want)
		}
	}
}
