package domain

import "testing"

func TestTrackingState_Status(t *testing.T) {
	tests := []struct {
		name   string
		state  TrackingState
		want   TrackerStatus
		active bool
	}{
		{"stopped", TrackingState{}, StatusStopped, false},
		{"tracking", TrackingState{IsTracking: true}, StatusTracking, true},
		{"paused", TrackingState{IsTracking: true, IsPaused: true, PauseReason: PauseIdle}, StatusPaused, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Status(); got != tt.want {
				t.Errorf("Status() = %v, want %v", got, tt.want)
			}
			if got := tt.state.IsActive(); got != tt.active {
				t.Errorf("IsActive() = %v, want %v", got, tt.active)
			}
		})
	}
}

func TestGetStatusLabel(t *testing.T) {
	tests := []struct {
		status TrackerStatus
		want   string
	}{
		{StatusStopped, "Stopped"},
		{StatusTracking, "Tracking"},
		{StatusPaused, "Paused"},
		{TrackerStatus("bogus"), "Unknown"},
	}
	for _, tt := range tests {
		if got := GetStatusLabel(tt.status); got != tt.want {
			t.Errorf("GetStatusLabel(%v) = %q, want %q", tt.status, got, tt.want)
		}
	}
	if GetPauseReasonLabel(PauseAppBlur) != "App in background" {
		t.Error("GetPauseReasonLabel(app_blur) mismatch")
	}
}

func TestActivityEvent_Validate(t *testing.T) {
	for _, typ := range ValidEventTypes {
		if err := (ActivityEvent{Type: typ}).Validate(); err != nil {
			t.Errorf("Validate(%s) error = %v", typ, err)
		}
	}
	if err := (ActivityEvent{Type: "scroll"}).Validate(); err == nil {
		t.Error("Validate(scroll) should fail")
	}
}
