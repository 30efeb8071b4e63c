package inference

import (
	"testing"

	"cros.local/shellas/internal/seccontext"
)

func TestFilterForUIDBoundary(t *testing.T) {
	tests := []struct {
		uid  uint32
		want seccontext.FilterProfile
	}{
		{0, seccontext.FilterSystem},
		{1000, seccontext.FilterSystem},
		{9999, seccontext.FilterSystem},
		{10000, seccontext.FilterApp},
		{10123, seccontext.FilterApp},
		{99999, seccontext.FilterApp},
	}
	for _, tt := range tests {
		if got := FilterForUID(tt.uid); got != tt.want {
			t.Errorf("FilterForUID(%d) = %v, want %v", tt.uid, got, tt.want)
		}
	}
}

func TestFromProfileRejectsUnknownProfile(t *testing.T) {
	if _, err := FromProfile("some-other-profile"); err == nil {
		t.Fatal("FromProfile(unknown) succeeded, want error")
	}
}
