package model

import "testing"

func TestValidStatus(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{StatusBacklog, true},
		{StatusNextToPlay, true},
		{StatusPlaying, true},
		{StatusCompleted, true},
		{"", false},
		{"Backlog", false},
		{"dropped", false},
	}

	for _, tt := range tests {
		if got := ValidStatus(tt.status); got != tt.want {
			t.Errorf("ValidStatus(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestStatusesCoverEveryLabel(t *testing.T) {
	if len(Statuses) != 4 {
		t.Fatalf("expected 4 statuses, got %d", len(Statuses))
	}
	for _, s := range Statuses {
		if !ValidStatus(s) {
			t.Errorf("status %q listed but not valid", s)
		}
		if StatusLabel(s) == s {
			t.Errorf("status %q has no label", s)
		}
	}
}

func TestHasCover(t *testing.T) {
	empty := ""
	url := "http://localhost:8080/api/games/1/cover"

	if (&Game{}).HasCover() {
		t.Error("nil cover should report false")
	}
	if (&Game{CoverImage: &empty}).HasCover() {
		t.Error("empty cover should report false")
	}
	if !(&Game{CoverImage: &url}).HasCover() {
		t.Error("expected cover to be reported")
	}
}
