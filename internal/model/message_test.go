package model

import (
	"testing"
)

func TestStatusAdvances(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusSent, StatusDelivered, true},
		{StatusSent, StatusRead, true},
		{StatusSent, StatusFailed, true},
		{StatusDelivered, StatusRead, true},
		{StatusDelivered, StatusSent, false},
		{StatusRead, StatusDelivered, false},
		{StatusRead, StatusRead, false},
		{StatusFailed, StatusRead, false},
		{StatusFailed, StatusDelivered, false},
	}

	for _, tc := range cases {
		if got := tc.from.Advances(tc.to); got != tc.want {
			t.Errorf("%s -> %s: advances = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"sent", "delivered", "read", "failed"} {
		if _, ok := ParseStatus(s); !ok {
			t.Errorf("ParseStatus(%q) not recognized", s)
		}
	}
	if _, ok := ParseStatus("warehoused"); ok {
		t.Error("ParseStatus accepted an untracked status")
	}
}
