package chat

import "testing"

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is longer", 4, "this..."},
		{"ñandú español", 5, "ñandú..."},
		{"anything", 0, "anything"},
		{"", 3, ""},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		info UserInfo
		want string
	}{
		{UserInfo{FirstName: "Ana", LastName: "Lopez"}, "Ana Lopez"},
		{UserInfo{FirstName: "Ana"}, "Ana"},
		{UserInfo{LastName: "Lopez"}, "Lopez"},
		{UserInfo{}, "fallback"},
	}
	for _, tt := range tests {
		if got := tt.info.DisplayName("fallback"); got != tt.want {
			t.Errorf("DisplayName(%+v) = %q, want %q", tt.info, got, tt.want)
		}
	}
}
