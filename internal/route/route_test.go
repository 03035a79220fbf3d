package route

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	id := strings.Repeat("ab12", 16)

	cases := []struct {
		path string
		want Route
	}{
		{"/", Create{}},
		{"/" + id, Play{GameID: id}},
		{"/" + strings.Repeat("A_z9", 16), Play{GameID: strings.Repeat("A_z9", 16)}},
		{"", Invalid{Path: ""}},
		{"/" + id[:63], Invalid{Path: "/" + id[:63]}},
		{"/" + id + "0", Invalid{Path: "/" + id + "0"}},
		{"/" + id + "/", Invalid{Path: "/" + id + "/"}},
		{"/games/" + id, Invalid{Path: "/games/" + id}},
		{"/" + strings.Repeat("-", 64), Invalid{Path: "/" + strings.Repeat("-", 64)}},
	}
	for _, tc := range cases {
		if got := Parse(tc.path); got != tc.want {
			t.Fatalf("Parse(%q) = %#v, want %#v", tc.path, got, tc.want)
		}
	}
}
