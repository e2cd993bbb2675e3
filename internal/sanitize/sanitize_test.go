package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText_StripsMarkup(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "held too long, exited on news", "held too long, exited on news"},
		{"empty", "", ""},
		{"simple tag", "<b>good entry</b>", "good entry"},
		{"script", `<script>alert("x")</script>watch volume`, "watch volume"},
		{"attributes", `<a href="http://x" onclick="steal()">link text</a>`, "link text"},
		{"encoded tag", "&lt;img src=x onerror=alert(1)&gt;", ""},
		{"angle math", "a < b and b > c", "a < b and b > c"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Text(tc.in))
		})
	}
}

func TestText_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain notes",
		"<div><p>nested</p></div>",
		"&lt;script&gt;alert(1)&lt;/script&gt;",
		"a < b",
	}
	for _, in := range inputs {
		once := Text(in)
		assert.Equal(t, once, Text(once), "input %q", in)
	}
}
