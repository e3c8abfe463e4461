package privacy

import "testing"

func TestStrip(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"no tags", "hello world", "hello world"},
		{"single span", "before <private>secret</private> after", "before [REDACTED] after"},
		{"case insensitive", "x <PRIVATE>secret</PrIvAtE> y", "x [REDACTED] y"},
		{"multiple spans", "<private>a</private> mid <private>b</private>", "[REDACTED] mid [REDACTED]"},
		{"unclosed keeps remainder", "before <private>never closed", "before <private>never closed"},
		{"empty private", "a <private></private> b", "a [REDACTED] b"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Strip(c.in); got != c.want {
				t.Errorf("Strip(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

func TestIsFullyPrivate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"<private>all of it</private>", true},
		{"  <private>all of it</private>  ", true},
		{"keep <private>secret</private> this", false},
		{"", true},
		{"plain text", false},
	}
	for _, c := range cases {
		if got := IsFullyPrivate(c.in); got != c.want {
			t.Errorf("IsFullyPrivate(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
