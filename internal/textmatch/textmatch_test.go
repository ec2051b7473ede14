package textmatch

import (
	"reflect"
	"testing"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"identical", "homa", "homa", 100},
		{"case insensitive", "Homa", "homa", 100},
		{"underscore equals space", "homa_kali", "Homa kali", 100},
		{"both empty", "", "", 100},
		{"one extra rune", "homaa", "homa", 88},
		{"all different", "abc", "xyz", 50},
		{"nothing shared", "a", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Ratio(tt.a, tt.b); got != tt.want {
				t.Errorf("Ratio(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Homa_Kali  ", "homa kali"},
		{"maumivu_ya_kichwa", "maumivu ya kichwa"},
		{"a   b\tc", "a b c"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBestMatch(t *testing.T) {
	match, score, ok := BestMatch("homa kali", []string{"baridi", "homa_kali", "homa"})
	if !ok || match != "homa_kali" || score != 100 {
		t.Errorf("BestMatch = (%q, %d, %v), want (homa_kali, 100, true)", match, score, ok)
	}

	// Equal scores keep the earliest choice.
	match, _, ok = BestMatch("aa", []string{"ab", "ba"})
	if !ok || match != "ab" {
		t.Errorf("tie broke to %q, want ab", match)
	}

	if _, _, ok := BestMatch("homa", nil); ok {
		t.Error("BestMatch with no choices reported ok")
	}
}

func TestMatches(t *testing.T) {
	choices := []string{"maumivu_ya_kichwa", "maumivu_ya_kifua", "homa"}

	got := Matches("maumivu ya kichwa", choices, 90)
	want := []string{"maumivu_ya_kichwa", "maumivu_ya_kifua"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Matches = %v, want both close entries %v", got, want)
	}

	if got := Matches("maumivu ya kichwa", choices, 95); !reflect.DeepEqual(got, []string{"maumivu_ya_kichwa"}) {
		t.Errorf("high threshold kept %v, want the exact entry only", got)
	}

	if got := Matches("homa", nil, 50); got != nil {
		t.Errorf("Matches with no choices = %v, want nil", got)
	}
}
