package lexicon

import (
	"reflect"
	"testing"
)

var testColumns = []string{"homa", "homa_kali", "baridi", "maumivu_ya_kichwa", "maumivu_ya_kifua", "kikohozi"}

func newTestLexicon(extra map[string]string) *Lexicon {
	return New(testColumns, extra, Thresholds{Token: 87, Phrase: 90})
}

func TestExtract(t *testing.T) {
	lex := newTestLexicon(nil)
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "multi-word alias beats its prefix",
			text: "Nina homa kali na baridi",
			want: []string{"baridi", "homa", "homa_kali"},
		},
		{
			name: "english alias",
			text: "I have a fever",
			want: []string{"homa"},
		},
		{
			name: "fuzzy token survives a typo",
			text: "kikohoze kidogo",
			want: []string{"kikohozi"},
		},
		{
			name: "whole-message fuzzy catches split phrases",
			text: "maumivu za kichwa",
			want: []string{"maumivu_ya_kichwa"},
		},
		{
			name: "phrase pass keeps every entry above the cutoff",
			text: "maumivu ya kichwa",
			want: []string{"maumivu_ya_kichwa", "maumivu_ya_kifua"},
		},
		{
			name: "small talk yields nothing",
			text: "asante sana",
			want: nil,
		},
		{
			name: "empty input",
			text: "   ",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lex.Extract(tt.text)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Extract(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtraAliases(t *testing.T) {
	lex := newTestLexicon(map[string]string{
		"kuumwa kichwa": "maumivu_ya_kichwa",
		"bogus":         "not_a_column",
	})

	got := lex.Extract("nina kuumwa kichwa")
	if !reflect.DeepEqual(got, []string{"maumivu_ya_kichwa"}) {
		t.Errorf("extra alias not applied: got %v", got)
	}

	// Aliases pointing outside the vocabulary are dropped at construction.
	if got := lex.Extract("bogus"); len(got) != 0 {
		t.Errorf("invalid alias leaked through: got %v", got)
	}
}

func TestKnows(t *testing.T) {
	lex := newTestLexicon(nil)
	if !lex.Knows("homa") {
		t.Error("Knows(homa) = false")
	}
	if lex.Knows("fever") {
		t.Error("Knows(fever) = true, aliases are not columns")
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Nina homa_kali, na baridi 39!")
	want := []string{"nina", "homa_kali", "na", "baridi"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}
}
