// Package lexicon maps free-text symptom reports onto the canonical symptom
// vocabulary the classifier was trained on.
package lexicon

import (
	"sort"
	"strings"
	"unicode"

	"github.com/Masudi2022/Shifaa-fyp/internal/textmatch"
)

// baseAliases are common phrasings (English and Swahili) that do not spell a
// vocabulary column verbatim. Extra aliases can be layered on via New.
var baseAliases = map[string]string{
	"fever":         "homa",
	"high fever":    "homa_kali",
	"homa kali":     "homa_kali",
	"chills":        "baridi",
	"headache":      "maumivu_ya_kichwa",
	"kichwa kinauma": "maumivu_ya_kichwa",
}

// Thresholds are the extractor's fuzzy-matching cutoffs on the 0-100 ratio
// scale. They are tunable configuration, not structural constants.
type Thresholds struct {
	Token  int // per-token match against the vocabulary
	Phrase int // whole-message match against the vocabulary
}

// Lexicon holds the canonical symptom vocabulary and its alias table.
// It is built once at startup and read-only afterwards.
type Lexicon struct {
	columns    []string
	columnSet  map[string]struct{}
	aliases    map[string]string
	aliasKeys  []string // alias keys, longest first
	thresholds Thresholds
}

// New builds a lexicon over the ordered vocabulary columns. extraAliases may
// be nil; entries pointing outside the vocabulary are dropped. Every column
// and its spaces-for-underscores variant always alias themselves.
func New(columns []string, extraAliases map[string]string, th Thresholds) *Lexicon {
	l := &Lexicon{
		columns:    columns,
		columnSet:  make(map[string]struct{}, len(columns)),
		aliases:    make(map[string]string, 2*len(columns)+len(baseAliases)),
		thresholds: th,
	}
	for _, c := range columns {
		l.columnSet[c] = struct{}{}
	}
	add := func(alias, canonical string) {
		alias = strings.ToLower(strings.TrimSpace(alias))
		if alias == "" {
			return
		}
		if _, ok := l.columnSet[canonical]; !ok {
			return
		}
		if _, exists := l.aliases[alias]; !exists {
			l.aliases[alias] = canonical
		}
	}
	for a, c := range baseAliases {
		add(a, c)
	}
	for a, c := range extraAliases {
		add(a, c)
	}
	for _, c := range columns {
		add(c, c)
		add(strings.ReplaceAll(c, "_", " "), c)
	}

	l.aliasKeys = make([]string, 0, len(l.aliases))
	for a := range l.aliases {
		l.aliasKeys = append(l.aliasKeys, a)
	}
	// Longest alias first so "homa kali" wins before "homa" shadows it.
	sort.Slice(l.aliasKeys, func(i, j int) bool {
		if len(l.aliasKeys[i]) != len(l.aliasKeys[j]) {
			return len(l.aliasKeys[i]) > len(l.aliasKeys[j])
		}
		return l.aliasKeys[i] < l.aliasKeys[j]
	})
	return l
}

// Columns returns the ordered vocabulary. Callers must not mutate it.
func (l *Lexicon) Columns() []string { return l.columns }

// Knows reports whether s is a vocabulary column.
func (l *Lexicon) Knows(s string) bool {
	_, ok := l.columnSet[s]
	return ok
}

// Extract returns the set of canonical symptoms recognized in text. It never
// fails: unrecognizable text yields an empty slice. The result is sorted for
// stable session state.
func (l *Lexicon) Extract(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	found := make(map[string]struct{})

	// Pass 1: deterministic alias lookup, longest alias first.
	lowered := strings.ToLower(text)
	for _, alias := range l.aliasKeys {
		if strings.Contains(lowered, alias) {
			found[l.aliases[alias]] = struct{}{}
		}
	}

	// Pass 2: fuzzy per-token matching. A token may clear the cutoff against
	// several vocabulary entries; all of them count.
	for _, tok := range Tokenize(text) {
		for _, match := range textmatch.Matches(tok, l.columns, l.thresholds.Token) {
			found[match] = struct{}{}
		}
	}

	// Pass 3: stricter fuzzy match of the whole message, to catch multi-word
	// symptom phrases that tokenization splits apart.
	for _, match := range textmatch.Matches(text, l.columns, l.thresholds.Phrase) {
		found[match] = struct{}{}
	}

	out := make([]string, 0, len(found))
	for s := range found {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Tokenize splits text into lowercase word tokens, keeping Unicode letters
// and underscores and discarding punctuation and digits.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '_'
	})
}
