// Package advice resolves classifier disease labels to structured medical
// guidance, falling back to advice synthesized from training-data statistics
// so a diagnosis is never returned bare.
package advice

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Masudi2022/Shifaa-fyp/internal/textmatch"
)

// Entry is one knowledge-base record. Field names follow the Swahili wire
// format the clients already consume.
type Entry struct {
	Disease       string   `json:"ugonjwa" yaml:"-"`
	OtherNames    []string `json:"majina_mengine,omitempty" yaml:"majina_mengine"`
	Summary       string   `json:"maelezo_fupi,omitempty" yaml:"maelezo_fupi"`
	WatchSymptoms []string `json:"dalili_za_kuangalia,omitempty" yaml:"dalili_za_kuangalia"`
	Tests         []string `json:"vipimo,omitempty" yaml:"vipimo"`
	Treatment     []string `json:"tiba,omitempty" yaml:"tiba"`
	Prevention    []string `json:"kinga,omitempty" yaml:"kinga"`
	HomeCare      []string `json:"ushauri_wa_nyumbani,omitempty" yaml:"ushauri_wa_nyumbani"`
	DangerSigns   []string `json:"dalili_za_hatari,omitempty" yaml:"dalili_za_hatari"`
	Note          string   `json:"tafadhali_kumbuka,omitempty" yaml:"tafadhali_kumbuka"`

	// Synthesized marks entries generated from dataset statistics rather
	// than authored knowledge. A first-class outcome, not an error path.
	Synthesized bool `json:"synthesized,omitempty" yaml:"-"`
}

// SymptomStats is the slice of the training matrix the resolver needs for
// synthesis.
type SymptomStats interface {
	TopSymptoms(label string, k int) []string
}

// Thresholds are the resolver's fuzzy cutoffs on the 0-100 ratio scale.
type Thresholds struct {
	Key   int // label against canonical KB keys
	Alias int // label against KB aliases
}

// Resolver maps possibly-noisy disease labels onto knowledge-base entries.
type Resolver struct {
	entries    map[string]Entry
	keys       []string          // canonical keys, sorted for determinism
	lowerKeys  map[string]string // lowercased key -> canonical key
	aliases    []string
	aliasToKey map[string]string // lowercased alias -> canonical key
	stats      SymptomStats
	thresholds Thresholds
	topK       int
}

// LoadKB reads a YAML knowledge base keyed by canonical disease label. A
// missing file is not an error; it yields an empty map and the resolver
// synthesizes everything.
func LoadKB(path string) (map[string]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Entry{}, nil
		}
		return nil, fmt.Errorf("read knowledge base: %w", err)
	}
	var kb map[string]Entry
	if err := yaml.Unmarshal(data, &kb); err != nil {
		return nil, fmt.Errorf("decode knowledge base %s: %w", path, err)
	}
	if kb == nil {
		kb = map[string]Entry{}
	}
	return kb, nil
}

// NewResolver builds a resolver over the knowledge base. stats backs the
// synthesis fallback; topK bounds the synthesized watch-symptom list.
func NewResolver(kb map[string]Entry, stats SymptomStats, th Thresholds, topK int) *Resolver {
	r := &Resolver{
		entries:    kb,
		lowerKeys:  make(map[string]string, len(kb)),
		aliasToKey: make(map[string]string),
		stats:      stats,
		thresholds: th,
		topK:       topK,
	}
	for k := range kb {
		r.keys = append(r.keys, k)
		r.lowerKeys[strings.ToLower(k)] = k
	}
	sort.Strings(r.keys)
	for _, k := range r.keys {
		for _, a := range kb[k].OtherNames {
			a = strings.TrimSpace(a)
			if a == "" {
				continue
			}
			low := strings.ToLower(a)
			if _, dup := r.aliasToKey[low]; !dup {
				r.aliasToKey[low] = k
				r.aliases = append(r.aliases, a)
			}
		}
	}
	return r
}

// Resolve returns the advice entry for a disease label. Resolution order:
// exact key, case-insensitive key, space/underscore variant, alias,
// fuzzy key, fuzzy alias, synthesis. The result always carries the resolved
// canonical label and is never empty.
func (r *Resolver) Resolve(label string) Entry {
	name := strings.TrimSpace(label)
	if key, ok := r.canonicalKey(name); ok {
		e := r.entries[key]
		e.Disease = key
		return e
	}
	return r.Synthesize(name)
}

func (r *Resolver) canonicalKey(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	if _, ok := r.entries[name]; ok {
		return name, true
	}
	low := strings.ToLower(name)
	if k, ok := r.lowerKeys[low]; ok {
		return k, true
	}
	for _, variant := range []string{
		strings.ReplaceAll(name, " ", "_"),
		strings.ReplaceAll(name, "_", " "),
	} {
		if _, ok := r.entries[variant]; ok {
			return variant, true
		}
		if k, ok := r.lowerKeys[strings.ToLower(variant)]; ok {
			return k, true
		}
	}
	if k, ok := r.aliasToKey[low]; ok {
		return k, true
	}
	if match, score, ok := textmatch.BestMatch(name, r.keys); ok && score >= r.thresholds.Key {
		return match, true
	}
	if match, score, ok := textmatch.BestMatch(name, r.aliases); ok && score >= r.thresholds.Alias {
		return r.aliasToKey[strings.ToLower(match)], true
	}
	return "", false
}

// Synthesize builds an advice entry from training-data statistics: the top-K
// symptoms by truthy-rate among the label's rows become the watch list,
// paired with generic guidance. Guarantees a non-empty entry.
func (r *Resolver) Synthesize(label string) Entry {
	var watch []string
	if r.stats != nil {
		for _, s := range r.stats.TopSymptoms(label, r.topK) {
			watch = append(watch, humanSymptom(s))
		}
	}
	if len(watch) == 0 {
		watch = []string{"Dalili mbalimbali"}
	}
	return Entry{
		Disease: label,
		Summary: fmt.Sprintf(
			"Ugonjwa '%s' umeonekana kwenye dataset. Dalili muhimu zinajumuisha: %s. (Hii ni taarifa ya msaada tu.)",
			label, strings.Join(watch, ", ")),
		WatchSymptoms: watch,
		Tests:         []string{"Fanya vipimo vya msingi vinavyofaa kulingana na dalili; muone daktari kwa ushauri wa kitaalamu."},
		Treatment:     []string{"Tiba hutegemea utambuzi wa daktari; fuata ushauri wa mtaalamu."},
		Prevention:    []string{"Fuatilia usafi na hatua za kinga zinazofaa kulingana na ugonjwa."},
		HomeCare:      []string{"Pumzika, kunywa maji, andika dalili (muda/ukali), na muone daktari ikiwa dalili zinaendelea au zinaongezeka."},
		Note:          "Huu ni mwongozo wa msaada. Si badala ya uchunguzi wa daktari.",
		Synthesized:   true,
	}
}

func humanSymptom(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "_", " "))
}
