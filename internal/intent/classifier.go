package intent

import "strings"

// Classifier maps free text to at most one intent name.
type Classifier interface {
	Classify(text string) (string, bool)
}

// MatchFunc reports whether lowercased text selects an intent.
type MatchFunc func(lower string) bool

// Rule binds an intent to its matcher.
type Rule struct {
	Intent string
	Match  MatchFunc
}

// KeywordClassifier tries rules in order and returns the first hit.
type KeywordClassifier struct {
	rules []Rule
}

// NewKeywordClassifier builds one rule per catalog intent, in declaration
// order. The symptom intent keeps its historical condition.
func NewKeywordClassifier(c *Catalog) *KeywordClassifier {
	kc := &KeywordClassifier{}
	for _, d := range c.All() {
		if d.Name == TrackSymptoms && sameKeywords(d.Keywords, "symptom") {
			kc.rules = append(kc.rules, Rule{Intent: d.Name, Match: matchSymptoms})
			continue
		}
		kc.rules = append(kc.rules, Rule{Intent: d.Name, Match: containsAny(d.Keywords)})
	}
	return kc
}

// NewRuleClassifier uses rules as given.
func NewRuleClassifier(rules ...Rule) *KeywordClassifier {
	return &KeywordClassifier{rules: append([]Rule(nil), rules...)}
}

// Classify returns the first intent whose rule matches text, case-insensitively.
func (k *KeywordClassifier) Classify(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, r := range k.rules {
		if r.Match(lower) {
			return r.Intent, true
		}
	}
	return "", false
}

// matchSymptoms is equivalent to a plain "symptom" check because && binds
// tighter than ||. A bare "track" does not match.
func matchSymptoms(m string) bool {
	return strings.Contains(m, "symptom") || strings.Contains(m, "track") && strings.Contains(m, "symptom")
}

func containsAny(keywords []string) MatchFunc {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			lowered = append(lowered, kw)
		}
	}
	return func(m string) bool {
		for _, kw := range lowered {
			if strings.Contains(m, kw) {
				return true
			}
		}
		return false
	}
}

func sameKeywords(kws []string, want string) bool {
	return len(kws) == 1 && strings.EqualFold(kws[0], want)
}
