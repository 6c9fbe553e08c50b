package intent

import (
	"errors"
	"fmt"
	"strings"
)

const TrackSymptoms = "track_symptoms"

// Definition describes one intent: the slots it needs and the question that
// fills each slot. Questions[i] asks for RequiredSlots[i].
type Definition struct {
	Name          string       `yaml:"name"`
	Keywords      []string     `yaml:"keywords"`
	Questions     []string     `yaml:"questions"`
	RequiredSlots []string     `yaml:"required_slots"`
	Summary       *SummarySpec `yaml:"summary,omitempty"`
}

// SummarySpec controls how collected data is echoed back on completion.
type SummarySpec struct {
	Header string         `yaml:"header"`
	Fields []SummaryField `yaml:"fields"`
}

// SummaryField renders one slot as "- <Label>: <value><Suffix>".
type SummaryField struct {
	Slot   string `yaml:"slot"`
	Label  string `yaml:"label"`
	Suffix string `yaml:"suffix,omitempty"`
}

// Validate checks the structural invariants of a definition.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("intent name is empty")
	}
	if len(d.Questions) != len(d.RequiredSlots) {
		return fmt.Errorf("intent %s: %d questions for %d required slots", d.Name, len(d.Questions), len(d.RequiredSlots))
	}
	seen := make(map[string]struct{}, len(d.RequiredSlots))
	for _, slot := range d.RequiredSlots {
		if slot == "" {
			return fmt.Errorf("intent %s: empty slot name", d.Name)
		}
		if _, dup := seen[slot]; dup {
			return fmt.Errorf("intent %s: duplicate slot %s", d.Name, slot)
		}
		seen[slot] = struct{}{}
	}
	if d.Summary != nil {
		for _, f := range d.Summary.Fields {
			if _, ok := seen[f.Slot]; !ok {
				return fmt.Errorf("intent %s: summary references unknown slot %s", d.Name, f.Slot)
			}
		}
	}
	return nil
}

// DisplayName is the intent name with underscores turned into spaces.
func (d Definition) DisplayName() string {
	return strings.ReplaceAll(d.Name, "_", " ")
}

// Catalog is an immutable, ordered set of intent definitions.
type Catalog struct {
	defs  []Definition
	index map[string]int
}

// NewCatalog validates defs and keeps them in declaration order.
func NewCatalog(defs ...Definition) (*Catalog, error) {
	c := &Catalog{
		defs:  make([]Definition, 0, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.index[d.Name]; dup {
			return nil, fmt.Errorf("duplicate intent: %s", d.Name)
		}
		c.index[d.Name] = len(c.defs)
		c.defs = append(c.defs, clone(d))
	}
	return c, nil
}

// Lookup returns the definition for name.
func (c *Catalog) Lookup(name string) (Definition, bool) {
	i, ok := c.index[name]
	if !ok {
		return Definition{}, false
	}
	return clone(c.defs[i]), true
}

// All returns the definitions in declaration order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.defs))
	for i, d := range c.defs {
		out[i] = clone(d)
	}
	return out
}

// Len returns the number of intents.
func (c *Catalog) Len() int {
	return len(c.defs)
}

func clone(d Definition) Definition {
	d.Keywords = append([]string(nil), d.Keywords...)
	d.Questions = append([]string(nil), d.Questions...)
	d.RequiredSlots = append([]string(nil), d.RequiredSlots...)
	if d.Summary != nil {
		s := *d.Summary
		s.Fields = append([]SummaryField(nil), s.Fields...)
		d.Summary = &s
	}
	return d
}

// SymptomTracking is the built-in symptom intake intent.
func SymptomTracking() Definition {
	return Definition{
		Name:     TrackSymptoms,
		Keywords: []string{"symptom"},
		Questions: []string{
			"What symptoms are you experiencing?",
			"When did these symptoms start?",
			"How severe are the symptoms on a scale of 1 to 10?",
			"Have you taken any medication for these symptoms?",
			"Is there anything that makes the symptoms better or worse?",
		},
		RequiredSlots: []string{"symptoms_experienced", "start_date", "severity", "medication_taken", "triggers"},
		Summary: &SummarySpec{
			Header: "Okay, I've recorded the following for your symptoms:",
			Fields: []SummaryField{
				{Slot: "symptoms_experienced", Label: "Symptoms"},
				{Slot: "start_date", Label: "Started around"},
				{Slot: "severity", Label: "Severity", Suffix: "/10"},
				{Slot: "medication_taken", Label: "Medication"},
				{Slot: "triggers", Label: "Triggers/modifying factors"},
			},
		},
	}
}

// DefaultCatalog holds the built-in intents.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(SymptomTracking())
	if err != nil {
		panic(err)
	}
	return c
}
