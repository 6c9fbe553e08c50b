package intent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefinitionValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		def     Definition
		wantErr string
	}{
		{name: "builtin", def: SymptomTracking()},
		{name: "noSlots", def: Definition{Name: "greet"}},
		{name: "emptyName", def: Definition{}, wantErr: "name is empty"},
		{
			name:    "misaligned",
			def:     Definition{Name: "x", Questions: []string{"a?", "b?"}, RequiredSlots: []string{"a"}},
			wantErr: "2 questions for 1 required slots",
		},
		{
			name:    "duplicateSlot",
			def:     Definition{Name: "x", Questions: []string{"a?", "b?"}, RequiredSlots: []string{"a", "a"}},
			wantErr: "duplicate slot",
		},
		{
			name: "summaryUnknownSlot",
			def: Definition{
				Name: "x", Questions: []string{"a?"}, RequiredSlots: []string{"a"},
				Summary: &SummarySpec{Fields: []SummaryField{{Slot: "b", Label: "B"}}},
			},
			wantErr: "unknown slot b",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.def.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestCatalogOrderAndIsolation(t *testing.T) {
	t.Parallel()

	a := Definition{Name: "a", Questions: []string{"qa"}, RequiredSlots: []string{"sa"}}
	b := Definition{Name: "b", Questions: []string{"qb"}, RequiredSlots: []string{"sb"}}
	c, err := NewCatalog(a, b)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	all := c.All()
	require.Equal(t, "a", all[0].Name)
	require.Equal(t, "b", all[1].Name)

	// Mutating the input or the returned copies must not leak into the catalog.
	a.Questions[0] = "mutated"
	all[1].Questions[0] = "mutated"
	got, ok := c.Lookup("a")
	require.True(t, ok)
	require.Equal(t, "qa", got.Questions[0])
	got, _ = c.Lookup("b")
	require.Equal(t, "qb", got.Questions[0])

	got.RequiredSlots[0] = "hijacked"
	got.Questions[0] = "rewritten"
	got, _ = c.Lookup("b")
	require.Equal(t, "sb", got.RequiredSlots[0])
	require.Equal(t, "qb", got.Questions[0])

	_, ok = c.Lookup("missing")
	require.False(t, ok)

	_, err = NewCatalog(a, a)
	require.ErrorContains(t, err, "duplicate intent")
}

func TestKeywordClassifier(t *testing.T) {
	t.Parallel()

	kc := NewKeywordClassifier(DefaultCatalog())

	tests := []struct {
		text   string
		want   string
		wantOK bool
	}{
		{text: "Track my symptoms", want: TrackSymptoms, wantOK: true},
		{text: "I have a SYMPTOM", want: TrackSymptoms, wantOK: true},
		{text: "symptomatic since monday", want: TrackSymptoms, wantOK: true},
		{text: "track my sleep", wantOK: false},
		{text: "hello there", wantOK: false},
		{text: "", wantOK: false},
	}

	for _, tt := range tests {
		got, ok := kc.Classify(tt.text)
		require.Equal(t, tt.wantOK, ok, tt.text)
		require.Equal(t, tt.want, got, tt.text)
	}
}

func TestKeywordClassifierFirstRuleWins(t *testing.T) {
	t.Parallel()

	c, err := NewCatalog(
		Definition{Name: "book_appointment", Keywords: []string{"appointment", "doctor"}},
		Definition{Name: "doctor_info", Keywords: []string{"doctor"}},
	)
	require.NoError(t, err)
	kc := NewKeywordClassifier(c)

	got, ok := kc.Classify("Find me a Doctor")
	require.True(t, ok)
	require.Equal(t, "book_appointment", got)
}

func TestNewRuleClassifier(t *testing.T) {
	t.Parallel()

	kc := NewRuleClassifier(Rule{Intent: "x", Match: func(m string) bool { return strings.HasPrefix(m, "go ") }})
	got, ok := kc.Classify("GO home")
	require.True(t, ok)
	require.Equal(t, "x", got)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	doc := `
intents:
  - name: book_appointment
    keywords: [appointment]
    questions:
      - Which doctor would you like to see?
      - What day works for you?
    required_slots: [doctor, day]
    summary:
      header: "Booking request:"
      fields:
        - {slot: doctor, label: Doctor}
        - {slot: day, label: Day}
  - name: ping
    keywords: [ping]
`
	c, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	d, ok := c.Lookup("book_appointment")
	require.True(t, ok)
	require.Equal(t, []string{"doctor", "day"}, d.RequiredSlots)
	require.Equal(t, "Booking request:", d.Summary.Header)

	p, ok := c.Lookup("ping")
	require.True(t, ok)
	require.Empty(t, p.RequiredSlots)
	require.Nil(t, p.Summary)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{name: "empty", doc: "intents: []", wantErr: "no intents"},
		{name: "unknownField", doc: "intents:\n  - name: a\n    prompt: x\n", wantErr: "invalid intent catalog"},
		{name: "misaligned", doc: "intents:\n  - name: a\n    questions: [q]\n", wantErr: "1 questions for 0"},
		{name: "garbage", doc: "::: not yaml", wantErr: "invalid intent catalog"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(strings.NewReader(tt.doc))
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "intents.yaml")
	require.NoError(t, os.WriteFile(path, []byte("intents:\n  - name: a\n    questions: [q]\n    required_slots: [s]\n"), 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "failed to open intent catalog")
}

func TestDefaultCatalogIsImmutable(t *testing.T) {
	t.Parallel()

	c := DefaultCatalog()
	d, ok := c.Lookup(TrackSymptoms)
	require.True(t, ok)
	d.RequiredSlots[0] = "hijacked"
	d.Keywords[0] = "anything"
	d.Summary.Fields[0].Label = "changed"
	c.All()[0].Questions[0] = "changed"

	want := SymptomTracking()
	got, _ := c.Lookup(TrackSymptoms)
	require.Equal(t, want, got)
}
