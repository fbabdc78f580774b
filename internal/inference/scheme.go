// Package inference turns images into inspection verdicts.
//
// A verdict is produced by an Inferrer (tflite classifier, tflite YOLO
// detector or the placeholder dummy) and interpreted through a
// ClassificationScheme, the versioned class table of the model that produced
// it. Loaded inferrers live in a Registry that is constructed once and passed
// to request handlers.
package inference

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
)

// SchemeKind names a class table.
type SchemeKind string

const (
	SchemeBinary     SchemeKind = "binary"
	SchemeSevenClass SchemeKind = "seven_class"
	SchemeEightClass SchemeKind = "eight_class"
)

// DefaultScheme is used when a model does not declare its class table.
const DefaultScheme = SchemeSevenClass

// Tool buckets tallied by the detector.
const (
	ItemHamer   = "hamer"
	ItemSchaar  = "schaar"
	ItemSleutel = "sleutel"
)

// Tools lists the tool buckets in report order.
var Tools = []string{ItemHamer, ItemSchaar, ItemSleutel}

// ClassInfo describes one output class of a model.
type ClassInfo struct {
	ID           int      `json:"id"`
	Name         string   `json:"name"`
	Label        string   `json:"label"`
	Status       string   `json:"status"`
	Description  string   `json:"description"`
	MissingItems []string `json:"missing_items"`
}

// ClassificationScheme is a class table with a fixed arity.
// Map is total over [0, Arity()).
type ClassificationScheme struct {
	kind    SchemeKind
	classes []ClassInfo
}

// Kind returns the scheme name.
func (s ClassificationScheme) Kind() SchemeKind { return s.kind }

// Arity returns the number of classes.
func (s ClassificationScheme) Arity() int { return len(s.classes) }

// Map returns the class info for a model output id.
func (s ClassificationScheme) Map(classID int) (ClassInfo, error) {
	if classID < 0 || classID >= len(s.classes) {
		return ClassInfo{}, errors.Newf("class id %d out of range for scheme %s (arity %d)", classID, s.kind, len(s.classes)).
			Component("inference").
			Category(errors.CategoryValidation).
			Context("scheme", string(s.kind)).
			Build()
	}
	c := s.classes[classID]
	c.MissingItems = slices.Clone(c.MissingItems)
	return c, nil
}

// LabelClass returns the class id of a label, or -1 when the label is unknown.
func (s ClassificationScheme) LabelClass(label string) int {
	for _, c := range s.classes {
		if c.Label == label {
			return c.ID
		}
	}
	return -1
}

// Resolve finds a class by its label or display name, ignoring case, so that
// "OK", "ok" and "NOK - Hamer weg" all resolve.
func (s ClassificationScheme) Resolve(nameOrLabel string) (ClassInfo, bool) {
	key := strings.TrimSpace(nameOrLabel)
	for _, c := range s.classes {
		if strings.EqualFold(c.Label, key) || strings.EqualFold(c.Name, key) {
			c.MissingItems = slices.Clone(c.MissingItems)
			return c, true
		}
	}
	return ClassInfo{}, false
}

// Classes returns a copy of the class table.
func (s ClassificationScheme) Classes() []ClassInfo {
	out := make([]ClassInfo, len(s.classes))
	for i, c := range s.classes {
		c.MissingItems = slices.Clone(c.MissingItems)
		out[i] = c
	}
	return out
}

var (
	okClass = ClassInfo{ID: 0, Name: "OK", Label: "ok", Status: entities.StatusOK,
		Description: "Werkplek is compleet en correct", MissingItems: []string{}}

	sevenClasses = []ClassInfo{
		okClass,
		{ID: 1, Name: "NOK - Alles weg", Label: "nok_alles_weg", Status: entities.StatusNOK,
			Description: "Alle gereedschappen ontbreken", MissingItems: []string{ItemHamer, ItemSchaar, ItemSleutel}},
		{ID: 2, Name: "NOK - Hamer weg", Label: "nok_hamer_weg", Status: entities.StatusNOK,
			Description: "Hamer ontbreekt", MissingItems: []string{ItemHamer}},
		{ID: 3, Name: "NOK - Schaar weg", Label: "nok_schaar_weg", Status: entities.StatusNOK,
			Description: "Schaar ontbreekt", MissingItems: []string{ItemSchaar}},
		{ID: 4, Name: "NOK - Schaar en sleutel weg", Label: "nok_schaar_sleutel_weg", Status: entities.StatusNOK,
			Description: "Schaar en sleutel ontbreken", MissingItems: []string{ItemSchaar, ItemSleutel}},
		{ID: 5, Name: "NOK - Sleutel weg", Label: "nok_sleutel_weg", Status: entities.StatusNOK,
			Description: "Sleutel ontbreekt", MissingItems: []string{ItemSleutel}},
		{ID: 6, Name: "NOK - Alleen sleutel", Label: "nok_alleen_sleutel", Status: entities.StatusNOK,
			Description: "Alleen sleutel aanwezig, hamer en schaar ontbreken", MissingItems: []string{ItemHamer, ItemSchaar}},
	}

	eightClasses = append(slices.Clone(sevenClasses),
		ClassInfo{ID: 7, Name: "NOK - Alleen schaar", Label: "nok_alleen_schaar", Status: entities.StatusNOK,
			Description: "Alleen schaar aanwezig, hamer en sleutel ontbreken", MissingItems: []string{ItemHamer, ItemSleutel}})

	binaryClasses = []ClassInfo{
		okClass,
		{ID: 1, Name: "NOK", Label: "nok", Status: entities.StatusNOK,
			Description: "Werkplek is niet compleet", MissingItems: []string{}},
	}

	schemes = map[SchemeKind]ClassificationScheme{
		SchemeBinary:     {kind: SchemeBinary, classes: binaryClasses},
		SchemeSevenClass: {kind: SchemeSevenClass, classes: sevenClasses},
		SchemeEightClass: {kind: SchemeEightClass, classes: eightClasses},
	}
)

// SchemeFor returns the class table with the given name. An empty name selects
// DefaultScheme.
func SchemeFor(name string) (ClassificationScheme, error) {
	if name == "" {
		name = string(DefaultScheme)
	}
	s, ok := schemes[SchemeKind(name)]
	if !ok {
		return ClassificationScheme{}, errors.Newf("unknown classification scheme %q", name).
			Component("inference").
			Category(errors.CategoryValidation).
			Build()
	}
	return s, nil
}

// MustScheme is SchemeFor for compile-time constant names.
func MustScheme(kind SchemeKind) ClassificationScheme {
	s, err := SchemeFor(string(kind))
	if err != nil {
		panic(err)
	}
	return s
}

// SchemeKinds lists the supported class tables.
func SchemeKinds() []SchemeKind {
	return []SchemeKind{SchemeBinary, SchemeSevenClass, SchemeEightClass}
}

// DetectorClass maps tool presence to the eight-class table id.
func DetectorClass(hamer, schaar, sleutel bool) int {
	switch {
	case hamer && schaar && sleutel:
		return 0
	case !hamer && !schaar && !sleutel:
		return 1
	case !hamer && schaar && sleutel:
		return 2
	case hamer && !schaar && sleutel:
		return 3
	case hamer && !schaar && !sleutel:
		return 4
	case hamer && schaar && !sleutel:
		return 5
	case !hamer && !schaar && sleutel:
		return 6
	default: // only schaar present
		return 7
	}
}

// Suggestion is a remediation hint for a missing tool.
type Suggestion struct {
	Item   string `json:"item"`
	Action string `json:"action"`
}

var suggestionText = map[string]string{
	ItemHamer:   "Plaats de kunstofhamer terug op de aangewezen positie",
	ItemSchaar:  "Plaats de schaar terug in de gereedschapskist",
	ItemSleutel: "Plaats de sleutel terug op de werkbank",
}

// Suggestions returns one remediation per missing item that has a known action,
// in the order of missing.
func Suggestions(missing []string) []Suggestion {
	out := make([]Suggestion, 0, len(missing))
	for _, item := range missing {
		if action, ok := suggestionText[item]; ok {
			out = append(out, Suggestion{Item: item, Action: action})
		}
	}
	return out
}

// String implements fmt.Stringer.
func (s ClassificationScheme) String() string {
	return fmt.Sprintf("%s(%d)", s.kind, len(s.classes))
}
