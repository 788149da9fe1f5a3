// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package openalex

import (
	"fmt"
	"strings"
	"unicode"
)

const conceptURLPrefix = "https://openalex.org/"

// Concept is a named OpenAlex concept.
type Concept struct {
	Name string `json:"name" yaml:"name"`
	ID   string `json:"id" yaml:"id"`
}

// Catalog lists the top-level OpenAlex concepts users can select by name.
var Catalog = []Concept{
	{Name: "Materials science", ID: "C192562407"},
	{Name: "Chemistry", ID: "C185592680"},
	{Name: "Physics", ID: "C121332964"},
	{Name: "Engineering", ID: "C127413603"},
	{Name: "Computer science", ID: "C41008148"},
	{Name: "Mathematics", ID: "C33923547"},
	{Name: "Environmental science", ID: "C39432304"},
	{Name: "Biology", ID: "C86803240"},
	{Name: "Medicine", ID: "C71924100"},
	{Name: "Geology", ID: "C127313418"},
	{Name: "Economics", ID: "C162324750"},
	{Name: "Psychology", ID: "C15744967"},
}

// NormalizeConceptID reduces "https://openalex.org/C123", "c123" and
// "C123" to "C123". Other input is returned trimmed and unchanged.
func NormalizeConceptID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, conceptURLPrefix)
	if isConceptID(id) {
		return "C" + id[1:]
	}
	return id
}

func isConceptID(s string) bool {
	if len(s) < 2 || (s[0] != 'C' && s[0] != 'c') {
		return false
	}
	for _, r := range s[1:] {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Lookup resolves a concept ID or a case-insensitive catalog name. IDs not
// in the catalog are accepted as-is with an empty name.
func Lookup(nameOrID string) (Concept, error) {
	id := NormalizeConceptID(nameOrID)
	if isConceptID(id) {
		for _, c := range Catalog {
			if c.ID == id {
				return c, nil
			}
		}
		return Concept{ID: id}, nil
	}
	for _, c := range Catalog {
		if strings.EqualFold(c.Name, strings.TrimSpace(nameOrID)) {
			return c, nil
		}
	}
	return Concept{}, fmt.Errorf("unknown concept %q: use an OpenAlex concept ID or one of the catalog names", nameOrID)
}

// Resolve looks up every entry and returns their IDs in input order,
// dropping duplicates.
func Resolve(inputs []string) ([]string, error) {
	seen := make(map[string]bool, len(inputs))
	var ids []string
	for _, in := range inputs {
		if strings.TrimSpace(in) == "" {
			continue
		}
		c, err := Lookup(in)
		if err != nil {
			return nil, err
		}
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		ids = append(ids, c.ID)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no concepts selected")
	}
	return ids, nil
}
