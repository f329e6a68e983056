package codes

import (
	"strconv"

	"chartindex/table"
)

// UnknownCategory is the category of a lab item missing from d_labitems.
const UnknownCategory = "Unknown Category"

type labItem struct {
	label    string
	category string
	fluid    string
}

// LabItems maps lab item ids to their label and category.
type LabItems struct {
	items map[int64]labItem
}

// NewLabItems builds the dictionary from d_labitems rows. A nil table yields
// an empty dictionary.
func NewLabItems(t *table.Table) *LabItems {
	li := &LabItems{items: make(map[int64]labItem, t.Len())}
	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		id, ok := r.ID("itemid")
		if !ok {
			continue
		}
		li.items[id] = labItem{label: r.Str("label"), category: r.Str("category"), fluid: r.Str("fluid")}
	}
	return li
}

// Label returns the test label, or "Item <id>".
func (li *LabItems) Label(itemID int64) string {
	if li != nil {
		if it, ok := li.items[itemID]; ok && it.label != "" {
			return it.label
		}
	}
	return "Item " + strconv.FormatInt(itemID, 10)
}

// Category returns the item category, or UnknownCategory.
func (li *LabItems) Category(itemID int64) string {
	if li != nil {
		if it, ok := li.items[itemID]; ok && it.category != "" {
			return it.category
		}
	}
	return UnknownCategory
}

// Fluid returns the specimen fluid, or "".
func (li *LabItems) Fluid(itemID int64) string {
	if li == nil {
		return ""
	}
	return li.items[itemID].fluid
}

// Len returns the number of known items.
func (li *LabItems) Len() int {
	if li == nil {
		return 0
	}
	return len(li.items)
}
