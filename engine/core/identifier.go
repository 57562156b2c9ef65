package core

import "fmt"

// Identifiers hands out small integer ids, reusing released slots first.
type Identifiers struct {
	owners []interface{}
}

func NewIdentifiers(capacity int) *Identifiers {
	return &Identifiers{owners: make([]interface{}, 0, capacity)}
}

func (ids *Identifiers) Acquire(owner interface{}) int {
	for i, o := range ids.owners {
		// Existing free spot. Take it.
		if o == nil {
			ids.owners[i] = owner
			return i
		}
	}
	ids.owners = append(ids.owners, owner)
	return len(ids.owners) - 1
}

func (ids *Identifiers) Release(id int) error {
	if id < 0 || id >= len(ids.owners) {
		return fmt.Errorf("identifier release: id '%d' out of range (max=%d). Nothing was done", id, len(ids.owners))
	}
	ids.owners[id] = nil
	return nil
}

// Owner returns nil for free or unknown ids.
func (ids *Identifiers) Owner(id int) interface{} {
	if id < 0 || id >= len(ids.owners) {
		return nil
	}
	return ids.owners[id]
}
