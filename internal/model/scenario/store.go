package scenario

// Store exposes the scenario catalog.
type Store interface {
	List() []Scenario
	FindByID(id string) (Scenario, bool)
	IDs() []string
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Scenario
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied scenarios.
func NewMemoryStore(items []Scenario) *MemoryStore {
	return &MemoryStore{items: append([]Scenario(nil), items...)}
}

// List returns the catalog in declaration order.
func (s *MemoryStore) List() []Scenario {
	return append([]Scenario(nil), s.items...)
}

// FindByID looks up a scenario by tag.
func (s *MemoryStore) FindByID(id string) (Scenario, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Scenario{}, false
}

// IDs returns the allowed scenario tags.
func (s *MemoryStore) IDs() []string {
	ids := make([]string, 0, len(s.items))
	for _, item := range s.items {
		ids = append(ids, item.ID)
	}
	return ids
}
