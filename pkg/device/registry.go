package device

import "sort"

// Registry holds the validated set of device resources a job may use.
// Construction rejects nil solver handles and duplicate ids up front, so a
// scheduler never discovers a bad record mid-flight.
type Registry struct {
	byID map[ID]Resource
	ids  []ID
}

// NewRegistry validates the resource records and indexes them by id.
func NewRegistry(resources []Resource) (*Registry, error) {
	r := &Registry{byID: make(map[ID]Resource, len(resources))}
	for i, res := range resources {
		if res.Handle == nil {
			return nil, &ConfigError{Index: i, ID: res.ID, Reason: "nil solver handle"}
		}
		if res.Handle.Device() != res.ID {
			return nil, &ConfigError{Index: i, ID: res.ID, Reason: "handle bound to a different device"}
		}
		if _, dup := r.byID[res.ID]; dup {
			return nil, &ConfigError{Index: i, ID: res.ID, Reason: "duplicate device id"}
		}
		r.byID[res.ID] = res
		r.ids = append(r.ids, res.ID)
	}
	sort.Slice(r.ids, func(i, j int) bool { return r.ids[i] < r.ids[j] })
	return r, nil
}

// Handle returns the solver context for id.
func (r *Registry) Handle(id ID) (Context, bool) {
	res, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return res.Handle, true
}

// Resource returns the full record for id.
func (r *Registry) Resource(id ID) (Resource, bool) {
	res, ok := r.byID[id]
	return res, ok
}

// IDs returns the registered ids in ascending order.
func (r *Registry) IDs() []ID {
	out := make([]ID, len(r.ids))
	copy(out, r.ids)
	return out
}

// Resources returns the records in ascending id order.
func (r *Registry) Resources() []Resource {
	out := make([]Resource, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.byID[id])
	}
	return out
}

// Len returns the number of registered devices.
func (r *Registry) Len() int { return len(r.ids) }
