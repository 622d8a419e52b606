package corelog

import "sync"

// sinkRegistry tracks registered Sinks and the Decoders usable by their
// records, replacing galog's per-backend BackendQueue bookkeeping with
// plain maps the single backend worker consults directly.
type sinkRegistry struct {
	mu sync.Mutex

	sinks   []sinkEntry
	byID    map[string]int

	nextDecoderID uint32
	decoders      map[uint32]Decoder
}

func newSinkRegistry() *sinkRegistry {
	return &sinkRegistry{
		byID:     make(map[string]int),
		decoders: make(map[uint32]Decoder),
	}
}

// register adds sink under id, replacing any prior sink registered under
// the same id.
func (r *sinkRegistry) register(id string, sink Sink) error {
	if sink == nil {
		return ConfigError("nil sink registered under id %q", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if idx, ok := r.byID[id]; ok {
		r.sinks[idx] = sinkEntry{id: id, sink: sink}
		return nil
	}
	r.byID[id] = len(r.sinks)
	r.sinks = append(r.sinks, sinkEntry{id: id, sink: sink})
	return nil
}

// unregister removes the sink registered under id, if any.
func (r *sinkRegistry) unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.byID[id]
	if !ok {
		return
	}
	r.sinks = append(r.sinks[:idx], r.sinks[idx+1:]...)
	delete(r.byID, id)
	for i := idx; i < len(r.sinks); i++ {
		r.byID[r.sinks[i].id] = i
	}
}

func (r *sinkRegistry) snapshot() []Sink {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sink, 0, len(r.sinks))
	for _, e := range r.sinks {
		out = append(out, e.sink)
	}
	return out
}

// registerDecoder assigns a new ID to d and stores it, returning the ID to
// stamp into every record whose payload d can decode.
func (r *sinkRegistry) registerDecoder(d Decoder) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextDecoderID++
	id := r.nextDecoderID
	r.decoders[id] = d
	return id
}

func (r *sinkRegistry) lookupDecoder(id uint32) (Decoder, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.decoders[id]
	return d, ok
}
