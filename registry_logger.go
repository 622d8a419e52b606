package corelog

import "sync"

// loggerRegistry owns every LoggerDescriptor and the metadata descriptors
// call sites register against, assigning the small integer IDs the wire
// format carries instead of raw pointers (see pkg/wire.Header).
type loggerRegistry struct {
	mu sync.Mutex

	nextLoggerID uint32
	loggers      map[uint32]*LoggerDescriptor
	byName       map[string]uint32

	nextMetadataID uint32
	metadata       map[uint32]RecordMetadata
	metadataByKey  map[RecordMetadata]uint32
}

func newLoggerRegistry() *loggerRegistry {
	return &loggerRegistry{
		loggers:  make(map[uint32]*LoggerDescriptor),
		byName:   make(map[string]uint32),
		metadata: make(map[uint32]RecordMetadata),
	}
}

// registerLogger assigns a new ID to desc (overwriting desc.ID) and stores
// it, or updates the existing entry in place if a logger with that name was
// already registered.
func (r *loggerRegistry) registerLogger(desc *LoggerDescriptor) *LoggerDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byName[desc.Name]; ok {
		desc.ID = id
		r.loggers[id] = desc
		return desc
	}

	r.nextLoggerID++
	desc.ID = r.nextLoggerID
	r.loggers[desc.ID] = desc
	r.byName[desc.Name] = desc.ID
	return desc
}

func (r *loggerRegistry) lookupLogger(id uint32) (*LoggerDescriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.loggers[id]
	return d, ok
}

// registerMetadata assigns an ID to meta and stores it, returning the ID to
// stamp into every record built from this call site. Registering an equal
// meta again returns the ID it was first given.
func (r *loggerRegistry) registerMetadata(meta RecordMetadata) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.metadataByKey == nil {
		r.metadataByKey = make(map[RecordMetadata]uint32)
	}
	if id, ok := r.metadataByKey[meta]; ok {
		return id
	}
	r.nextMetadataID++
	id := r.nextMetadataID
	r.metadata[id] = meta
	r.metadataByKey[meta] = id
	return id
}

func (r *loggerRegistry) lookupMetadata(id uint32) (RecordMetadata, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.metadata[id]
	return m, ok
}

// invalidateLogger marks the logger registered under name invalid by user
// request. lookupLogger keeps resolving it — so records already queued
// against it still format correctly — until the backend's cleanup sweep
// actually removes it via removeLogger.
func (r *loggerRegistry) invalidateLogger(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byName[name]
	if !ok {
		return
	}
	if d, ok := r.loggers[id]; ok {
		d.invalid = true
	}
}

// invalidatedLoggerIDs returns the IDs of every logger currently marked
// invalid and not yet removed.
func (r *loggerRegistry) invalidatedLoggerIDs() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uint32
	for id, d := range r.loggers {
		if d.invalid {
			out = append(out, id)
		}
	}
	return out
}

// removeLogger permanently deletes the logger descriptor for id. Callers
// are expected to only remove a logger once it is both invalidated and no
// longer referenced by any in-flight queue or transit buffer.
func (r *loggerRegistry) removeLogger(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.loggers[id]
	if !ok {
		return
	}
	delete(r.loggers, id)
	delete(r.byName, d.Name)
}
