package registry

import (
	"sync"
	"time"

	"github.com/acetatelabs/acetate/internal/log"
)

// DefaultRetention is how long an inactive instance survives before the
// cleanup sweep collects it.
const DefaultRetention = 30 * time.Minute

// errorRingCapacity bounds the recent-error log.
const errorRingCapacity = 50

// Coarse per-record memory estimates. Diagnostic only, never used for
// admission control.
const (
	instanceEstimateBytes     = 2048
	registrationEstimateBytes = 512
)

// ErrorRecord is one entry in the bounded error log.
type ErrorRecord struct {
	Message    string
	Timestamp  time.Time
	InstanceID OverlayID
}

// Metrics is a read-only snapshot of engine-wide counters.
type Metrics struct {
	TotalCreated      int
	Active            int
	AvgLifetime       time.Duration
	AvgRenderTime     time.Duration
	WorstRenderTime   time.Duration
	AvgPositionTime   time.Duration
	WorstPositionTime time.Duration
	ErrorCount        int
	RecentErrors      []ErrorRecord
}

// DebugInfo is a read-only diagnostic snapshot.
type DebugInfo struct {
	Registrations       int
	Instances           int
	MemoryEstimateBytes int64
	Metrics             Metrics
}

// Registry owns all registrations and instances for one manager. It is
// constructed fresh per manager and torn down on Destroy, never shared.
type Registry struct {
	mu            sync.Mutex
	registrations map[RegistrationID]*Registration
	instances     map[OverlayID]*Instance
	retention     time.Duration

	totalCreated  int
	totalRemoved  int
	totalLifetime time.Duration

	renderCount   int
	renderTotal   time.Duration
	renderWorst   time.Duration
	positionCount int
	positionTotal time.Duration
	positionWorst time.Duration

	errorCount int
	errors     []ErrorRecord
}

// New creates an empty registry with the default retention window.
func New() *Registry {
	return &Registry{
		registrations: make(map[RegistrationID]*Registration),
		instances:     make(map[OverlayID]*Instance),
		retention:     DefaultRetention,
	}
}

// SetRetention overrides the inactive-instance retention window.
func (r *Registry) SetRetention(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d > 0 {
		r.retention = d
	}
}

// AddRegistration validates the registration's factory union, merges its
// options over defaults, assigns an id and stores it. The error is the
// only failure mode; bookkeeping itself always succeeds.
func (r *Registry) AddRegistration(reg *Registration, opts Options) (RegistrationID, error) {
	if err := reg.Validate(); err != nil {
		return "", err
	}

	reg.ID = NewRegistrationID()
	reg.Options = opts.Resolve()
	reg.Instances = make(map[OverlayID]*Instance)
	reg.CreatedAt = time.Now()

	r.mu.Lock()
	r.registrations[reg.ID] = reg
	r.mu.Unlock()

	log.Debug(log.CatRegistry, "registration added", "id", reg.ID, "kind", reg.Kind)
	return reg.ID, nil
}

// GetRegistration resolves a registration by id.
func (r *Registry) GetRegistration(id RegistrationID) (*Registration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.registrations[id]
	return reg, ok
}

// Registrations returns a snapshot of all registrations.
func (r *Registry) Registrations() []*Registration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Registration, 0, len(r.registrations))
	for _, reg := range r.registrations {
		out = append(out, reg)
	}
	return out
}

// RemoveRegistration removes the registration and cascades to every live
// instance spawned from it. Idempotent: false for unknown ids.
// Returns the removed instances so the caller can release their resources.
func (r *Registry) RemoveRegistration(id RegistrationID) ([]*Instance, bool) {
	r.mu.Lock()
	reg, ok := r.registrations[id]
	if !ok {
		r.mu.Unlock()
		return nil, false
	}
	ids := make([]OverlayID, 0, len(reg.Instances))
	for iid := range reg.Instances {
		ids = append(ids, iid)
	}
	r.mu.Unlock()

	removed := make([]*Instance, 0, len(ids))
	for _, iid := range ids {
		inst, ok, err := r.removeInstance(iid)
		if !ok {
			continue
		}
		if err != nil {
			r.recordCleanupFailure(iid, err)
		}
		removed = append(removed, inst)
	}

	r.mu.Lock()
	delete(r.registrations, id)
	r.mu.Unlock()

	log.Debug(log.CatRegistry, "registration removed", "id", id, "cascaded", len(removed))
	return removed, true
}

// AddInstance stores the instance under its registration. This is the only
// validation point: it fails when the registration no longer exists, and
// callers must not register instances after the owning registration is
// gone.
func (r *Registry) AddInstance(regID RegistrationID, inst *Instance) bool {
	r.mu.Lock()
	reg, ok := r.registrations[regID]
	if !ok {
		r.mu.Unlock()
		r.RecordError("instance added for unknown registration "+regID.String(), inst.ID)
		return false
	}

	inst.RegistrationID = regID
	inst.Options = &reg.Options
	reg.Instances[inst.ID] = inst
	r.instances[inst.ID] = inst
	reg.Created++
	r.totalCreated++
	r.mu.Unlock()
	return true
}

// Get resolves an instance by id.
func (r *Registry) Get(id OverlayID) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[id]
	return inst, ok
}

// ActiveInstances returns all instances still marked active.
func (r *Registry) ActiveInstances() []*Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		if inst.Active {
			out = append(out, inst)
		}
	}
	return out
}

// RemoveInstance runs the instance's cleanup at most once, removes it from
// both the global index and its registration's map, and updates running
// lifetime averages. Idempotent: the second call returns false. A failing
// cleanup is returned to the caller while removal still completes; the
// caller owns recording it.
func (r *Registry) RemoveInstance(id OverlayID) (bool, error) {
	_, ok, err := r.removeInstance(id)
	return ok, err
}

func (r *Registry) removeInstance(id OverlayID) (*Instance, bool, error) {
	r.mu.Lock()
	inst, ok := r.instances[id]
	if !ok {
		r.mu.Unlock()
		return nil, false, nil
	}
	delete(r.instances, id)
	lifetime := time.Since(inst.CreatedAt)
	r.totalRemoved++
	r.totalLifetime += lifetime
	if reg, ok := r.registrations[inst.RegistrationID]; ok {
		delete(reg.Instances, inst.ID)
		reg.removed++
		reg.totalLifetime += lifetime
	}
	r.mu.Unlock()

	inst.Active = false
	return inst, true, inst.RunCleanup()
}

// recordCleanupFailure is the registry-internal funnel for cleanup errors
// raised during cascades, sweeps and destruction, where no caller can
// receive them.
func (r *Registry) recordCleanupFailure(id OverlayID, err error) {
	log.ErrorErr(log.CatRegistry, "instance cleanup failed", err, "id", id)
	r.RecordError("cleanup failed: "+err.Error(), id)
}

// RecordError appends to the bounded error log and bumps the error count.
func (r *Registry) RecordError(msg string, instanceID OverlayID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errorCount++
	r.errors = append(r.errors, ErrorRecord{
		Message:    msg,
		Timestamp:  time.Now(),
		InstanceID: instanceID,
	})
	if len(r.errors) > errorRingCapacity {
		r.errors = r.errors[len(r.errors)-errorRingCapacity:]
	}
}

// RecordRenderTime folds one render duration into the aggregates.
func (r *Registry) RecordRenderTime(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderCount++
	r.renderTotal += d
	if d > r.renderWorst {
		r.renderWorst = d
	}
}

// RecordPositionTime folds one positioning duration into the aggregates.
func (r *Registry) RecordPositionTime(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positionCount++
	r.positionTotal += d
	if d > r.positionWorst {
		r.positionWorst = d
	}
}

// GetMetrics returns a read-only snapshot of the counters.
func (r *Registry) GetMetrics() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := Metrics{
		TotalCreated:      r.totalCreated,
		Active:            len(r.instances),
		WorstRenderTime:   r.renderWorst,
		WorstPositionTime: r.positionWorst,
		ErrorCount:        r.errorCount,
		RecentErrors:      append([]ErrorRecord(nil), r.errors...),
	}
	if r.totalRemoved > 0 {
		m.AvgLifetime = r.totalLifetime / time.Duration(r.totalRemoved)
	}
	if r.renderCount > 0 {
		m.AvgRenderTime = r.renderTotal / time.Duration(r.renderCount)
	}
	if r.positionCount > 0 {
		m.AvgPositionTime = r.positionTotal / time.Duration(r.positionCount)
	}
	return m
}

// GetDebugInfo returns a diagnostic snapshot including the coarse memory
// estimate.
func (r *Registry) GetDebugInfo() DebugInfo {
	m := r.GetMetrics()
	r.mu.Lock()
	info := DebugInfo{
		Registrations: len(r.registrations),
		Instances:     len(r.instances),
		MemoryEstimateBytes: int64(len(r.instances))*instanceEstimateBytes +
			int64(len(r.registrations))*registrationEstimateBytes,
	}
	r.mu.Unlock()
	info.Metrics = m
	return info
}

// Cleanup sweeps instances whose wrapper left the surface, or that are
// inactive and older than the retention window. A hygiene pass, not
// required for correctness. Returns the swept instances.
func (r *Registry) Cleanup() []*Instance {
	r.mu.Lock()
	var stale []OverlayID
	now := time.Now()
	for id, inst := range r.instances {
		detached := inst.Wrapper != nil && !inst.Wrapper.Attached()
		expired := !inst.Active && now.Sub(inst.CreatedAt) > r.retention
		if detached || expired {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()

	swept := make([]*Instance, 0, len(stale))
	for _, id := range stale {
		inst, ok, err := r.removeInstance(id)
		if !ok {
			continue
		}
		if err != nil {
			r.recordCleanupFailure(id, err)
		}
		swept = append(swept, inst)
	}
	if len(swept) > 0 {
		log.Debug(log.CatRegistry, "cleanup sweep", "removed", len(swept))
	}
	return swept
}

// Destroy removes every registration and instance. Metrics reset with the
// registry itself; the engine constructs a fresh one per manager.
func (r *Registry) Destroy() []*Instance {
	r.mu.Lock()
	regIDs := make([]RegistrationID, 0, len(r.registrations))
	for id := range r.registrations {
		regIDs = append(regIDs, id)
	}
	r.mu.Unlock()

	var removed []*Instance
	for _, id := range regIDs {
		insts, _ := r.RemoveRegistration(id)
		removed = append(removed, insts...)
	}

	// Orphans with no surviving registration still get cleaned up.
	r.mu.Lock()
	orphanIDs := make([]OverlayID, 0, len(r.instances))
	for id := range r.instances {
		orphanIDs = append(orphanIDs, id)
	}
	r.mu.Unlock()
	for _, id := range orphanIDs {
		inst, ok, err := r.removeInstance(id)
		if !ok {
			continue
		}
		if err != nil {
			r.recordCleanupFailure(id, err)
		}
		removed = append(removed, inst)
	}
	return removed
}
