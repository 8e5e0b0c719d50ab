package registry

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acetatelabs/acetate/internal/geometry"
	"github.com/acetatelabs/acetate/internal/overlay/textrange"
	"github.com/acetatelabs/acetate/internal/surface"
)

func standaloneReg() *Registration {
	return &Registration{
		Kind:       KindStandalone,
		Standalone: func(cb Callbacks) (*Content, error) { return &Content{Body: "x"}, nil },
	}
}

func newInstance() *Instance {
	return &Instance{
		ID:        NewOverlayID(),
		Wrapper:   NewWrapper(geometry.Rect{Width: 10, Height: 2}, DefaultBaseZIndex),
		Active:    true,
		CreatedAt: time.Now(),
	}
}

func TestAddRegistration_ResolvesDefaults(t *testing.T) {
	r := New()

	id, err := r.AddRegistration(standaloneReg(), Options{})
	require.NoError(t, err)

	reg, ok := r.GetRegistration(id)
	require.True(t, ok)
	require.False(t, reg.Options.Draggable)
	require.True(t, reg.Options.DismissOnOutsideClick)
	require.True(t, reg.Options.DismissOnEscape)
	require.Equal(t, geometry.SideBelow, reg.Options.PreferredSide)
	require.Equal(t, geometry.Point{}, reg.Options.Offset)
	require.Equal(t, DefaultBaseZIndex, reg.Options.BaseZIndex)
}

func TestAddRegistration_CallerOptionsWin(t *testing.T) {
	r := New()
	no := false

	id, err := r.AddRegistration(standaloneReg(), Options{
		Draggable:             true,
		PreferredSide:         geometry.SideRight,
		DismissOnOutsideClick: &no,
		BaseZIndex:            20000,
	})
	require.NoError(t, err)

	reg, _ := r.GetRegistration(id)
	require.True(t, reg.Options.Draggable)
	require.Equal(t, geometry.SideRight, reg.Options.PreferredSide)
	require.False(t, reg.Options.DismissOnOutsideClick)
	require.True(t, reg.Options.DismissOnEscape, "unset option keeps its default")
	require.Equal(t, 20000, reg.Options.BaseZIndex)
}

func TestRegistration_ValidateUnion(t *testing.T) {
	r := New()

	// Text registration without a pattern is rejected.
	_, err := r.AddRegistration(&Registration{
		Kind: KindText,
		Text: func(m *textrange.Match, cb Callbacks) (*Content, error) { return nil, nil },
	}, Options{})
	require.Error(t, err)

	// Mixed factories are rejected.
	reg := standaloneReg()
	reg.Element = func(n surface.Node, cb Callbacks) (*Content, error) { return nil, nil }
	_, err = r.AddRegistration(reg, Options{})
	require.Error(t, err)

	// Unknown kind is rejected.
	_, err = r.AddRegistration(&Registration{Kind: Kind("mystery")}, Options{})
	require.Error(t, err)
}

func TestAddInstance_UnknownRegistration(t *testing.T) {
	r := New()

	inst := newInstance()
	ok := r.AddInstance(RegistrationID("missing"), inst)

	require.False(t, ok)
	require.Equal(t, 1, r.GetMetrics().ErrorCount, "failed add increments the error count")
}

func TestRemoveInstance_Idempotent(t *testing.T) {
	r := New()
	regID, err := r.AddRegistration(standaloneReg(), Options{})
	require.NoError(t, err)

	inst := newInstance()
	cleanups := 0
	inst.SetCleanup(func() { cleanups++ })
	require.True(t, r.AddInstance(regID, inst))

	ok, err := r.RemoveInstance(inst.ID)
	require.True(t, ok)
	require.NoError(t, err)
	ok, err = r.RemoveInstance(inst.ID)
	require.False(t, ok, "second removal returns false")
	require.NoError(t, err)
	require.Equal(t, 1, cleanups, "cleanup runs exactly once")
	require.False(t, inst.Active)
}

func TestRemoveInstance_PanickingCleanup(t *testing.T) {
	r := New()
	regID, _ := r.AddRegistration(standaloneReg(), Options{})

	inst := newInstance()
	inst.SetCleanup(func() { panic("misbehaving content") })
	require.True(t, r.AddInstance(regID, inst))

	ok, err := r.RemoveInstance(inst.ID)
	require.True(t, ok, "removal completes despite the panic")
	require.ErrorContains(t, err, "misbehaving content", "panic surfaces as the returned cleanup error")
	require.Equal(t, 0, r.GetMetrics().Active)
}

func TestRemoveRegistration_Cascades(t *testing.T) {
	r := New()
	regID, _ := r.AddRegistration(standaloneReg(), Options{})

	cleanups := 0
	for i := 0; i < 3; i++ {
		inst := newInstance()
		inst.SetCleanup(func() { cleanups++ })
		require.True(t, r.AddInstance(regID, inst))
	}

	removed, ok := r.RemoveRegistration(regID)
	require.True(t, ok)
	require.Len(t, removed, 3)
	require.Equal(t, 3, cleanups, "each instance's cleanup ran exactly once")
	require.Equal(t, 0, r.GetMetrics().Active)

	_, ok = r.RemoveRegistration(regID)
	require.False(t, ok, "idempotent for unknown ids")
}

func TestMetrics_Lifetimes(t *testing.T) {
	r := New()
	regID, _ := r.AddRegistration(standaloneReg(), Options{})

	inst := newInstance()
	inst.CreatedAt = time.Now().Add(-time.Minute)
	require.True(t, r.AddInstance(regID, inst))
	ok, err := r.RemoveInstance(inst.ID)
	require.True(t, ok)
	require.NoError(t, err)

	m := r.GetMetrics()
	require.Equal(t, 1, m.TotalCreated)
	require.Equal(t, 0, m.Active)
	require.GreaterOrEqual(t, m.AvgLifetime, time.Minute)

	reg, _ := r.GetRegistration(regID)
	require.GreaterOrEqual(t, reg.AvgLifetime(), time.Minute)
	require.Equal(t, 1, reg.Created)
}

func TestMetrics_TimingAggregates(t *testing.T) {
	r := New()

	r.RecordRenderTime(10 * time.Millisecond)
	r.RecordRenderTime(30 * time.Millisecond)
	r.RecordPositionTime(2 * time.Millisecond)

	m := r.GetMetrics()
	require.Equal(t, 20*time.Millisecond, m.AvgRenderTime)
	require.Equal(t, 30*time.Millisecond, m.WorstRenderTime)
	require.Equal(t, 2*time.Millisecond, m.AvgPositionTime)
	require.Equal(t, 2*time.Millisecond, m.WorstPositionTime)
}

func TestRecordError_RingBounded(t *testing.T) {
	r := New()

	for i := 0; i < errorRingCapacity+10; i++ {
		r.RecordError(fmt.Sprintf("error %d", i), "")
	}

	m := r.GetMetrics()
	require.Equal(t, errorRingCapacity+10, m.ErrorCount)
	require.Len(t, m.RecentErrors, errorRingCapacity)
	require.Equal(t, "error 10", m.RecentErrors[0].Message, "oldest entries are evicted")
}

func TestCleanup_SweepsDetachedWrappers(t *testing.T) {
	r := New()
	regID, _ := r.AddRegistration(standaloneReg(), Options{})

	kept := newInstance()
	require.True(t, r.AddInstance(regID, kept))

	gone := newInstance()
	require.True(t, r.AddInstance(regID, gone))
	gone.Wrapper.Detach()

	swept := r.Cleanup()
	require.Len(t, swept, 1)
	require.Equal(t, gone.ID, swept[0].ID)

	_, ok := r.Get(kept.ID)
	require.True(t, ok)
}

func TestCleanup_SweepsExpiredInactive(t *testing.T) {
	r := New()
	r.SetRetention(time.Minute)
	regID, _ := r.AddRegistration(standaloneReg(), Options{})

	old := newInstance()
	old.Active = false
	old.CreatedAt = time.Now().Add(-2 * time.Minute)
	require.True(t, r.AddInstance(regID, old))

	fresh := newInstance()
	fresh.Active = false
	require.True(t, r.AddInstance(regID, fresh))

	swept := r.Cleanup()
	require.Len(t, swept, 1)
	require.Equal(t, old.ID, swept[0].ID)
}

func TestGetDebugInfo_MemoryEstimate(t *testing.T) {
	r := New()
	regID, _ := r.AddRegistration(standaloneReg(), Options{})
	require.True(t, r.AddInstance(regID, newInstance()))

	info := r.GetDebugInfo()
	require.Equal(t, 1, info.Registrations)
	require.Equal(t, 1, info.Instances)
	require.Equal(t, int64(instanceEstimateBytes+registrationEstimateBytes), info.MemoryEstimateBytes)
}

func TestDestroy_RemovesEverything(t *testing.T) {
	r := New()
	regID, _ := r.AddRegistration(standaloneReg(), Options{})
	inst := newInstance()
	require.True(t, r.AddInstance(regID, inst))

	removed := r.Destroy()
	require.Len(t, removed, 1)
	require.Equal(t, 0, r.GetDebugInfo().Registrations)
	require.Equal(t, 0, r.GetDebugInfo().Instances)
}
