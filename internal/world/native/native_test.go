package native

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/morespeeders/extension/pkg/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	Name string
	Args []any
}

type fakeHost struct {
	mu      sync.Mutex
	calls   []call
	results map[string]string
	fail    map[string]bool
}

func newFakeHost() *fakeHost {
	return &fakeHost{results: map[string]string{}, fail: map[string]bool{}}
}

func (h *fakeHost) Invoke(name string, args json.RawMessage) (json.RawMessage, error) {
	var decoded []any
	if err := json.Unmarshal(args, &decoded); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, call{Name: name, Args: decoded})
	if h.fail[name] {
		return nil, errors.New("host said no")
	}
	if r, ok := h.results[name]; ok {
		return json.RawMessage(r), nil
	}
	return nil, nil
}

func (h *fakeHost) named(name string) []call {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []call
	for _, c := range h.calls {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCall_NoInvoker(t *testing.T) {
	a := New(nil, quietLogger())
	assert.False(t, a.Ready())

	_, err := a.Call(DoesEntityExist, 1)
	assert.ErrorIs(t, err, ErrNoInvoker)
	assert.False(t, a.Exists(1))
	_, ok := a.SubjectPosition()
	assert.False(t, ok)
}

func TestSetInvokerLater(t *testing.T) {
	host := newFakeHost()
	host.results[DoesEntityExist] = "true"
	a := New(nil, quietLogger())

	a.SetInvoker(host)
	assert.True(t, a.Ready())
	assert.True(t, a.Exists(7))
}

func TestCall_WrapsHostErrors(t *testing.T) {
	host := newFakeHost()
	host.fail[ClearPedTasks] = true
	a := New(host, quietLogger())

	_, err := a.Call(ClearPedTasks, 3)
	assert.ErrorIs(t, err, world.ErrNativeFailed)
	assert.Contains(t, err.Error(), "host said no")
}

func TestCall_EncodesArgsAsArray(t *testing.T) {
	host := newFakeHost()
	a := New(host, quietLogger())

	a.DriveToCoord(4, 5, world.DriveTask{
		Destination: world.Vector3{X: 1, Y: 2, Z: 3},
		Speed:       53.6448,
		Style:       world.DrivingStyleHighway,
		StopRange:   10,
	})

	calls := host.named(TaskDriveToCoord)
	require.Len(t, calls, 1)
	assert.Equal(t, []any{4.0, 5.0, []any{1.0, 2.0, 3.0}, 53.6448, 786603.0, 10.0}, calls[0].Args)
}

func TestQueries(t *testing.T) {
	host := newFakeHost()
	host.results[PlayerPosition] = "[10, 20, 30]"
	host.results[PlayerVehicle] = "42"
	host.results[IsVehicleSirenOn] = "true"
	host.results[GetEntityForwardVector] = "[0, 1, 0]"
	host.results[GetClosestVehicle] = "0"
	host.results[IsPedInVehicle] = "false"
	a := New(host, quietLogger())

	ref, ok := a.SubjectPosition()
	require.True(t, ok)
	assert.Equal(t, world.Vector3{X: 10, Y: 20, Z: 30}, ref)

	v, ok := a.SubjectVehicle()
	require.True(t, ok)
	assert.Equal(t, world.Handle(42), v)
	assert.True(t, a.IsSirenOn(v))
	assert.Equal(t, world.Vector3{Y: 1}, a.ForwardVector(v))

	_, found := a.ClosestVehicle(world.Vector3{}, 5)
	assert.False(t, found, "zero handle means nothing nearby")
	assert.False(t, a.IsInVehicle(1, 2))
}

func TestSubjectVehicle_OnFoot(t *testing.T) {
	host := newFakeHost()
	host.results[PlayerVehicle] = "null"
	a := New(host, quietLogger())

	_, ok := a.SubjectVehicle()
	assert.False(t, ok)
}

func TestMalformedResultIsFailure(t *testing.T) {
	host := newFakeHost()
	host.results[GetEntityCoords] = `"nope"`
	host.results[CreatePed] = `{}`
	a := New(host, quietLogger())

	_, ok := a.Position(1)
	assert.False(t, ok)
	_, ok = a.CreatePed("m", world.Vector3{})
	assert.False(t, ok)
}

func TestExists_InvalidHandleSkipsHost(t *testing.T) {
	host := newFakeHost()
	a := New(host, quietLogger())

	assert.False(t, a.Exists(0))
	assert.Empty(t, host.named(DoesEntityExist))
}

func TestNextPositionOnStreet_FallsBackToInput(t *testing.T) {
	host := newFakeHost()
	host.fail[NextPositionOnStreet] = true
	a := New(host, quietLogger())

	p := world.Vector3{X: 5, Y: 6, Z: 7}
	assert.Equal(t, p, a.NextPositionOnStreet(p))

	host.fail[NextPositionOnStreet] = false
	host.results[NextPositionOnStreet] = "[5, 8, 7]"
	assert.Equal(t, world.Vector3{X: 5, Y: 8, Z: 7}, a.NextPositionOnStreet(p))
}

func TestRequestModel_LoadsAfterPolling(t *testing.T) {
	host := newFakeHost()
	a := New(host, quietLogger())
	polls := 0
	a.sleep = func(time.Duration) {
		polls++
		if polls == 3 {
			host.mu.Lock()
			host.results[HasModelLoaded] = "true"
			host.mu.Unlock()
		}
	}

	assert.True(t, a.RequestModel("adder", time.Second))
	assert.Len(t, host.named(RequestModel), 1)
	assert.Len(t, host.named(HasModelLoaded), 4)
}

func TestRequestModel_TimesOut(t *testing.T) {
	host := newFakeHost()
	host.results[HasModelLoaded] = "false"
	a := New(host, quietLogger())

	clock := time.Unix(0, 0)
	a.now = func() time.Time { return clock }
	a.sleep = func(d time.Duration) { clock = clock.Add(d) }

	assert.False(t, a.RequestModel("adder", 100*time.Millisecond))
	assert.Len(t, host.named(HasModelLoaded), 11)
}

func TestRequestModel_RequestFails(t *testing.T) {
	host := newFakeHost()
	host.fail[RequestModel] = true
	a := New(host, quietLogger())

	assert.False(t, a.RequestModel("adder", time.Second))
	assert.Empty(t, host.named(HasModelLoaded))
}

func TestLifecycleNatives(t *testing.T) {
	host := newFakeHost()
	host.results[CreateVehicle] = "11"
	a := New(host, quietLogger())

	v, ok := a.CreateVehicle("adder", world.Vector3{X: 1}, 90)
	require.True(t, ok)
	assert.Equal(t, world.Handle(11), v)

	a.SetDriveable(v, true)
	a.SetMissionEntity(v, false)
	a.Delete(v)
	a.Delete(0)

	assert.Equal(t, []any{11.0, false}, host.named(SetVehicleDriveable)[0].Args)
	assert.Equal(t, []any{11.0, false, true}, host.named(SetEntityAsMissionEntity)[0].Args)
	assert.Len(t, host.named(DeleteEntity), 1)
}

func TestPositionReads_HostFailure(t *testing.T) {
	host := newFakeHost()
	host.fail[PlayerPosition] = true
	host.fail[GetEntityCoords] = true
	a := New(host, quietLogger())

	_, ok := a.SubjectPosition()
	assert.False(t, ok, "a failed read is not the origin")
	_, ok = a.Position(5)
	assert.False(t, ok)
}
