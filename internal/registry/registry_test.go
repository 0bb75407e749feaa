package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/cjeanneret/iriscam/internal/events"
	"github.com/cjeanneret/iriscam/internal/lens"
)

// recordingTransport records channel registrations.
type recordingTransport struct {
	handlers map[string]events.StreamHandler
	order    []string
	failOn   string
}

func (t *recordingTransport) SetStreamHandler(channel string, h events.StreamHandler) error {
	if channel == t.failOn {
		return errors.New("channel rejected")
	}
	if t.handlers == nil {
		t.handlers = make(map[string]events.StreamHandler)
	}
	t.handlers[channel] = h
	t.order = append(t.order, channel)
	return nil
}

// recordingSink records delivered states and how often it was opened and
// closed.
type recordingSink struct {
	mu      sync.Mutex
	got     []string
	opened  int
	closed  int
	openErr error
}

func (s *recordingSink) Deliver(p events.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, p.State())
}

func (s *recordingSink) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return s.openErr
	}
	s.opened++
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *recordingSink) states() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.got...)
}

func equal(got []string, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func stubDevices() DeviceSource {
	return DeviceSourceFunc(func() []lens.Descriptor {
		return []lens.Descriptor{
			{ID: "back", Name: "Back Cam", Position: lens.Back, DeviceType: lens.WideAngle},
			{ID: "front", Name: "Front Cam", Position: lens.Front, DeviceType: lens.WideAngle},
		}
	})
}

func TestAttach_RegistersBothChannels(t *testing.T) {
	r := New(stubDevices())
	tr := &recordingTransport{}

	if err := r.Attach(tr); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	if len(tr.order) != 2 || tr.order[0] != ChannelState || tr.order[1] != ChannelFocusExposure {
		t.Errorf("order = %v, want [%s %s]", tr.order, ChannelState, ChannelFocusExposure)
	}

	state := &recordingSink{}
	if err := tr.handlers[ChannelState].Listen(nil, state); err != nil {
		t.Fatalf("Listen state: %v", err)
	}
	fe := &recordingSink{}
	if err := tr.handlers[ChannelFocusExposure].Listen(nil, fe); err != nil {
		t.Fatalf("Listen focus_exposure: %v", err)
	}
	r.Lifecycle().Emit(events.LifecycleRunning, nil)
	r.FocusExposure().Emit(events.FocusLocked)

	if got := state.states(); !equal(got, "disposed", "running") {
		t.Errorf("state channel = %v, want [disposed running]", got)
	}
	if got := fe.states(); !equal(got, "unknown", "focusLocked") {
		t.Errorf("focus/exposure channel = %v, want [unknown focusLocked]", got)
	}
}

func TestAttach_PropagatesFailure(t *testing.T) {
	r := New(nil)
	tr := &recordingTransport{failOn: ChannelFocusExposure}

	err := r.Attach(tr)
	if !errors.Is(err, ErrAttach) {
		t.Fatalf("err = %v, want ErrAttach", err)
	}
	if len(tr.order) != 1 {
		t.Errorf("registered %d channels before failing, want 1", len(tr.order))
	}
}

func TestHandler_Lookup(t *testing.T) {
	r := New(nil)

	if h, err := r.Handler(ChannelState); err != nil || h == nil {
		t.Errorf("Handler(state) = %v, %v", h, err)
	}
	if _, err := r.Handler("iris_camera/orientation"); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("err = %v, want ErrUnknownChannel", err)
	}
}

func TestListAvailableLenses_ExcludesFront(t *testing.T) {
	r := New(stubDevices())

	lenses := r.ListAvailableLenses(false)
	if len(lenses) != 1 || lenses[0].ID != "back" {
		t.Errorf("lenses = %+v, want only back", lenses)
	}
}

func TestListAvailableLenses_IncludesFront(t *testing.T) {
	r := New(stubDevices())

	lenses := r.ListAvailableLenses(true)
	if len(lenses) != 2 {
		t.Fatalf("len = %d, want 2", len(lenses))
	}
	if lenses[1].Category != "front" {
		t.Errorf("front category = %q, want \"front\"", lenses[1].Category)
	}
}

func TestListAvailableLenses_NilSource(t *testing.T) {
	r := New(nil)
	if lenses := r.ListAvailableLenses(true); len(lenses) != 0 {
		t.Errorf("lenses = %+v, want none", lenses)
	}
}

func TestWithClassifier(t *testing.T) {
	r := New(stubDevices(), WithClassifier(lens.Classifier{
		Category: lens.TableCategory(map[string]string{"builtInWideAngleCamera": "main"}, nil),
	}))

	lenses := r.ListAvailableLenses(true)
	for _, l := range lenses {
		if l.Category != "main" {
			t.Errorf("%s category = %q, want \"main\"", l.ID, l.Category)
		}
	}
}

func TestRegistry_DriverEmitReachesSubscriber(t *testing.T) {
	r := New(nil)
	var got []string
	_ = r.FocusExposure().Listen(nil, events.SinkFunc(func(p events.Payload) {
		got = append(got, p.State())
	}))

	r.FocusExposure().Emit(events.FocusLocked)

	if len(got) != 2 || got[0] != "unknown" || got[1] != "focusLocked" {
		t.Errorf("states = %v, want [unknown focusLocked]", got)
	}
}

// ---------- transport slots ----------

// attachTwo attaches two transports and returns their state channel ports.
func attachTwo(t *testing.T, r *Registry) (mqtt, web events.StreamHandler) {
	t.Helper()
	a, b := &recordingTransport{}, &recordingTransport{}
	if err := r.Attach(a); err != nil {
		t.Fatalf("Attach a: %v", err)
	}
	if err := r.Attach(b); err != nil {
		t.Fatalf("Attach b: %v", err)
	}
	return a.handlers[ChannelState], b.handlers[ChannelState]
}

func TestTransports_WebClientLeavingKeepsMQTT(t *testing.T) {
	r := New(nil)
	mqttPort, webPort := attachTwo(t, r)

	bridge := &recordingSink{}
	_ = mqttPort.Listen(nil, bridge)
	client := &recordingSink{}
	_ = webPort.Listen(nil, client)
	r.Lifecycle().Emit(events.LifecycleRunning, nil)

	if err := webPort.Cancel(nil); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	r.Lifecycle().Emit(events.LifecycleStopping, nil)

	if got := bridge.states(); !equal(got, "disposed", "running", "stopping") {
		t.Errorf("bridge states = %v, want [disposed running stopping]", got)
	}
	if bridge.closed != 0 {
		t.Errorf("bridge closed %d times by another transport", bridge.closed)
	}
	if got := client.states(); !equal(got, "disposed", "running") {
		t.Errorf("client states = %v, want [disposed running]", got)
	}
	if client.closed != 1 {
		t.Errorf("client closed = %d, want 1", client.closed)
	}
	if !r.Lifecycle().Active() {
		t.Error("handler should keep its subscription while a transport listens")
	}
}

func TestTransports_ReplaceWithinTransport(t *testing.T) {
	r := New(nil)
	mqttPort, webPort := attachTwo(t, r)

	bridge := &recordingSink{}
	_ = mqttPort.Listen(nil, bridge)
	first := &recordingSink{}
	_ = webPort.Listen(nil, first)
	r.Lifecycle().Emit(events.LifecycleRunning, nil)

	second := &recordingSink{}
	_ = webPort.Listen(nil, second)
	r.Lifecycle().Emit(events.LifecycleIdle, nil)

	if got := first.states(); !equal(got, "disposed", "running") || first.closed != 1 {
		t.Errorf("replaced client states = %v closed = %d", got, first.closed)
	}
	if got := second.states(); !equal(got, "running", "idle") {
		t.Errorf("new client states = %v, want [running idle]", got)
	}
	if got := bridge.states(); !equal(got, "disposed", "running", "idle") {
		t.Errorf("bridge states = %v, want one delivery per emit", got)
	}
}

func TestTransports_LastCancelDropsSubscription(t *testing.T) {
	r := New(nil)
	mqttPort, webPort := attachTwo(t, r)
	_ = mqttPort.Listen(nil, &recordingSink{})
	_ = webPort.Listen(nil, &recordingSink{})

	_ = mqttPort.Cancel(nil)
	if !r.Lifecycle().Active() {
		t.Fatal("one transport still listens")
	}
	_ = webPort.Cancel(nil)
	if r.Lifecycle().Active() {
		t.Error("handler should have no sink once every transport cancelled")
	}
	if err := webPort.Cancel(nil); err != nil {
		t.Errorf("second Cancel: %v", err)
	}
}

func TestTransports_OpenFailureKeepsSlot(t *testing.T) {
	r := New(nil)
	mqttPort, _ := attachTwo(t, r)

	prior := &recordingSink{}
	_ = mqttPort.Listen(nil, prior)

	refused := errors.New("broker down")
	err := mqttPort.Listen(nil, &recordingSink{openErr: refused})
	if !errors.Is(err, refused) {
		t.Fatalf("err = %v, want %v", err, refused)
	}
	r.Lifecycle().Emit(events.LifecycleRunning, nil)
	if got := prior.states(); !equal(got, "disposed", "running") {
		t.Errorf("prior states = %v, want [disposed running]", got)
	}
}

func TestTransports_ListenAgainOpensOnce(t *testing.T) {
	r := New(nil)
	port, _ := attachTwo(t, r)

	sink := &recordingSink{}
	_ = port.Listen(nil, sink)
	r.Lifecycle().Emit(events.LifecycleRunning, nil)
	_ = port.Listen(nil, sink)

	if sink.opened != 1 || sink.closed != 0 {
		t.Errorf("opened = %d closed = %d, want 1 and 0", sink.opened, sink.closed)
	}
	if got := sink.states(); !equal(got, "disposed", "running", "running") {
		t.Errorf("states = %v, want [disposed running running]", got)
	}
}

func TestTransports_DirectListenReplacesAll(t *testing.T) {
	r := New(nil)
	mqttPort, webPort := attachTwo(t, r)
	a, b := &recordingSink{}, &recordingSink{}
	_ = mqttPort.Listen(nil, a)
	_ = webPort.Listen(nil, b)

	direct := &recordingSink{}
	_ = r.Lifecycle().Listen(nil, direct)

	if a.closed != 1 || b.closed != 1 {
		t.Errorf("closed = %d/%d, want both transports closed", a.closed, b.closed)
	}
	r.Lifecycle().Emit(events.LifecycleRunning, nil)
	if len(a.states()) != 1 || len(b.states()) != 1 {
		t.Error("replaced transports should get nothing more")
	}

	// A transport can subscribe again afterwards.
	c := &recordingSink{}
	_ = webPort.Listen(nil, c)
	if got := c.states(); !equal(got, "running") {
		t.Errorf("states = %v, want [running]", got)
	}
	if direct.closed != 1 {
		t.Error("direct subscriber should be replaced by the transport")
	}
}

func TestTransports_ConcurrentEmitAndJoin(t *testing.T) {
	r := New(nil)
	mqttPort, webPort := attachTwo(t, r)
	bridge := &recordingSink{}
	_ = mqttPort.Listen(nil, bridge)

	const emits = 100
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < emits; i++ {
			r.Lifecycle().Emit(events.LifecycleRunning, nil)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			_ = webPort.Listen(nil, &recordingSink{})
		}
	}()
	wg.Wait()

	// Joins on the other transport replay to the joiner only.
	if got := bridge.states(); len(got) != emits+1 {
		t.Errorf("bridge got %d payloads, want %d", len(got), emits+1)
	}
}
