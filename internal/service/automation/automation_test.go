package automation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"chat-routing-backend/internal/events"
	"chat-routing-backend/internal/model"
	"chat-routing-backend/internal/queue"
	"chat-routing-backend/internal/service/capacity"
	"chat-routing-backend/internal/service/routing"
	"chat-routing-backend/internal/store/memory"
)

var t0 = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Envelope
}

func (p *recordingPublisher) Publish(_ context.Context, msg events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msg)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Meta.Type)
	}
	return out
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func minutes(n int) *int { return &n }

type harness struct {
	store     *memory.Store
	clock     *clock
	publisher *recordingPublisher
	emitter   *Emitter
	sweeper   *Sweeper
}

func newHarness(st Store, mem *memory.Store) *harness {
	c := &clock{now: t0}
	pub := &recordingPublisher{}
	emitter := NewEmitter(st, pub, c.Now, discard())
	tracker := capacity.NewTracker(mem, discard())
	return &harness{
		store:     mem,
		clock:     c,
		publisher: pub,
		emitter:   emitter,
		sweeper:   NewSweeper(st, emitter, tracker, nil, discard()),
	}
}

func seedActiveRoom(st *memory.Store) {
	st.PutTenant(model.TenantItem{TenantID: "t1"})
	st.PutAttendant(model.Attendant{AttendantID: "a1", TenantID: "t1", OnlineStatus: model.OnlineStatusOnline, ActiveConversations: 1})
	st.PutRoom(model.Room{RoomID: "room-1", TenantID: "t1", Status: model.RoomStatusActive, AttendantID: "a1", CreatedAt: t0.Add(-time.Hour)})
}

func human(roomID string, sender model.SenderType, at time.Time) model.Message {
	return model.Message{MessageID: at.Format(time.RFC3339Nano), RoomID: roomID, TenantID: "t1", SenderType: sender, Content: "hi", CreatedAt: at}
}

func insert(t *testing.T, st *memory.Store, msg model.Message) {
	t.Helper()
	if err := st.InsertMessage(context.Background(), msg); err != nil {
		t.Fatalf("insert message: %v", err)
	}
}

func systemMessages(st *memory.Store, roomID string, rule model.RuleType) int {
	n := 0
	for _, msg := range st.Messages(roomID) {
		if msg.SenderType == model.SenderSystem && msg.AutoRule() == rule {
			n++
		}
	}
	return n
}

func mustSweep(t *testing.T, s *Sweeper) SweepResult {
	t.Helper()
	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	return result
}

func TestEmitOnceIsIdempotentWithinEpisode(t *testing.T) {
	st := memory.New()
	seedActiveRoom(st)
	h := newHarness(st, st)
	room, _ := st.GetRoom(context.Background(), "room-1")

	for i := 0; i < 3; i++ {
		if _, err := h.emitter.EmitOnce(context.Background(), room, model.RuleWelcomeMessage, "Welcome!"); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}
	if n := systemMessages(st, "room-1", model.RuleWelcomeMessage); n != 1 {
		t.Fatalf("expected one welcome message, got %d", n)
	}

	insert(t, st, human("room-1", model.SenderVisitor, t0.Add(time.Minute)))
	h.clock.Set(t0.Add(2 * time.Minute))
	emitted, err := h.emitter.EmitOnce(context.Background(), room, model.RuleWelcomeMessage, "Welcome!")
	if err != nil || !emitted {
		t.Fatalf("new episode should emit again, got %v %v", emitted, err)
	}

	msgs := st.Messages("room-1")
	last := msgs[len(msgs)-1]
	if last.SenderType != model.SenderSystem || last.Metadata[model.MetadataAutoRule] != string(model.RuleWelcomeMessage) || last.Content != "Welcome!" {
		t.Fatalf("unexpected system message %+v", last)
	}
	if got := h.publisher.types(); len(got) != 2 || got[0] != events.TypeRuleFired {
		t.Fatalf("expected two rule_fired events, got %v", got)
	}
}

func TestSweepInactivityWarningFiresOncePerEpisode(t *testing.T) {
	st := memory.New()
	seedActiveRoom(st)
	st.PutAutoRule(model.AutoRule{RuleID: "r1", TenantID: "t1", RuleType: model.RuleInactivityWarning, IsEnabled: true, TriggerMinutes: minutes(5), MessageContent: "Still there?"})
	insert(t, st, human("room-1", model.SenderAttendant, t0))
	h := newHarness(st, st)

	h.clock.Set(t0.Add(4 * time.Minute))
	if result := mustSweep(t, h.sweeper); result.Processed != 0 {
		t.Fatalf("rule should not fire before trigger, got %+v", result)
	}

	h.clock.Set(t0.Add(6 * time.Minute))
	if result := mustSweep(t, h.sweeper); result.Processed != 1 || result.Rooms != 1 {
		t.Fatalf("expected one warning, got %+v", result)
	}
	if result := mustSweep(t, h.sweeper); result.Processed != 0 {
		t.Fatalf("re-sweep should not emit again, got %+v", result)
	}
	if n := systemMessages(st, "room-1", model.RuleInactivityWarning); n != 1 {
		t.Fatalf("expected one warning message, got %d", n)
	}

	// The attendant writes again, starting a new episode.
	insert(t, st, human("room-1", model.SenderAttendant, t0.Add(7*time.Minute)))
	h.clock.Set(t0.Add(13 * time.Minute))
	if result := mustSweep(t, h.sweeper); result.Processed != 1 {
		t.Fatalf("new episode should warn again, got %+v", result)
	}
	if n := systemMessages(st, "room-1", model.RuleInactivityWarning); n != 2 {
		t.Fatalf("expected two warning messages, got %d", n)
	}
}

func TestSweepDirectionConstraints(t *testing.T) {
	cases := []struct {
		name   string
		rule   model.RuleType
		status model.RoomStatus
		sender model.SenderType
		want   int
	}{
		{"absence after visitor", model.RuleAttendantAbsence, model.RoomStatusActive, model.SenderVisitor, 1},
		{"absence after attendant", model.RuleAttendantAbsence, model.RoomStatusActive, model.SenderAttendant, 0},
		{"warning after attendant", model.RuleInactivityWarning, model.RoomStatusActive, model.SenderAttendant, 1},
		{"warning after visitor", model.RuleInactivityWarning, model.RoomStatusActive, model.SenderVisitor, 0},
		{"warning on waiting room", model.RuleInactivityWarning, model.RoomStatusWaiting, model.SenderAttendant, 0},
		{"absence on waiting room", model.RuleAttendantAbsence, model.RoomStatusWaiting, model.SenderVisitor, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := memory.New()
			seedActiveRoom(st)
			room, _ := st.GetRoom(context.Background(), "room-1")
			room.Status = tc.status
			st.PutRoom(room)
			st.PutAutoRule(model.AutoRule{TenantID: "t1", RuleType: tc.rule, IsEnabled: true, TriggerMinutes: minutes(5), MessageContent: "..."})
			insert(t, st, human("room-1", tc.sender, t0))

			h := newHarness(st, st)
			h.clock.Set(t0.Add(10 * time.Minute))
			if result := mustSweep(t, h.sweeper); result.Processed != tc.want {
				t.Fatalf("processed = %d, want %d", result.Processed, tc.want)
			}
		})
	}
}

func TestSweepAutoCloseSideEffects(t *testing.T) {
	st := memory.New()
	seedActiveRoom(st)
	st.PutAutoRule(model.AutoRule{TenantID: "t1", RuleType: model.RuleAutoClose, IsEnabled: true, TriggerMinutes: minutes(10), MessageContent: "Closing due to inactivity"})
	insert(t, st, human("room-1", model.SenderVisitor, t0))
	h := newHarness(st, st)

	h.clock.Set(t0.Add(11 * time.Minute))
	result := mustSweep(t, h.sweeper)
	if result.Processed != 1 || result.Closed != 1 || result.Errors != 0 {
		t.Fatalf("unexpected result %+v", result)
	}

	room, _ := st.GetRoom(context.Background(), "room-1")
	if room.Status != model.RoomStatusClosed || room.ResolutionStatus != model.ResolutionPending {
		t.Fatalf("room not closed as pending: %+v", room)
	}
	if room.ClosedAt == nil || !room.ClosedAt.Equal(t0.Add(11*time.Minute)) {
		t.Fatalf("closedAt not stamped: %v", room.ClosedAt)
	}
	attendant, _ := st.GetAttendant(context.Background(), "a1")
	if attendant.ActiveConversations != 0 {
		t.Fatalf("capacity not released, got %d", attendant.ActiveConversations)
	}
	if n := systemMessages(st, "room-1", model.RuleAutoClose); n != 1 {
		t.Fatalf("expected one close message, got %d", n)
	}
	types := h.publisher.types()
	if len(types) != 2 || types[0] != events.TypeRuleFired || types[1] != events.TypeRoomAutoClosed {
		t.Fatalf("unexpected events %v", types)
	}

	if result := mustSweep(t, h.sweeper); result.Rooms != 0 || result.Processed != 0 {
		t.Fatalf("closed room should not be swept again, got %+v", result)
	}
}

func TestSweepAutoClosesWaitingRoom(t *testing.T) {
	st := memory.New()
	st.PutTenant(model.TenantItem{TenantID: "t1"})
	st.PutRoom(model.Room{RoomID: "room-1", TenantID: "t1", Status: model.RoomStatusWaiting})
	st.PutAutoRule(model.AutoRule{TenantID: "t1", RuleType: model.RuleAutoClose, IsEnabled: true, TriggerMinutes: minutes(10), MessageContent: "bye"})
	insert(t, st, human("room-1", model.SenderVisitor, t0))
	h := newHarness(st, st)

	h.clock.Set(t0.Add(10 * time.Minute))
	if result := mustSweep(t, h.sweeper); result.Closed != 1 {
		t.Fatalf("waiting room should be closed, got %+v", result)
	}
	room, _ := st.GetRoom(context.Background(), "room-1")
	if room.Status != model.RoomStatusClosed {
		t.Fatalf("unexpected status %s", room.Status)
	}
}

func TestSweepWarningAndCloseDueTogether(t *testing.T) {
	st := memory.New()
	seedActiveRoom(st)
	st.PutAutoRule(model.AutoRule{TenantID: "t1", RuleType: model.RuleAutoClose, IsEnabled: true, TriggerMinutes: minutes(10), MessageContent: "closing"})
	st.PutAutoRule(model.AutoRule{TenantID: "t1", RuleType: model.RuleInactivityWarning, IsEnabled: true, TriggerMinutes: minutes(5), MessageContent: "still there?"})
	insert(t, st, human("room-1", model.SenderAttendant, t0))
	h := newHarness(st, st)

	h.clock.Set(t0.Add(30 * time.Minute))
	if result := mustSweep(t, h.sweeper); result.Processed != 2 || result.Closed != 1 {
		t.Fatalf("expected warning and close, got %+v", result)
	}
	msgs := st.Messages("room-1")
	if len(msgs) != 3 || msgs[1].AutoRule() != model.RuleInactivityWarning || msgs[2].AutoRule() != model.RuleAutoClose {
		t.Fatalf("unexpected message order %+v", msgs)
	}
}

func TestSweepIgnoresDisabledAndUntimedRules(t *testing.T) {
	st := memory.New()
	seedActiveRoom(st)
	st.PutAutoRule(model.AutoRule{TenantID: "t1", RuleType: model.RuleAutoClose, IsEnabled: false, TriggerMinutes: minutes(1), MessageContent: "x"})
	st.PutAutoRule(model.AutoRule{TenantID: "t1", RuleType: model.RuleInactivityWarning, IsEnabled: true, MessageContent: "x"})
	insert(t, st, human("room-1", model.SenderAttendant, t0))
	h := newHarness(st, st)

	h.clock.Set(t0.Add(time.Hour))
	if result := mustSweep(t, h.sweeper); result.Processed != 0 || result.Rooms != 0 {
		t.Fatalf("expected nothing to run, got %+v", result)
	}
}

func TestSweepSkipsRoomWithoutHumanMessages(t *testing.T) {
	st := memory.New()
	seedActiveRoom(st)
	st.PutAutoRule(model.AutoRule{TenantID: "t1", RuleType: model.RuleAutoClose, IsEnabled: true, TriggerMinutes: minutes(0), MessageContent: "x"})
	h := newHarness(st, st)

	if result := mustSweep(t, h.sweeper); result.Processed != 0 || result.Rooms != 1 {
		t.Fatalf("room without messages should be skipped, got %+v", result)
	}
}

// racingStore closes the room on behalf of an agent right before the sweep's
// conditional update lands.
type racingStore struct {
	*memory.Store
}

func (s racingStore) UpdateRoom(ctx context.Context, roomID string, update model.RoomUpdate, expected ...model.RoomStatus) (model.Room, error) {
	if _, err := s.Store.UpdateRoom(ctx, roomID, model.RoomUpdate{
		Status:           model.StatusPtr(model.RoomStatusClosed),
		ResolutionStatus: model.ResolutionPtr(model.ResolutionResolved),
	}); err != nil {
		return model.Room{}, err
	}
	return s.Store.UpdateRoom(ctx, roomID, update, expected...)
}

func TestSweepAutoCloseLosesRace(t *testing.T) {
	st := memory.New()
	seedActiveRoom(st)
	st.PutAutoRule(model.AutoRule{TenantID: "t1", RuleType: model.RuleAutoClose, IsEnabled: true, TriggerMinutes: minutes(10), MessageContent: "closing"})
	insert(t, st, human("room-1", model.SenderVisitor, t0))
	h := newHarness(racingStore{st}, st)

	h.clock.Set(t0.Add(11 * time.Minute))
	result := mustSweep(t, h.sweeper)
	if result.Closed != 0 || result.Errors != 0 {
		t.Fatalf("lost race should be neither a close nor an error, got %+v", result)
	}
	room, _ := st.GetRoom(context.Background(), "room-1")
	if room.ResolutionStatus != model.ResolutionResolved {
		t.Fatalf("agent close overwritten: %+v", room)
	}
	attendant, _ := st.GetAttendant(context.Background(), "a1")
	if attendant.ActiveConversations != 1 {
		t.Fatalf("sweep must not release capacity it did not close, got %d", attendant.ActiveConversations)
	}
}

type flakyMessagesStore struct {
	*memory.Store
	failRoom string
}

func (s flakyMessagesStore) GetLastNonSystemMessage(ctx context.Context, roomID string) (model.Message, error) {
	if roomID == s.failRoom {
		return model.Message{}, errors.New("read timeout")
	}
	return s.Store.GetLastNonSystemMessage(ctx, roomID)
}

func TestSweepIsolatesRoomFailures(t *testing.T) {
	st := memory.New()
	seedActiveRoom(st)
	st.PutRoom(model.Room{RoomID: "room-2", TenantID: "t1", Status: model.RoomStatusActive, AttendantID: "a1", CreatedAt: t0})
	st.PutAutoRule(model.AutoRule{TenantID: "t1", RuleType: model.RuleInactivityWarning, IsEnabled: true, TriggerMinutes: minutes(5), MessageContent: "?"})
	insert(t, st, human("room-1", model.SenderAttendant, t0))
	insert(t, st, human("room-2", model.SenderAttendant, t0))
	h := newHarness(flakyMessagesStore{Store: st, failRoom: "room-1"}, st)

	h.clock.Set(t0.Add(6 * time.Minute))
	result := mustSweep(t, h.sweeper)
	if result.Errors != 1 || result.Processed != 1 || result.Rooms != 2 {
		t.Fatalf("expected one failure and one warning, got %+v", result)
	}
	if n := systemMessages(st, "room-2", model.RuleInactivityWarning); n != 1 {
		t.Fatalf("healthy room should still be warned, got %d", n)
	}
}

func TestSweepFansTenantsOutOverPool(t *testing.T) {
	st := memory.New()
	for _, tenant := range []string{"t1", "t2", "t3", "t4"} {
		st.PutTenant(model.TenantItem{TenantID: tenant})
		roomID := "room-" + tenant
		st.PutRoom(model.Room{RoomID: roomID, TenantID: tenant, Status: model.RoomStatusWaiting})
		st.PutAutoRule(model.AutoRule{TenantID: tenant, RuleType: model.RuleAutoClose, IsEnabled: true, TriggerMinutes: minutes(1), MessageContent: "bye"})
		insert(t, st, model.Message{MessageID: roomID, RoomID: roomID, TenantID: tenant, SenderType: model.SenderVisitor, CreatedAt: t0})
	}

	pool := queue.NewRequestQueueManager(2, 2, discard())
	defer pool.Shutdown()
	c := &clock{now: t0.Add(5 * time.Minute)}
	emitter := NewEmitter(st, nil, c.Now, discard())
	sweeper := NewSweeper(st, emitter, capacity.NewTracker(st, discard()), pool, discard())

	result := mustSweep(t, sweeper)
	if result.Tenants != 4 || result.Processed != 4 || result.Closed != 4 {
		t.Fatalf("unexpected result %+v", result)
	}
}

type stubResolver struct {
	outcome routing.Outcome
	err     error
	calls   int
}

func (r *stubResolver) Resolve(context.Context, model.Room) (routing.Outcome, error) {
	r.calls++
	return r.outcome, r.err
}

func TestOnRoomCreatedWelcomesOnceAndResolves(t *testing.T) {
	st := memory.New()
	st.PutTenant(model.TenantItem{TenantID: "t1"})
	st.PutRoom(model.Room{RoomID: "room-1", TenantID: "t1", Status: model.RoomStatusWaiting})
	st.PutAutoRule(model.AutoRule{TenantID: "t1", RuleType: model.RuleWelcomeMessage, IsEnabled: true, MessageContent: "Hello!"})
	h := newHarness(st, st)
	resolver := &stubResolver{outcome: routing.Outcome{OutsideHours: true}}
	assigner := NewAssigner(st, h.emitter, resolver, discard())

	for i := 0; i < 2; i++ {
		outcome := assigner.OnRoomCreated(context.Background(), "room-1")
		if !outcome.OutsideHours {
			t.Fatalf("resolver outcome should be returned verbatim, got %+v", outcome)
		}
	}
	if n := systemMessages(st, "room-1", model.RuleWelcomeMessage); n != 1 {
		t.Fatalf("expected a single welcome, got %d", n)
	}
	if resolver.calls != 2 {
		t.Fatalf("expected two resolutions, got %d", resolver.calls)
	}
}

func TestOnRoomCreatedMissingRoom(t *testing.T) {
	st := memory.New()
	h := newHarness(st, st)
	resolver := &stubResolver{}

	outcome := NewAssigner(st, h.emitter, resolver, discard()).OnRoomCreated(context.Background(), "nope")
	if !outcome.AllBusy || resolver.calls != 0 {
		t.Fatalf("missing room should be all busy without resolving, got %+v", outcome)
	}
}

type failingInsertStore struct {
	*memory.Store
}

func (failingInsertStore) InsertMessage(context.Context, model.Message) error {
	return errors.New("write failed")
}

func TestOnRoomCreatedSurvivesWelcomeAndResolverFailures(t *testing.T) {
	st := memory.New()
	st.PutTenant(model.TenantItem{TenantID: "t1"})
	st.PutRoom(model.Room{RoomID: "room-1", TenantID: "t1", Status: model.RoomStatusWaiting})
	st.PutAutoRule(model.AutoRule{TenantID: "t1", RuleType: model.RuleWelcomeMessage, IsEnabled: true, MessageContent: "Hello!"})
	wrapped := failingInsertStore{st}
	h := newHarness(wrapped, st)

	resolver := &stubResolver{outcome: routing.Outcome{}}
	if outcome := NewAssigner(wrapped, h.emitter, resolver, discard()).OnRoomCreated(context.Background(), "room-1"); outcome != (routing.Outcome{}) {
		t.Fatalf("welcome failure must not change the outcome, got %+v", outcome)
	}

	resolver.err = errors.New("store down")
	if outcome := NewAssigner(wrapped, h.emitter, resolver, discard()).OnRoomCreated(context.Background(), "room-1"); !outcome.AllBusy {
		t.Fatalf("resolver error should map to all busy, got %+v", outcome)
	}
}

// failingUpdateStore fails the first room writes with a transient error.
type failingUpdateStore struct {
	*memory.Store
	failures int
}

func (s *failingUpdateStore) UpdateRoom(ctx context.Context, roomID string, update model.RoomUpdate, expected ...model.RoomStatus) (model.Room, error) {
	if s.failures > 0 {
		s.failures--
		return model.Room{}, errors.New("provisioned throughput exceeded")
	}
	return s.Store.UpdateRoom(ctx, roomID, update, expected...)
}

func TestSweepRetriesAutoCloseAfterFailedWrite(t *testing.T) {
	st := memory.New()
	seedActiveRoom(st)
	st.PutAutoRule(model.AutoRule{TenantID: "t1", RuleType: model.RuleAutoClose, IsEnabled: true, TriggerMinutes: minutes(10), MessageContent: "Closing due to inactivity"})
	insert(t, st, human("room-1", model.SenderVisitor, t0))
	h := newHarness(&failingUpdateStore{Store: st, failures: 1}, st)

	h.clock.Set(t0.Add(11 * time.Minute))
	if result := mustSweep(t, h.sweeper); result.Processed != 1 || result.Closed != 0 || result.Errors != 1 {
		t.Fatalf("unexpected first sweep %+v", result)
	}
	if room, _ := st.GetRoom(context.Background(), "room-1"); room.Status != model.RoomStatusActive {
		t.Fatalf("room should still be open after the failed write, got %s", room.Status)
	}

	h.clock.Set(t0.Add(time.Hour))
	if result := mustSweep(t, h.sweeper); result.Processed != 0 || result.Closed != 1 || result.Errors != 0 {
		t.Fatalf("unexpected retry sweep %+v", result)
	}

	room, _ := st.GetRoom(context.Background(), "room-1")
	if room.Status != model.RoomStatusClosed || room.ResolutionStatus != model.ResolutionPending {
		t.Fatalf("room not closed on retry: %+v", room)
	}
	if attendant, _ := st.GetAttendant(context.Background(), "a1"); attendant.ActiveConversations != 0 {
		t.Fatalf("capacity not released, got %d", attendant.ActiveConversations)
	}
	if n := systemMessages(st, "room-1", model.RuleAutoClose); n != 1 {
		t.Fatalf("close message must not be repeated, got %d", n)
	}
}
