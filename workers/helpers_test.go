package workers

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"stagebased/config"
	"stagebased/db"
	"stagebased/errors"
	"stagebased/models"
	"stagebased/tools"

	"github.com/jinzhu/gorm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

/************************************************
/**** MARK: FAKE COLLABORATORS ****/
/************************************************/

type fakeIdentity struct {
	mu        sync.Mutex
	profiles  map[string]*tools.Identity
	addresses map[string]string
	err       error
	calls     int
	lookedUp  []string
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{profiles: map[string]*tools.Identity{}, addresses: map[string]string{}}
}

func (f *fakeIdentity) GetIdentity(_ context.Context, id string) (*tools.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.profiles[id]; ok {
		return p, nil
	}
	return &tools.Identity{ID: id, Details: map[string]any{}}, nil
}

func (f *fakeIdentity) GetDefaultAddress(_ context.Context, id, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lookedUp = append(f.lookedUp, id)
	if f.err != nil {
		return "", f.err
	}
	addr, ok := f.addresses[id]
	if !ok {
		return "", errors.Mark(errors.Newf("identity %s has no address", id), errors.ErrLookup)
	}
	return addr, nil
}

func (f *fakeIdentity) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []tools.Outbound
	err     error
	entered chan struct{}
	release chan struct{}
}

func (f *fakeSender) CreateOutbound(_ context.Context, msg tools.Outbound) (*tools.OutboundResult, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, msg)
	return &tools.OutboundResult{ID: fmt.Sprintf("out-%d", len(f.sent)), ToAddr: msg.ToAddr}, nil
}

func (f *fakeSender) outbound() []tools.Outbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tools.Outbound(nil), f.sent...)
}

type fakeScheduler struct {
	mu       sync.Mutex
	created  []tools.ScheduleRequest
	disabled []string
	err      error
	onCreate func()
}

func (f *fakeScheduler) CreateSchedule(_ context.Context, req tools.ScheduleRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.created = append(f.created, req)
	if f.onCreate != nil {
		f.onCreate()
	}
	return fmt.Sprintf("sched-%d", len(f.created)), nil
}

func (f *fakeScheduler) UpdateSchedule(_ context.Context, id string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if !enabled {
		f.disabled = append(f.disabled, id)
	}
	return nil
}

type firedMetric struct {
	Name  string
	Value float64
}

type fakeMetrics struct {
	mu    sync.Mutex
	fired []firedMetric
	err   error
}

func (f *fakeMetrics) FireMetric(_ context.Context, name string, value float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.fired = append(f.fired, firedMetric{Name: name, Value: value})
	return nil
}

func (f *fakeMetrics) values(name string) []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []float64
	for _, m := range f.fired {
		if m.Name == name {
			out = append(out, m.Value)
		}
	}
	return out
}

func (f *fakeMetrics) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fired)
}

/************************************************
/**** MARK: FIXTURES ****/
/************************************************/

type harness struct {
	db        *gorm.DB
	engine    *Engine
	identity  *fakeIdentity
	sender    *fakeSender
	scheduler *fakeScheduler
	metrics   *fakeMetrics
	registry  *prometheus.Registry
}

func testConfig() config.Configuration {
	return config.Configuration{
		PublicURL:          "http://example.com/api/v1",
		PublicDomain:       "example.com",
		MediaURL:           "/media/",
		DefaultAddressType: "msisdn",
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		db:        db.NewTestDB(t),
		identity:  newFakeIdentity(),
		sender:    &fakeSender{},
		scheduler: &fakeScheduler{},
		metrics:   &fakeMetrics{},
		registry:  prometheus.NewRegistry(),
	}
	h.identity.addresses[testIdentity] = "+27123"
	h.engine = NewEngine(Deps{
		DB:         h.db,
		Identity:   h.identity,
		Sender:     h.sender,
		Scheduler:  h.scheduler,
		Metrics:    h.metrics,
		Queue:      NewQueue(config.WorkersConfig{Eager: true}, zerolog.Nop()),
		Config:     testConfig(),
		Logger:     zerolog.Nop(),
		Registerer: h.registry,
	})
	return h
}

const testIdentity = "8646b7bc-b511-4965-a90b-e1145e398703"

func (h *harness) schedule(t *testing.T) models.Schedule {
	t.Helper()
	s := models.Schedule{Minute: "1", Hour: "6", DayOfWeek: "1"}
	require.NoError(t, h.db.Create(&s).Error)
	return s
}

func (h *harness) messageSet(t *testing.T, shortName, contentType string, texts int, next *models.MessageSet) models.MessageSet {
	t.Helper()
	sched := h.schedule(t)
	set := models.MessageSet{ShortName: shortName, DefaultScheduleID: sched.ID, ContentType: contentType}
	if next != nil {
		set.NextSetID = &next.ID
	}
	require.NoError(t, h.db.Create(&set).Error)
	for i := 1; i <= texts; i++ {
		msg := models.Message{
			MessageSetID:   set.ID,
			SequenceNumber: i,
			Lang:           "en",
			TextContent:    fmt.Sprintf("%s message %d", shortName, i),
		}
		require.NoError(t, h.db.Create(&msg).Error)
	}
	return set
}

func (h *harness) audioMessage(t *testing.T, set models.MessageSet, seq int, file string) models.Message {
	t.Helper()
	bin := models.BinaryContent{Content: file}
	require.NoError(t, h.db.Create(&bin).Error)
	msg := models.Message{MessageSetID: set.ID, SequenceNumber: seq, Lang: "en", BinaryContentID: &bin.ID}
	require.NoError(t, h.db.Create(&msg).Error)
	return msg
}

func (h *harness) subscription(t *testing.T, set models.MessageSet, mutate func(*models.Subscription)) models.Subscription {
	t.Helper()
	sub := models.Subscription{
		Identity:     testIdentity,
		MessageSetID: set.ID,
		Lang:         "en",
		Active:       true,
		ScheduleID:   set.DefaultScheduleID,
	}
	sub.ApplyDefaults()
	if mutate != nil {
		mutate(&sub)
	}
	require.NoError(t, h.db.Create(&sub).Error)
	return sub
}

func (h *harness) reload(t *testing.T, id string) models.Subscription {
	t.Helper()
	var sub models.Subscription
	require.NoError(t, h.db.Where("id = ?", id).First(&sub).Error)
	return sub
}
