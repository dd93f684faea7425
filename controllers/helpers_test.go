package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"stagebased/config"
	dbpkg "stagebased/db"
	"stagebased/models"
	"stagebased/tools"
	"stagebased/workers"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token"
const testIdentity = "8646b7bc-b511-4965-a90b-e1145e398703"

type stubCollaborators struct {
	mu       sync.Mutex
	sent     []tools.Outbound
	created  []tools.ScheduleRequest
	disabled []string
	fired    map[string]float64
}

func (s *stubCollaborators) GetIdentity(_ context.Context, id string) (*tools.Identity, error) {
	return &tools.Identity{ID: id}, nil
}

func (s *stubCollaborators) GetDefaultAddress(context.Context, string, string) (string, error) {
	return "+27123", nil
}

func (s *stubCollaborators) CreateOutbound(_ context.Context, msg tools.Outbound) (*tools.OutboundResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return &tools.OutboundResult{ID: "1"}, nil
}

func (s *stubCollaborators) CreateSchedule(_ context.Context, req tools.ScheduleRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, req)
	return "remote-1", nil
}

func (s *stubCollaborators) UpdateSchedule(_ context.Context, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !enabled {
		s.disabled = append(s.disabled, id)
	}
	return nil
}

func (s *stubCollaborators) FireMetric(_ context.Context, name string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fired[name] += value
	return nil
}

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	stub   *stubCollaborators
	media  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database := dbpkg.NewTestDB(t)
	stub := &stubCollaborators{fired: map[string]float64{}}
	conf := config.Configuration{
		PublicURL:          "http://example.com/api/v1",
		PublicDomain:       "example.com",
		MediaURL:           "/media/",
		MediaRoot:          t.TempDir(),
		DefaultAddressType: "msisdn",
		AuthTokens:         []string{testToken},
	}
	engine := workers.NewEngine(workers.Deps{
		DB:         database,
		Identity:   stub,
		Sender:     stub,
		Scheduler:  stub,
		Metrics:    stub,
		Queue:      workers.NewQueue(config.WorkersConfig{Eager: true}, zerolog.Nop()),
		Config:     conf,
		Logger:     zerolog.Nop(),
		Registerer: prometheus.NewRegistry(),
	})

	r := gin.New()
	r.Use(dbpkg.SetDBtoContext(database), workers.SetEngineToContext(engine))
	api := r.Group("/api", TokenRequired(conf.AuthTokens))
	api.GET("/health/", Health)
	api.GET("/metrics/", GetMetrics)
	api.POST("/metrics/", PostMetrics)
	v1 := api.Group("/v1")
	v1.GET("/subscriptions/", GetSubscriptions)
	v1.POST("/subscriptions/", CreateSubscription)
	v1.POST("/subscriptions/request", CreateSubscriptionRequest)
	v1.GET("/subscriptions/:id/", GetSubscriptionByID)
	v1.PATCH("/subscriptions/:id/", UpdateSubscription)
	v1.DELETE("/subscriptions/:id/", DeleteSubscription)
	v1.POST("/subscriptions/:id/send", SendSubscription)
	v1.POST("/schedule/", CreateSchedule)
	v1.GET("/schedule/", GetSchedules)
	v1.POST("/messageset/", CreateMessageSet)
	v1.GET("/messageset/:id/messages", GetMessageSetMessages)
	v1.POST("/message/", CreateMessage)
	v1.PATCH("/message/:id/", UpdateMessage)
	v1.POST("/binarycontent/", CreateBinaryContent)
	v1.GET("/binarycontent/:id/", GetBinaryContentByID)

	return &testServer{router: r, db: database, stub: stub, media: conf.MediaRoot}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+testToken)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// seed creates a schedule and a text messageset with n messages in "en".
func (s *testServer) seed(t *testing.T, n int) models.MessageSet {
	t.Helper()
	sched := models.Schedule{Minute: "0", Hour: "8", DayOfWeek: "1,3"}
	require.NoError(t, s.db.Create(&sched).Error)
	set := models.MessageSet{ShortName: "messageset_one", DefaultScheduleID: sched.ID, ContentType: models.CONTENT_TYPE_TEXT}
	require.NoError(t, s.db.Create(&set).Error)
	for i := 1; i <= n; i++ {
		require.NoError(t, s.db.Create(&models.Message{
			MessageSetID: set.ID, SequenceNumber: i, Lang: "en", TextContent: "text",
		}).Error)
	}
	return set
}

func (s *testServer) subscription(t *testing.T, set models.MessageSet) models.Subscription {
	t.Helper()
	sub := models.Subscription{
		Identity: testIdentity, MessageSetID: set.ID, Lang: "en",
		Active: true, ScheduleID: set.DefaultScheduleID,
	}
	sub.ApplyDefaults()
	require.NoError(t, s.db.Create(&sub).Error)
	return sub
}

func (s *testServer) reload(t *testing.T, id string) models.Subscription {
	t.Helper()
	var sub models.Subscription
	require.NoError(t, s.db.Where("id = ?", id).First(&sub).Error)
	return sub
}

func itoa(i int64) string { return strconv.FormatInt(i, 10) }
