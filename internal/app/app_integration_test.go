//go:build integration

package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/order-service/internal/broker"
	"github.com/xenking/order-service/internal/domain/order"
)

type noopTelemetry struct{}

func (noopTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }
func (noopTelemetry) MeterProvider() metric.MeterProvider  { return metricnoop.NewMeterProvider() }

type appSuite struct {
	suite.Suite

	container *tcpostgres.PostgresContainer
	catalog   *httptest.Server
	app       *App
	server    *httptest.Server
	cancel    context.CancelFunc
}

func TestAppSuite(t *testing.T) {
	suite.Run(t, new(appSuite))
}

func (s *appSuite) SetupSuite() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	container, err := tcpostgres.Run(ctx, "postgres:17-alpine",
		tcpostgres.WithDatabase("orders"),
		tcpostgres.WithUsername("orders"),
		tcpostgres.WithPassword("orders"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	// Catalog knows P1 and P2; "slow" never answers in time.
	s.catalog = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/products/P1", "/products/P2":
			_, _ = io.WriteString(w, `{"id":"`+strings.TrimPrefix(r.URL.Path, "/products/")+`","name":"Thing","price":"9.99"}`)
		case "/products/slow":
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	cfg := &Config{
		Addr:        "127.0.0.1:0",
		DatabaseURL: dsn,
		Migrate:     true,
		Topic:       order.Topic,
		Catalog:     CatalogConfig{URL: s.catalog.URL},
		Broker: broker.Config{
			Driver:         broker.DriverMemory,
			PublishTimeout: time.Second,
		},
		Graceful: GracefulConfig{ShutdownTimeout: time.Second},
	}

	s.app, err = New(ctx, zaptest.NewLogger(s.T()), noopTelemetry{}, cfg)
	s.Require().NoError(err)
	s.server = httptest.NewServer(s.app.Handler())
}

func (s *appSuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
	if s.app != nil {
		s.NoError(s.app.Close())
	}
	if s.catalog != nil {
		s.catalog.Close()
	}
	if s.container != nil {
		s.NoError(testcontainers.TerminateContainer(s.container))
	}
	s.cancel()
}

func (s *appSuite) do(method, path, body string) (int, string) {
	req, err := http.NewRequest(method, s.server.URL+path, strings.NewReader(body))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp.StatusCode, string(data)
}

func (s *appSuite) events() []broker.Message {
	return s.app.bus.(*broker.Memory).Messages(order.Topic)
}

func (s *appSuite) TestProbes() {
	code, body := s.do(http.MethodGet, "/livez", "")
	s.Equal(http.StatusOK, code)
	s.JSONEq(`{"status":"ok"}`, body)

	code, _ = s.do(http.MethodGet, "/readyz", "")
	s.Equal(http.StatusOK, code)
}

func (s *appSuite) TestCreateListGet() {
	t := s.T()
	before := len(s.events())

	code, body := s.do(http.MethodPost, "/", `{"productId":"P1","quantity":3}`)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Contains(t, body, `"message":"Order placed successfully"`)
	assert.Contains(t, body, `"productId":"P1"`)
	assert.Contains(t, body, `"status":"PENDING"`)

	events := s.events()
	require.Len(t, events, before+1)
	e, err := broker.DecodeCreatedEvent(events[len(events)-1].Value)
	require.NoError(t, err)
	assert.Equal(t, order.EventOrderCreated, e.Type)
	assert.Equal(t, "P1", e.ProductID)
	assert.Equal(t, 3, e.Quantity)

	code, body = s.do(http.MethodPost, "/", `{"productId":"P2","quantity":1}`)
	require.Equal(t, http.StatusCreated, code, body)

	code, body = s.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, code)
	assert.Less(t, strings.Index(body, `"productId":"P2"`), strings.Index(body, `"productId":"P1"`),
		"most recent order first")

	code, body = s.do(http.MethodGet, "/"+string(events[len(events)-1].Key), "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"productId":"P1"`)
}

func (s *appSuite) TestRejectedRequestsHaveNoSideEffects() {
	t := s.T()

	_, listBefore := s.do(http.MethodGet, "/", "")
	eventsBefore := len(s.events())

	code, body := s.do(http.MethodPost, "/", `{"productId":"P1","quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.JSONEq(t, `{"error":"productId and positive quantity required"}`, body)

	code, body = s.do(http.MethodPost, "/", `{"productId":"P404","quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.JSONEq(t, `{"error":"Invalid productId or product service unavailable"}`, body)

	start := time.Now()
	code, _ = s.do(http.MethodPost, "/", `{"productId":"slow","quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Less(t, time.Since(start), 4*time.Second)

	_, listAfter := s.do(http.MethodGet, "/", "")
	assert.Equal(t, listBefore, listAfter)
	assert.Len(t, s.events(), eventsBefore)
}

func (s *appSuite) TestGetUnknownOrder() {
	for _, path := range []string{"/999999", "/abc"} {
		code, body := s.do(http.MethodGet, path, "")
		s.Equal(http.StatusNotFound, code)
		s.JSONEq(`{"error":"Order not found"}`, body)
	}
}
