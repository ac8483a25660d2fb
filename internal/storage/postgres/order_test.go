package postgres_test

import (
	"math"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/order-service/internal/domain/order"
	"github.com/xenking/order-service/internal/storage/postgres"
)

func TestOrderRepository_CreateRejectsQuantityOutsideColumn(t *testing.T) {
	repo := postgres.NewOrderRepository(nil)

	for _, q := range []int64{math.MaxInt32 + 1, math.MaxInt32 + 3, math.MinInt32 - 1} {
		_, err := repo.Create(t.Context(), "P1", int(q))

		var serr *order.StoreError
		require.ErrorAs(t, err, &serr, "quantity %d", q)
		require.Equal(t, "create", serr.Op)
	}
}

type orderRepositorySuite struct {
	suite.Suite

	container *tcpostgres.PostgresContainer
	pool      *pgxpool.Pool
	repo      *postgres.OrderRepository
}

func TestOrderRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	suite.Run(t, new(orderRepositorySuite))
}

func (s *orderRepositorySuite) SetupSuite() {
	ctx := s.T().Context()

	container, err := tcpostgres.Run(ctx, "postgres:17-alpine",
		tcpostgres.WithDatabase("orders"),
		tcpostgres.WithUsername("orders"),
		tcpostgres.WithPassword("orders"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.pool, err = postgres.NewPool(ctx, connStr)
	s.Require().NoError(err)

	s.Require().NoError(postgres.RunMigrations(ctx, s.pool))
	s.repo = postgres.NewOrderRepository(s.pool)
}

func (s *orderRepositorySuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		s.NoError(testcontainers.TerminateContainer(s.container))
	}
}

func (s *orderRepositorySuite) SetupTest() {
	_, err := s.pool.Exec(s.T().Context(), `TRUNCATE orders RESTART IDENTITY`)
	s.Require().NoError(err)
}

func (s *orderRepositorySuite) TestCreate() {
	t := s.T()
	ctx := t.Context()

	productID := gofakeit.UUID()
	quantity := gofakeit.IntRange(1, 100)

	before := time.Now()
	got, err := s.repo.Create(ctx, productID, quantity)
	require.NoError(t, err)

	want := &order.Order{
		ID:        1,
		ProductID: productID,
		Quantity:  quantity,
		Status:    order.StatusPending,
		CreatedAt: before,
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApproxTime(5*time.Second)); diff != "" {
		t.Errorf("Create() mismatch (-want +got):\n%s", diff)
	}

	second, err := s.repo.Create(ctx, productID, quantity)
	require.NoError(t, err)
	require.Greater(t, second.ID, got.ID)
}

func (s *orderRepositorySuite) TestCreate_ConstraintViolation() {
	t := s.T()

	_, err := s.repo.Create(t.Context(), "P1", 0)

	var serr *order.StoreError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, "create", serr.Op)
}

func (s *orderRepositorySuite) TestCreate_QuantityOutOfRange() {
	t := s.T()
	ctx := t.Context()

	var tooLarge int64 = math.MaxInt32 + 1
	_, err := s.repo.Create(ctx, "P1", int(tooLarge))

	var serr *order.StoreError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, "create", serr.Op)

	orders, err := s.repo.List(ctx)
	require.NoError(t, err)
	require.Empty(t, orders, "truncated quantity must not be stored")
}

func (s *orderRepositorySuite) TestList() {
	t := s.T()
	ctx := t.Context()

	empty, err := s.repo.List(ctx)
	require.NoError(t, err)
	require.Empty(t, empty)

	productIDs := []string{gofakeit.UUID(), gofakeit.UUID(), gofakeit.UUID()}
	for _, id := range productIDs {
		_, err := s.repo.Create(ctx, id, 1)
		require.NoError(t, err)
	}

	orders, err := s.repo.List(ctx)
	require.NoError(t, err)

	got := lo.Map(orders, func(o order.Order, _ int) string { return o.ProductID })
	require.Equal(t, lo.Reverse(productIDs), got)
}

func (s *orderRepositorySuite) TestGetByID() {
	t := s.T()
	ctx := t.Context()

	created, err := s.repo.Create(ctx, "P7", 2)
	require.NoError(t, err)

	got, err := s.repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(created, got, cmpopts.EquateApproxTime(time.Millisecond)); diff != "" {
		t.Errorf("GetByID() mismatch (-want +got):\n%s", diff)
	}

	_, err = s.repo.GetByID(ctx, created.ID+1000)
	require.ErrorIs(t, err, order.ErrNotFound)
}

func (s *orderRepositorySuite) TestCreate_ConcurrentIDsUnique() {
	t := s.T()
	ctx := t.Context()

	const n = 20
	ids := make([]int64, n)

	g, gctx := errgroup.WithContext(ctx)
	for i := range n {
		g.Go(func() error {
			o, err := s.repo.Create(gctx, "P1", 1)
			if err != nil {
				return err
			}
			ids[i] = o.ID
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.Len(t, lo.Uniq(ids), n)
}

func (s *orderRepositorySuite) TestMigrationStatus() {
	t := s.T()

	m, err := postgres.NewMigrator(s.pool)
	require.NoError(t, err)
	defer func() { require.NoError(t, m.Close()) }()

	statuses, err := m.Status(t.Context())
	require.NoError(t, err)
	require.NotEmpty(t, statuses)
	for _, st := range statuses {
		require.True(t, st.Applied, "migration %d not applied", st.Version)
	}
}
