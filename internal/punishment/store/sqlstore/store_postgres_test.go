//go:build integration

package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"warden/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	storeSuite
	pg *containers.PostgresContainer
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = New(s.pg.DB, Postgres)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(context.Background(), "warden_punishments", "warden_punishment_history"))
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
	s.t0 = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
}
