package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fieldkey/internal/params"
	"fieldkey/internal/round"
	tokensvc "fieldkey/internal/token/service"
	"fieldkey/internal/token/signer"
	"fieldkey/internal/token/store/assignment"
	"fieldkey/internal/token/store/capability"
	id "fieldkey/pkg/domain"
	dErrors "fieldkey/pkg/domain-errors"
	"fieldkey/pkg/testutil"
)

type SweeperSuite struct {
	suite.Suite
	ctx         context.Context
	now         time.Time
	tokens      *capability.InMemoryStore
	assignments *assignment.InMemoryStore
	rounds      *round.InMemoryStore
	svc         *tokensvc.Service
	sweeper     *Sweeper

	tenantID    id.TenantID
	territoryID id.TerritoryID
}

func TestSweeperSuite(t *testing.T) {
	suite.Run(t, new(SweeperSuite))
}

func (s *SweeperSuite) SetupTest() {
	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.ctx = testutil.ContextAt(s.now)
	s.tokens = capability.NewMemory()
	s.assignments = assignment.NewMemory()
	s.rounds = round.NewMemory()
	s.svc = tokensvc.New(testutil.Logger(), nil,
		s.tokens, s.assignments, round.NewService(s.rounds), params.NewMemory(),
		signer.New("test-signing-key", "fieldkey-test"), tokensvc.MemoryTx{})
	s.sweeper = New(testutil.Logger(), nil, s.tokens, s.assignments, tokensvc.MemoryTx{}, time.Minute)

	s.tenantID = id.NewTenantID()
	s.territoryID = id.NewTerritoryID()
	s.rounds.SetOpenRound(s.territoryID, 3)
}

func (s *SweeperSuite) TestSweepDeletesExpiredOnly() {
	key, err := s.svc.IssueTerritoryToken(s.ctx, s.tenantID, s.territoryID, 3, "Maria", s.now.AddDate(0, 0, 2))
	s.Require().NoError(err)

	fresh := id.NewTerritoryID()
	s.rounds.SetOpenRound(fresh, 3)
	freshKey, err := s.svc.IssueTerritoryToken(s.ctx, s.tenantID, fresh, 3, "Jonas", s.now.AddDate(0, 0, 30))
	s.Require().NoError(err)

	// Three days later the first token is past its end-of-day expiry.
	later := s.now.AddDate(0, 0, 3)
	deleted, err := s.sweeper.SweepAt(s.ctx, later)
	s.Require().NoError(err)
	s.Equal(1, deleted)

	s.True(dErrors.HasCode(s.svc.Validate(testutil.ContextAt(later), key), dErrors.CodeNotFound))
	s.NoError(s.svc.Validate(testutil.ContextAt(later), freshKey))
}

func (s *SweeperSuite) TestSweepDetachesAssignment() {
	key, err := s.svc.IssueTerritoryToken(s.ctx, s.tenantID, s.territoryID, 3, "Maria", s.now.AddDate(0, 0, 2))
	s.Require().NoError(err)

	later := s.now.AddDate(0, 0, 3)
	_, err = s.sweeper.SweepAt(s.ctx, later)
	s.Require().NoError(err)

	// The assignment survives the sweep unfinished with its reference
	// cleared, so the territory is re-issuable for the same round.
	a, err := s.assignments.FindUnfinishedTerritory(s.ctx, s.territoryID, 3)
	s.Require().NoError(err)
	s.Empty(a.TokenKey)
	s.False(a.Finished)

	laterCtx := testutil.ContextAt(later)
	reissued, err := s.svc.IssueTerritoryToken(laterCtx, s.tenantID, s.territoryID, 3, "Maria", later.AddDate(0, 0, 7))
	s.Require().NoError(err)
	s.NotEqual(key, reissued)
	s.NoError(s.svc.Validate(laterCtx, reissued))
}

func (s *SweeperSuite) TestSweepIdempotent() {
	_, err := s.svc.IssueTerritoryToken(s.ctx, s.tenantID, s.territoryID, 3, "Maria", s.now.AddDate(0, 0, 2))
	s.Require().NoError(err)

	later := s.now.AddDate(0, 0, 3)
	deleted, err := s.sweeper.SweepAt(s.ctx, later)
	s.Require().NoError(err)
	s.Equal(1, deleted)

	deleted, err = s.sweeper.SweepAt(s.ctx, later)
	s.Require().NoError(err)
	s.Zero(deleted)
}

func (s *SweeperSuite) TestSweepNothingToDo() {
	deleted, err := s.sweeper.SweepAt(s.ctx, s.now)
	s.Require().NoError(err)
	s.Zero(deleted)
}
