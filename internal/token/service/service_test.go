package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fieldkey/internal/params"
	"fieldkey/internal/round"
	"fieldkey/internal/token/models"
	"fieldkey/internal/token/signer"
	"fieldkey/internal/token/store/assignment"
	"fieldkey/internal/token/store/capability"
	id "fieldkey/pkg/domain"
	dErrors "fieldkey/pkg/domain-errors"
	"fieldkey/pkg/testutil"
)

type ServiceSuite struct {
	suite.Suite
	ctx         context.Context
	now         time.Time
	tokens      *capability.InMemoryStore
	assignments *assignment.InMemoryStore
	rounds      *round.InMemoryStore
	params      *params.InMemoryStore
	signer      *signer.Signer
	svc         *Service

	tenantID    id.TenantID
	territoryID id.TerritoryID
	blockID     id.BlockID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.ctx = testutil.ContextAt(s.now)
	s.tokens = capability.NewMemory()
	s.assignments = assignment.NewMemory()
	s.rounds = round.NewMemory()
	s.params = params.NewMemory()
	s.signer = signer.New("test-signing-key", "fieldkey-test")
	s.svc = New(testutil.Logger(), nil,
		s.tokens, s.assignments, round.NewService(s.rounds), s.params, s.signer, MemoryTx{})

	s.tenantID = id.NewTenantID()
	s.territoryID = id.NewTerritoryID()
	s.blockID = id.NewBlockID()

	s.rounds.SetOpenRound(s.territoryID, 3)
	s.rounds.PutInfo(&round.Info{
		TenantID: s.tenantID,
		Number:   3,
		Name:     "Spring 2026",
		Theme:    "return visits",
		StartsAt: s.now.AddDate(0, 0, -7),
		EndsAt:   s.now.AddDate(0, 1, 0),
	})
	s.Require().NoError(s.assignments.CreateBlock(s.ctx, &models.BlockAssignment{
		TenantID:    s.tenantID,
		TerritoryID: s.territoryID,
		BlockID:     s.blockID,
	}))
}

// at returns a context whose pinned clock reads t.
func (s *ServiceSuite) at(t time.Time) context.Context {
	return testutil.ContextAt(t)
}

func (s *ServiceSuite) issueTerritory() string {
	key, err := s.svc.IssueTerritoryToken(s.ctx, s.tenantID, s.territoryID, 3, "Maria", s.now.AddDate(0, 0, 14))
	s.Require().NoError(err)
	return key
}

func (s *ServiceSuite) TestIssueTerritoryToken() {
	key := s.issueTerritory()
	s.NotEmpty(key)

	token, err := s.tokens.Find(s.ctx, key)
	s.Require().NoError(err)
	s.Require().NotNil(token.ExpiresAt)

	// Expiry lands on the last second of the requested calendar day.
	want := time.Date(2026, 3, 24, 23, 59, 59, 0, time.UTC)
	s.Equal(want, *token.ExpiresAt)

	live, err := s.assignments.FindLiveTerritory(s.ctx, s.territoryID)
	s.Require().NoError(err)
	s.Equal(key, live.TokenKey)
	s.Equal("Maria", live.Holder)
	s.Equal(3, live.Round)
	s.False(live.Finished)
}

func (s *ServiceSuite) TestIssueTerritoryTokenExclusive() {
	s.issueTerritory()

	_, err := s.svc.IssueTerritoryToken(s.ctx, s.tenantID, s.territoryID, 3, "Jonas", s.now.AddDate(0, 0, 7))
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyIssued))
}

func (s *ServiceSuite) TestIssueTerritoryTokenIndependentTerritories() {
	s.issueTerritory()

	other := id.NewTerritoryID()
	s.rounds.SetOpenRound(other, 3)
	key, err := s.svc.IssueTerritoryToken(s.ctx, s.tenantID, other, 3, "Jonas", s.now.AddDate(0, 0, 7))
	s.NoError(err)
	s.NotEmpty(key)
}

func (s *ServiceSuite) TestIssueTerritoryTokenRoundNotOpen() {
	s.rounds.CloseRound(s.territoryID)

	_, err := s.svc.IssueTerritoryToken(s.ctx, s.tenantID, s.territoryID, 3, "Maria", s.now.AddDate(0, 0, 7))
	s.True(dErrors.HasCode(err, dErrors.CodeRoundNotOpen))
}

func (s *ServiceSuite) TestIssueTerritoryTokenInvalidInput() {
	_, err := s.svc.IssueTerritoryToken(s.ctx, s.tenantID, s.territoryID, 3, "", s.now.AddDate(0, 0, 7))
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.svc.IssueTerritoryToken(s.ctx, s.tenantID, s.territoryID, 3, "Maria", s.now.AddDate(0, 0, -2))
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestIssueTerritoryTokenAfterSweep() {
	key := s.issueTerritory()

	// Simulate the sweeper: token row gone, reference detached, assignment
	// left unfinished.
	s.Require().NoError(s.tokens.Delete(s.ctx, key))
	s.Require().NoError(s.assignments.DetachTokenKeys(s.ctx, []string{key}))

	fresh, err := s.svc.IssueTerritoryToken(s.ctx, s.tenantID, s.territoryID, 3, "Maria", s.now.AddDate(0, 0, 30))
	s.Require().NoError(err)
	s.NotEqual(key, fresh)

	live, err := s.assignments.FindLiveTerritory(s.ctx, s.territoryID)
	s.Require().NoError(err)
	s.Equal(fresh, live.TokenKey)
}

func (s *ServiceSuite) TestIssueBlockToken() {
	s.issueTerritory()

	key, err := s.svc.IssueBlockToken(s.ctx, s.tenantID, s.territoryID, s.blockID, 3)
	s.Require().NoError(err)

	token, err := s.tokens.Find(s.ctx, key)
	s.Require().NoError(err)
	s.Require().NotNil(token.ExpiresAt)
	s.Equal(s.now.Add(5*time.Hour), *token.ExpiresAt)

	claims, err := s.signer.Decode(token.SignedToken)
	s.Require().NoError(err)
	s.Equal(models.RolePublisher, claims.Role)
	s.Equal(s.blockID, claims.BlockID)
	s.Equal(3, claims.Round)
}

func (s *ServiceSuite) TestIssueBlockTokenTenantLifetime() {
	s.issueTerritory()
	s.params.Set(s.tenantID.String(), params.KeyBlockTokenLifetimeHours, "12")

	key, err := s.svc.IssueBlockToken(s.ctx, s.tenantID, s.territoryID, s.blockID, 3)
	s.Require().NoError(err)

	token, err := s.tokens.Find(s.ctx, key)
	s.Require().NoError(err)
	s.Equal(s.now.Add(12*time.Hour), *token.ExpiresAt)
}

func (s *ServiceSuite) TestIssueBlockTokenBadLifetimeFallsBack() {
	s.issueTerritory()
	s.params.Set(s.tenantID.String(), params.KeyBlockTokenLifetimeHours, "soon")

	key, err := s.svc.IssueBlockToken(s.ctx, s.tenantID, s.territoryID, s.blockID, 3)
	s.Require().NoError(err)

	token, err := s.tokens.Find(s.ctx, key)
	s.Require().NoError(err)
	s.Equal(s.now.Add(5*time.Hour), *token.ExpiresAt)
}

func (s *ServiceSuite) TestIssueBlockTokenExclusive() {
	s.issueTerritory()

	_, err := s.svc.IssueBlockToken(s.ctx, s.tenantID, s.territoryID, s.blockID, 3)
	s.Require().NoError(err)

	_, err = s.svc.IssueBlockToken(s.ctx, s.tenantID, s.territoryID, s.blockID, 3)
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyIssued))
}

func (s *ServiceSuite) TestIssueBlockTokenWithoutTerritoryAssignment() {
	// The block binding alone is the precondition; no overseer token needs
	// to be live for the territory.
	key, err := s.svc.IssueBlockToken(s.ctx, s.tenantID, s.territoryID, s.blockID, 7)
	s.Require().NoError(err)

	token, err := s.tokens.Find(s.ctx, key)
	s.Require().NoError(err)
	claims, err := s.signer.Decode(token.SignedToken)
	s.Require().NoError(err)
	s.Equal(7, claims.Round)
}

func (s *ServiceSuite) TestIssueBlockTokenUnknownBlock() {
	s.issueTerritory()

	_, err := s.svc.IssueBlockToken(s.ctx, s.tenantID, s.territoryID, id.NewBlockID(), 3)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestValidate() {
	key := s.issueTerritory()

	s.NoError(s.svc.Validate(s.ctx, key))
	s.True(dErrors.HasCode(s.svc.Validate(s.ctx, "no-such-key"), dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestValidateExpiryBoundary() {
	key := s.issueTerritory()
	expiry := time.Date(2026, 3, 24, 23, 59, 59, 0, time.UTC)

	s.NoError(s.svc.Validate(s.at(expiry.Add(-time.Second)), key))
	s.True(dErrors.HasCode(s.svc.Validate(s.at(expiry), key), dErrors.CodeExpired))
	s.True(dErrors.HasCode(s.svc.Validate(s.at(expiry.Add(time.Second)), key), dErrors.CodeExpired))
}

func (s *ServiceSuite) TestValidateNeverActivated() {
	s.Require().NoError(s.tokens.Create(s.ctx, &models.CapabilityToken{
		Key:       "dormant",
		TenantID:  s.tenantID,
		CreatedAt: s.now,
	}))

	s.True(dErrors.HasCode(s.svc.Validate(s.ctx, "dormant"), dErrors.CodeInvalidToken))
}

func (s *ServiceSuite) TestAuthorize() {
	key := s.issueTerritory()

	claims, err := s.svc.Authorize(s.ctx, key)
	s.Require().NoError(err)
	s.Equal(models.RoleOverseer, claims.Role)
	s.Equal(s.territoryID, claims.TerritoryID)
	s.Equal("Maria", claims.Holder)
	s.NotEmpty(claims.JTI)
}

func (s *ServiceSuite) TestResolveCredential() {
	key := s.issueTerritory()

	cred, err := s.svc.ResolveCredential(s.ctx, key)
	s.Require().NoError(err)
	s.NotEmpty(cred.SignedToken)
	s.Require().NotNil(cred.Round)
	s.Equal(3, cred.Round.Number)
	s.Equal("Spring 2026", cred.Round.Name)
}

func (s *ServiceSuite) TestResolveCredentialExpiredToken() {
	key := s.issueTerritory()
	after := time.Date(2026, 3, 25, 8, 0, 0, 0, time.UTC)

	// Expiry gates validation, not retrieval: while the row exists the
	// holder can still fetch the signed string it was issued.
	s.True(dErrors.HasCode(s.svc.Validate(s.at(after), key), dErrors.CodeExpired))

	cred, err := s.svc.ResolveCredential(s.at(after), key)
	s.Require().NoError(err)
	s.NotEmpty(cred.SignedToken)
	s.Equal("Spring 2026", cred.Round.Name)
}

func (s *ServiceSuite) TestResolveCredentialMissingRoundInfo() {
	s.rounds.SetOpenRound(s.territoryID, 4)
	key, err := s.svc.IssueTerritoryToken(s.ctx, s.tenantID, s.territoryID, 4, "Maria", s.now.AddDate(0, 0, 7))
	s.Require().NoError(err)

	_, err = s.svc.ResolveCredential(s.ctx, key)
	s.True(dErrors.HasCode(err, dErrors.CodeRoundInfoMissing))
}

func (s *ServiceSuite) TestRevokeTerritoryTokenCascades() {
	territoryKey := s.issueTerritory()

	secondBlock := id.NewBlockID()
	s.Require().NoError(s.assignments.CreateBlock(s.ctx, &models.BlockAssignment{
		TenantID:    s.tenantID,
		TerritoryID: s.territoryID,
		BlockID:     secondBlock,
	}))
	blockKey1, err := s.svc.IssueBlockToken(s.ctx, s.tenantID, s.territoryID, s.blockID, 3)
	s.Require().NoError(err)
	blockKey2, err := s.svc.IssueBlockToken(s.ctx, s.tenantID, s.territoryID, secondBlock, 3)
	s.Require().NoError(err)

	deleted, err := s.svc.RevokeTerritoryToken(s.ctx, s.territoryID)
	s.Require().NoError(err)
	s.Equal(3, deleted)

	for _, key := range []string{territoryKey, blockKey1, blockKey2} {
		s.True(dErrors.HasCode(s.svc.Validate(s.ctx, key), dErrors.CodeNotFound))
	}

	_, err = s.assignments.FindLiveTerritory(s.ctx, s.territoryID)
	s.Error(err)

	history, err := s.assignments.FindTerritoryHistory(s.ctx, s.territoryID, 3)
	s.Require().NoError(err)
	s.True(history.Finished)
	s.Empty(history.TokenKey)
	s.Require().NotNil(history.ExpiresAt)
	s.Equal(s.now, *history.ExpiresAt)

	binding, err := s.assignments.FindBlock(s.ctx, s.territoryID, s.blockID)
	s.Require().NoError(err)
	s.False(binding.Live())
}

func (s *ServiceSuite) TestRevokeTerritoryTokenThenReissue() {
	s.issueTerritory()
	_, err := s.svc.RevokeTerritoryToken(s.ctx, s.territoryID)
	s.Require().NoError(err)

	key, err := s.svc.IssueTerritoryToken(s.ctx, s.tenantID, s.territoryID, 3, "Jonas", s.now.AddDate(0, 0, 7))
	s.Require().NoError(err)
	s.NoError(s.svc.Validate(s.ctx, key))
}

func (s *ServiceSuite) TestRevokeTerritoryTokenNotFound() {
	_, err := s.svc.RevokeTerritoryToken(s.ctx, s.territoryID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestRevokeBlockToken() {
	territoryKey := s.issueTerritory()
	blockKey, err := s.svc.IssueBlockToken(s.ctx, s.tenantID, s.territoryID, s.blockID, 3)
	s.Require().NoError(err)

	s.Require().NoError(s.svc.RevokeBlockToken(s.ctx, s.territoryID, s.blockID))

	s.True(dErrors.HasCode(s.svc.Validate(s.ctx, blockKey), dErrors.CodeNotFound))
	// The overseer token is untouched.
	s.NoError(s.svc.Validate(s.ctx, territoryKey))

	// The freed block can get a new token.
	_, err = s.svc.IssueBlockToken(s.ctx, s.tenantID, s.territoryID, s.blockID, 3)
	s.NoError(err)
}

func (s *ServiceSuite) TestRevokeBlockTokenNotLive() {
	s.issueTerritory()

	err := s.svc.RevokeBlockToken(s.ctx, s.territoryID, s.blockID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// TestCampaignLifecycle walks one territory through a full cycle: overseer
// assignment, block hand-outs, block return, and final territory return.
func (s *ServiceSuite) TestCampaignLifecycle() {
	overseerKey, err := s.svc.IssueTerritoryToken(s.ctx, s.tenantID, s.territoryID, 3, "Maria", s.now.AddDate(0, 0, 14))
	s.Require().NoError(err)

	cred, err := s.svc.ResolveCredential(s.ctx, overseerKey)
	s.Require().NoError(err)
	s.Equal("Spring 2026", cred.Round.Name)

	blockKey, err := s.svc.IssueBlockToken(s.ctx, s.tenantID, s.territoryID, s.blockID, 3)
	s.Require().NoError(err)

	claims, err := s.svc.Authorize(s.ctx, blockKey)
	s.Require().NoError(err)
	s.True(claims.BlockScoped())
	s.Equal(s.blockID, claims.BlockID)

	// Publisher finishes the block and hands it back.
	s.Require().NoError(s.svc.RevokeBlockToken(s.ctx, s.territoryID, s.blockID))

	// Overseer hands the territory back; nothing stays valid.
	deleted, err := s.svc.RevokeTerritoryToken(s.ctx, s.territoryID)
	s.Require().NoError(err)
	s.Equal(1, deleted)
	s.True(dErrors.HasCode(s.svc.Validate(s.ctx, overseerKey), dErrors.CodeNotFound))
}
