package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fieldkey/internal/offline"
	"fieldkey/internal/offline/store/batch"
	"fieldkey/internal/params"
	"fieldkey/internal/round"
	"fieldkey/internal/territory"
	"fieldkey/internal/token/models"
	tokensvc "fieldkey/internal/token/service"
	"fieldkey/internal/token/signer"
	"fieldkey/internal/token/store/assignment"
	"fieldkey/internal/token/store/capability"
	"fieldkey/internal/visit"
	id "fieldkey/pkg/domain"
	"fieldkey/pkg/testutil"
)

// TransportSuite runs the full router over in-memory stores.
type TransportSuite struct {
	suite.Suite
	server *httptest.Server

	tenantID    id.TenantID
	territoryID id.TerritoryID
	blockID     id.BlockID
	houseID     id.HouseID

	rounds *round.InMemoryStore
	visits *visit.InMemoryStore
}

func TestTransportSuite(t *testing.T) {
	suite.Run(t, new(TransportSuite))
}

func (s *TransportSuite) SetupTest() {
	s.tenantID = id.NewTenantID()
	s.territoryID = id.NewTerritoryID()
	s.blockID = id.NewBlockID()
	s.houseID = id.NewHouseID()

	s.rounds = round.NewMemory()
	s.rounds.SetOpenRound(s.territoryID, 3)
	s.rounds.PutInfo(&round.Info{
		TenantID: s.tenantID,
		Number:   3,
		Name:     "Spring 2026",
		StartsAt: time.Now().AddDate(0, 0, -7),
		EndsAt:   time.Now().AddDate(0, 1, 0),
	})

	assignments := assignment.NewMemory()
	s.Require().NoError(assignments.CreateBlock(context.Background(), &models.BlockAssignment{
		TenantID: s.tenantID, TerritoryID: s.territoryID, BlockID: s.blockID,
	}))

	tree := territory.NewMemory()
	tree.PutTerritory(&territory.Territory{ID: s.territoryID, TenantID: s.tenantID, Name: "T-12 Eastside"})
	tree.PutBlock(&territory.Block{ID: s.blockID, TerritoryID: s.territoryID, Name: "A"})
	tree.PutHouse(&territory.House{ID: s.houseID, BlockID: s.blockID, TerritoryID: s.territoryID, TenantID: s.tenantID, Address: "Elm St 1"})

	logger := testutil.Logger()
	tokens := tokensvc.New(logger, nil,
		capability.NewMemory(), assignments, round.NewService(s.rounds), params.NewMemory(),
		signer.New("test-signing-key", "fieldkey-test"), tokensvc.MemoryTx{})
	s.visits = visit.NewMemory()
	offlineSvc := offline.New(logger, nil, tokens, tree, s.visits, batch.NewMemory())

	router := NewRouter(logger, nil,
		NewTokenHandler(logger, tokens),
		NewOfflineHandler(logger, offlineSvc))
	s.server = httptest.NewServer(router)
}

func (s *TransportSuite) TearDownTest() {
	s.server.Close()
}

func (s *TransportSuite) do(method, path string, body any) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *TransportSuite) decode(resp *http.Response, into any) {
	defer resp.Body.Close()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(into))
}

func (s *TransportSuite) issueTerritoryKey() string {
	resp := s.do(http.MethodPost, "/tokens/territory", map[string]any{
		"tenant_id":       s.tenantID.String(),
		"territory_id":    s.territoryID.String(),
		"round":           3,
		"holder":          "Maria",
		"expiration_date": time.Now().AddDate(0, 0, 14).Format("2006-01-02"),
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var body map[string]string
	s.decode(resp, &body)
	s.Require().NotEmpty(body["key"])
	return body["key"]
}

func (s *TransportSuite) issueBlockKey() string {
	resp := s.do(http.MethodPost, "/tokens/block", map[string]any{
		"tenant_id":    s.tenantID.String(),
		"territory_id": s.territoryID.String(),
		"block_id":     s.blockID.String(),
		"round":        3,
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var body map[string]string
	s.decode(resp, &body)
	return body["key"]
}

func (s *TransportSuite) TestIssueBlockMissingRound() {
	resp := s.do(http.MethodPost, "/tokens/block", map[string]any{
		"tenant_id":    s.tenantID.String(),
		"territory_id": s.territoryID.String(),
		"block_id":     s.blockID.String(),
	})
	resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *TransportSuite) TestIssueTerritory() {
	s.issueTerritoryKey()
}

func (s *TransportSuite) TestIssueTerritoryConflict() {
	s.issueTerritoryKey()

	resp := s.do(http.MethodPost, "/tokens/territory", map[string]any{
		"tenant_id":       s.tenantID.String(),
		"territory_id":    s.territoryID.String(),
		"round":           3,
		"holder":          "Jonas",
		"expiration_date": time.Now().AddDate(0, 0, 7).Format("2006-01-02"),
	})
	defer resp.Body.Close()
	s.Equal(http.StatusConflict, resp.StatusCode)

	var body map[string]string
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.Equal("already_issued", body["error"])
}

func (s *TransportSuite) TestIssueTerritoryRoundNotOpen() {
	s.rounds.CloseRound(s.territoryID)

	resp := s.do(http.MethodPost, "/tokens/territory", map[string]any{
		"tenant_id":       s.tenantID.String(),
		"territory_id":    s.territoryID.String(),
		"round":           3,
		"holder":          "Maria",
		"expiration_date": time.Now().AddDate(0, 0, 7).Format("2006-01-02"),
	})
	defer resp.Body.Close()
	s.Equal(http.StatusConflict, resp.StatusCode)

	var body map[string]string
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.Equal("round_not_open", body["error"])
}

func (s *TransportSuite) TestIssueTerritoryBadRequest() {
	for name, payload := range map[string]map[string]any{
		"missing holder": {
			"tenant_id": s.tenantID.String(), "territory_id": s.territoryID.String(),
			"round": 3, "expiration_date": "2030-01-01",
		},
		"bad territory id": {
			"tenant_id": s.tenantID.String(), "territory_id": "not-a-uuid",
			"round": 3, "holder": "Maria", "expiration_date": "2030-01-01",
		},
		"bad date": {
			"tenant_id": s.tenantID.String(), "territory_id": s.territoryID.String(),
			"round": 3, "holder": "Maria", "expiration_date": "January 1st",
		},
		"zero round": {
			"tenant_id": s.tenantID.String(), "territory_id": s.territoryID.String(),
			"round": 0, "holder": "Maria", "expiration_date": "2030-01-01",
		},
	} {
		resp := s.do(http.MethodPost, "/tokens/territory", payload)
		resp.Body.Close()
		s.Equalf(http.StatusBadRequest, resp.StatusCode, "case %q", name)
	}
}

func (s *TransportSuite) TestCredentialLookup() {
	key := s.issueTerritoryKey()

	resp := s.do(http.MethodGet, "/credentials/"+key, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var body struct {
		Token string      `json:"token"`
		Round *round.Info `json:"round"`
	}
	s.decode(resp, &body)
	s.NotEmpty(body.Token)
	s.Require().NotNil(body.Round)
	s.Equal("Spring 2026", body.Round.Name)
}

func (s *TransportSuite) TestCredentialUnknownKey() {
	resp := s.do(http.MethodGet, "/credentials/nope", nil)
	resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *TransportSuite) TestRevokeTerritoryCascades() {
	key := s.issueTerritoryKey()
	blockKey := s.issueBlockKey()

	resp := s.do(http.MethodDelete, "/tokens/territory/"+s.territoryID.String(), nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var body map[string]int
	s.decode(resp, &body)
	s.Equal(2, body["revoked"])

	for _, k := range []string{key, blockKey} {
		resp := s.do(http.MethodGet, "/credentials/"+k, nil)
		resp.Body.Close()
		s.Equal(http.StatusNotFound, resp.StatusCode)
	}
}

func (s *TransportSuite) TestRevokeBlock() {
	s.issueTerritoryKey()
	blockKey := s.issueBlockKey()

	resp := s.do(http.MethodDelete,
		fmt.Sprintf("/tokens/territory/%s/block/%s", s.territoryID, s.blockID), nil)
	resp.Body.Close()
	s.Equal(http.StatusNoContent, resp.StatusCode)

	check := s.do(http.MethodGet, "/credentials/"+blockKey, nil)
	check.Body.Close()
	s.Equal(http.StatusNotFound, check.StatusCode)
}

func (s *TransportSuite) TestRevokeTerritoryNotFound() {
	resp := s.do(http.MethodDelete, "/tokens/territory/"+id.NewTerritoryID().String(), nil)
	resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *TransportSuite) TestHealthz() {
	resp := s.do(http.MethodGet, "/healthz", nil)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *TransportSuite) TestMetricsExposed() {
	resp := s.do(http.MethodGet, "/metrics", nil)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}
