package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"fieldkey/internal/offline"
)

func (s *TransportSuite) TestOfflineSnapshot() {
	s.issueTerritoryKey()
	key := s.issueBlockKey()

	resp := s.do(http.MethodGet, "/offline/territories/"+s.territoryID.String()+"?key="+key, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var snap offline.Snapshot
	s.decode(resp, &snap)
	s.Equal("T-12 Eastside", snap.TerritoryName)
	s.Equal(3, snap.Round)
	s.Require().Len(snap.Blocks, 1)
	s.Equal(s.blockID, snap.Blocks[0].ID)
	s.Require().Len(snap.Blocks[0].Houses, 1)
	s.Equal("Elm St 1", snap.Blocks[0].Houses[0].Address)
}

func (s *TransportSuite) TestOfflineSnapshotMissingKey() {
	resp := s.do(http.MethodGet, "/offline/territories/"+s.territoryID.String(), nil)
	resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *TransportSuite) TestOfflineSnapshotUnknownKey() {
	resp := s.do(http.MethodGet, "/offline/territories/"+s.territoryID.String()+"?key=nope", nil)
	resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *TransportSuite) TestOfflineSync() {
	s.issueTerritoryKey()
	key := s.issueBlockKey()

	resp := s.do(http.MethodPost, "/offline/sync", map[string]any{
		"key":          key,
		"territory_id": s.territoryID.String(),
		"changes": []map[string]any{
			{"house_id": s.houseID.String(), "completed": true, "visited_at": time.Now().UTC().Format(time.RFC3339)},
		},
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var result offline.SyncResult
	s.decode(resp, &result)
	s.Equal(1, result.Accepted)
	s.Zero(result.Skipped)
	s.NotEmpty(result.BatchID)

	record, err := s.visits.Find(context.Background(), s.houseID, 3)
	s.Require().NoError(err)
	s.True(record.Completed)
}

func (s *TransportSuite) TestOfflineSyncRevokedToken() {
	s.issueTerritoryKey()
	key := s.issueBlockKey()

	resp := s.do(http.MethodDelete, "/tokens/territory/"+s.territoryID.String(), nil)
	resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	sync := s.do(http.MethodPost, "/offline/sync", map[string]any{
		"key":          key,
		"territory_id": s.territoryID.String(),
		"changes":      []map[string]any{},
	})
	defer sync.Body.Close()
	s.Equal(http.StatusNotFound, sync.StatusCode)

	var body map[string]string
	s.Require().NoError(json.NewDecoder(sync.Body).Decode(&body))
	s.Equal("not_found", body["error"])
}
