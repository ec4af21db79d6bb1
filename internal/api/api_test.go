package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/nimnim111/LeetDuel-Online/internal/game"
	"github.com/nimnim111/LeetDuel-Online/internal/model"
	"github.com/nimnim111/LeetDuel-Online/internal/store/memory"
)

func newTestRouter(t *testing.T) (*gin.Engine, *game.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rankings := memory.NewRankings()
	ctx := context.Background()
	rankings.UpsertScore(ctx, "u1", "alice", "a@example.com", 120, true)
	rankings.UpsertScore(ctx, "u2", "bob", "", 80, false)
	rankings.UpsertScore(ctx, "u3", "carol", "", 30, false)

	gm := game.NewManager(game.Options{Rankings: rankings})
	r := gin.New()
	(&Handler{Rankings: rankings, Lobby: gm}).Register(r)
	return r, gm
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	if w := get(r, "/"); w.Code != http.StatusOK {
		t.Fatalf("expected 200 on /, got %d", w.Code)
	}
	w := get(r, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["ok"] != true {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestLadder(t *testing.T) {
	r, _ := newTestRouter(t)
	w := get(r, "/ladder?limit=2")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Ladder []model.RankRecord `json:"ladder"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("should be able to decode: %v", err)
	}
	if len(body.Ladder) != 2 || body.Ladder[0].Username != "alice" || body.Ladder[1].Rank != 2 {
		t.Fatalf("unexpected ladder %+v", body.Ladder)
	}
	if w := get(r, "/ladder?limit=zero"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}
}

func TestLadderUser(t *testing.T) {
	r, _ := newTestRouter(t)
	w := get(r, "/ladder/user/u2")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var rec model.RankRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("should be able to decode: %v", err)
	}
	if rec.Username != "bob" || rec.Rank != 2 || rec.GamesPlayed != 1 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if w := get(r, "/ladder/user/ghost"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestParties(t *testing.T) {
	r, gm := newTestRouter(t)
	code, err := gm.CreateParty("c1", "alice", "u1", "")
	if err != nil {
		t.Fatalf("should be able to create party: %v", err)
	}
	w := get(r, "/parties")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Parties []game.PartySummary `json:"parties"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("should be able to decode: %v", err)
	}
	if len(body.Parties) != 1 || body.Parties[0].Code != code {
		t.Fatalf("unexpected parties %+v", body.Parties)
	}
}
