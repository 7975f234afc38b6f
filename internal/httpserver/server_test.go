package httpserver

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/robalobadob/emoji-game/internal/auth"
	"github.com/robalobadob/emoji-game/internal/db"
	"github.com/robalobadob/emoji-game/internal/game"
	"github.com/robalobadob/emoji-game/internal/store"
)

var (
	testDefault = []game.Item{
		{ID: "grin", Token: "😀", Name: "Grin"},
		{ID: "wink", Token: "😉", Name: "Wink"},
		{ID: "cool", Token: "😎", Name: "Cool"},
	}
	testPool = append(append([]game.Item{}, testDefault...),
		game.Item{ID: "cat", Token: "🐱", Name: "Cat"},
		game.Item{ID: "dog", Token: "🐶", Name: "Dog"},
	)
)

type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newTestServer(t *testing.T) (*httptest.Server, *Server) {
	t.Helper()
	ts, srv, _ := newTestServerDB(t)
	return ts, srv
}

func newTestServerDB(t *testing.T) (*httptest.Server, *Server, *sql.DB) {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := db.Migrate(conn); err != nil {
		t.Fatal(err)
	}
	authSvc := auth.NewService(auth.NewUsers(conn), auth.Options{Secret: "test_secret"})
	srv, err := New(store.NewMemoryStore(), conn, authSvc, Options{
		ClientOrigin: "http://localhost:5173",
		DailySalt:    "test_salt",
		Default:      testDefault,
		Pool:         testPool,
	})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, srv, conn
}

func newClient(t *testing.T, ts *httptest.Server) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &client{t: t, base: ts.URL, http: &http.Client{Jar: jar, Timeout: 5 * time.Second}}
}

// do sends body as JSON (when non-nil) and decodes the response into out.
func (c *client) do(method, path string, body, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		c.t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.http.Do(req)
	if err != nil {
		c.t.Fatal(err)
	}
	defer res.Body.Close()
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			c.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return res.StatusCode
}

func (c *client) newGame() newGameRes {
	c.t.Helper()
	var g newGameRes
	if code := c.do(http.MethodPost, "/game/new", nil, &g); code != http.StatusCreated {
		c.t.Fatalf("new game: status %d", code)
	}
	if g.GameID == "" || g.Snapshot == nil {
		c.t.Fatalf("new game: %+v", g)
	}
	return g
}

func (c *client) click(id, itemID string) (eventRes, int) {
	c.t.Helper()
	var res eventRes
	code := c.do(http.MethodPost, "/game/"+id+"/click", clickReq{ItemID: itemID}, &res)
	return res, code
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	c := newClient(t, ts)
	var body map[string]bool
	if code := c.do(http.MethodGet, "/health", nil, &body); code != http.StatusOK || !body["ok"] {
		t.Fatalf("health: %d %v", code, body)
	}
	var nf map[string]string
	if code := c.do(http.MethodGet, "/nope", nil, &nf); code != http.StatusNotFound || nf["error"] != "not_found" {
		t.Fatalf("not found: %d %v", code, nf)
	}
}

func TestGame_WinFlow(t *testing.T) {
	ts, _ := newTestServer(t)
	c := newClient(t, ts)
	g := c.newGame()

	snap := g.Snapshot
	if snap.Phase != game.PhasePlaying || snap.Total != 3 || len(snap.DisplayOrder) != 3 || !snap.ShowRules {
		t.Fatalf("initial snapshot %+v", snap)
	}

	for i, id := range []string{"grin", "wink", "cool"} {
		res, code := c.click(g.GameID, id)
		if code != http.StatusOK {
			t.Fatalf("click %s: status %d", id, code)
		}
		want := game.ResultAccepted
		if i == 2 {
			want = game.ResultWon
		}
		if res.Result != want {
			t.Fatalf("click %s: result %q, want %q", id, res.Result, want)
		}
	}

	var got game.Snapshot
	c.do(http.MethodGet, "/game/"+g.GameID, nil, &got)
	if got.Phase != game.PhaseWon || got.Outcome == nil || got.Outcome.Score != 3 || got.TopScore != 3 {
		t.Fatalf("final snapshot %+v", got)
	}
	if len(got.DisplayOrder) != 0 {
		t.Fatalf("board should be empty after the round, got %d items", len(got.DisplayOrder))
	}

	var views viewsRes
	c.do(http.MethodGet, "/game/"+g.GameID+"/views", nil, &views)
	if views.Status.ShowScores || views.Result == nil || views.Result.Title != "You Won" {
		t.Fatalf("views %+v", views)
	}
}

func TestGame_LossResetKeepsTopScore(t *testing.T) {
	ts, _ := newTestServer(t)
	c := newClient(t, ts)
	g := c.newGame()

	c.click(g.GameID, "grin")
	c.click(g.GameID, "wink")
	res, _ := c.click(g.GameID, "grin")
	if res.Result != game.ResultLost || res.Snapshot.Outcome == nil || res.Snapshot.Outcome.Score != 2 {
		t.Fatalf("repeat click: %+v", res)
	}

	// Clicks after the round are ignored.
	res, code := c.click(g.GameID, "cool")
	if code != http.StatusOK || res.Result != game.ResultIgnored || res.Snapshot.ClickedCount != 2 {
		t.Fatalf("late click: %d %+v", code, res)
	}

	var reset eventRes
	if code := c.do(http.MethodPost, "/game/"+g.GameID+"/reset", nil, &reset); code != http.StatusOK {
		t.Fatalf("reset: %d", code)
	}
	if reset.Result != game.ResultReset || !reset.Snapshot.Active || reset.Snapshot.ClickedCount != 0 || reset.Snapshot.TopScore != 2 {
		t.Fatalf("reset snapshot %+v", reset.Snapshot)
	}
}

func TestGame_UnknownItemKeepsState(t *testing.T) {
	ts, _ := newTestServer(t)
	c := newClient(t, ts)
	g := c.newGame()
	c.click(g.GameID, "grin")

	var e map[string]string
	if code := c.do(http.MethodPost, "/game/"+g.GameID+"/click", clickReq{ItemID: "dragon"}, &e); code != http.StatusBadRequest || e["error"] != "unknown_item" {
		t.Fatalf("unknown item: %d %v", code, e)
	}
	var snap game.Snapshot
	c.do(http.MethodGet, "/game/"+g.GameID, nil, &snap)
	if !snap.Active || snap.ClickedCount != 1 {
		t.Fatalf("state changed: %+v", snap)
	}

	if code := c.do(http.MethodPost, "/game/"+g.GameID+"/click", nil, &e); code != http.StatusBadRequest {
		t.Fatalf("empty body: status %d", code)
	}
}

func TestGame_DismissRules(t *testing.T) {
	ts, _ := newTestServer(t)
	c := newClient(t, ts)
	g := c.newGame()

	var res eventRes
	c.do(http.MethodPost, "/game/"+g.GameID+"/rules/dismiss", nil, &res)
	if res.Result != game.ResultRules || res.Snapshot.ShowRules {
		t.Fatalf("dismiss: %+v", res)
	}
	c.do(http.MethodPost, "/game/"+g.GameID+"/reset", nil, &res)
	if res.Snapshot.ShowRules {
		t.Fatal("rules reappeared after reset")
	}
}

func TestGame_OtherPlayersCannotSeeSession(t *testing.T) {
	ts, _ := newTestServer(t)
	alice := newClient(t, ts)
	g := alice.newGame()

	bob := newClient(t, ts)
	var e map[string]string
	if code := bob.do(http.MethodGet, "/game/"+g.GameID, nil, &e); code != http.StatusNotFound {
		t.Fatalf("foreign session: status %d", code)
	}
	if _, code := bob.click(g.GameID, "grin"); code != http.StatusNotFound {
		t.Fatalf("foreign click: status %d", code)
	}
	if code := alice.do(http.MethodGet, "/game/deadbeef", nil, &e); code != http.StatusNotFound {
		t.Fatalf("missing session: status %d", code)
	}
}

func TestDaily_OneRoundPerDay(t *testing.T) {
	ts, _ := newTestServer(t)
	c := newClient(t, ts)

	var g newGameRes
	if code := c.do(http.MethodPost, "/daily/new", nil, &g); code != http.StatusCreated {
		t.Fatalf("daily new: %d", code)
	}
	if g.Mode != game.ModeDaily || g.Date == "" || g.Snapshot == nil || g.Snapshot.Total != len(testDefault) {
		t.Fatalf("daily new: %+v", g)
	}

	// Asking again before finishing resumes the same session.
	var again newGameRes
	if code := c.do(http.MethodPost, "/daily/new", nil, &again); code != http.StatusOK || again.GameID != g.GameID {
		t.Fatalf("daily resume: %d %+v", code, again)
	}

	for _, it := range g.Snapshot.DisplayOrder {
		c.click(g.GameID, it.ID)
	}
	var snap game.Snapshot
	c.do(http.MethodGet, "/game/"+g.GameID, nil, &snap)
	if snap.Phase != game.PhaseWon {
		t.Fatalf("daily phase %q", snap.Phase)
	}

	var e map[string]string
	if code := c.do(http.MethodPost, "/game/"+g.GameID+"/reset", nil, &e); code != http.StatusConflict || e["error"] != "locked" {
		t.Fatalf("daily replay: %d %v", code, e)
	}

	var played newGameRes
	if code := c.do(http.MethodPost, "/daily/new", nil, &played); code != http.StatusOK || !played.Played || played.GameID != "" {
		t.Fatalf("daily after result: %d %+v", code, played)
	}

	var lb lbRes
	if code := c.do(http.MethodGet, "/daily/leaderboard", nil, &lb); code != http.StatusOK {
		t.Fatalf("leaderboard: %d", code)
	}
	if lb.Date != g.Date || len(lb.Top) != 1 || !lb.Top[0].Won || lb.Top[0].Score != len(testDefault) {
		t.Fatalf("leaderboard %+v", lb)
	}

	if code := c.do(http.MethodGet, "/daily/leaderboard?date=yesterday", nil, &e); code != http.StatusBadRequest || e["error"] != "bad_date" {
		t.Fatalf("bad date: %d %v", code, e)
	}
}

func TestAuth_SignupStatsAndHistory(t *testing.T) {
	ts, _ := newTestServer(t)
	c := newClient(t, ts)

	// A guest round is claimed on signup.
	g := c.newGame()
	c.click(g.GameID, "grin")
	c.click(g.GameID, "grin")

	creds := credentialsReq{Username: "alice", Password: "correct horse"}
	var e map[string]string
	if code := c.do(http.MethodGet, "/auth/me", nil, &e); code != http.StatusUnauthorized {
		t.Fatalf("me before signup: %d", code)
	}
	if code := c.do(http.MethodPost, "/auth/signup", creds, nil); code != http.StatusCreated {
		t.Fatalf("signup: %d", code)
	}
	if code := newClient(t, ts).do(http.MethodPost, "/auth/signup", creds, &e); code != http.StatusConflict {
		t.Fatalf("duplicate signup: %d %v", code, e)
	}

	var me auth.Principal
	if code := c.do(http.MethodGet, "/auth/me", nil, &me); code != http.StatusOK || me.Username != "alice" {
		t.Fatalf("me: %d %+v", code, me)
	}

	g = c.newGame()
	for _, id := range []string{"grin", "wink", "cool"} {
		c.click(g.GameID, id)
	}

	var stats map[string]any
	c.do(http.MethodGet, "/stats/me", nil, &stats)
	if stats["gamesPlayed"] != float64(1) || stats["wins"] != float64(1) || stats["bestScore"] != float64(3) {
		t.Fatalf("stats %v", stats)
	}

	var rounds []store.RoundRecord
	c.do(http.MethodGet, "/rounds/mine", nil, &rounds)
	if len(rounds) != 2 {
		t.Fatalf("rounds/mine: got %d rounds, want 2 (one claimed guest round)", len(rounds))
	}

	if code := c.do(http.MethodPost, "/auth/logout", nil, nil); code != http.StatusOK {
		t.Fatalf("logout: %d", code)
	}
	if code := c.do(http.MethodGet, "/auth/me", nil, &e); code != http.StatusUnauthorized {
		t.Fatalf("me after logout: %d", code)
	}

	other := newClient(t, ts)
	bad := credentialsReq{Username: "alice", Password: "wrong password"}
	if code := other.do(http.MethodPost, "/auth/login", bad, &e); code != http.StatusUnauthorized {
		t.Fatalf("bad login: %d", code)
	}
	if code := other.do(http.MethodPost, "/auth/login", creds, nil); code != http.StatusOK {
		t.Fatalf("login: %d", code)
	}
}

func TestStream_PushesSnapshots(t *testing.T) {
	ts, _ := newTestServer(t)
	c := newClient(t, ts)
	g := c.newGame()

	dialer := websocket.Dialer{Jar: c.http.Jar, HandshakeTimeout: 2 * time.Second}
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/game/" + g.GameID + "/ws"
	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var msg streamMsg
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != "snapshot" || msg.Snapshot == nil || msg.Snapshot.ClickedCount != 0 {
		t.Fatalf("first frame %+v", msg)
	}

	// A click over HTTP reaches the stream.
	c.click(g.GameID, "grin")
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Snapshot == nil || msg.Snapshot.ClickedCount != 1 {
		t.Fatalf("after http click %+v", msg)
	}

	// Events sent on the stream are applied too.
	if err := conn.WriteJSON(game.Click("wink")); err != nil {
		t.Fatal(err)
	}
	msg = streamMsg{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Snapshot == nil || msg.Snapshot.ClickedCount != 2 {
		t.Fatalf("after ws click %+v", msg)
	}

	if err := conn.WriteJSON(game.Click("dragon")); err != nil {
		t.Fatal(err)
	}
	msg = streamMsg{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != "error" || msg.Error != "unknown_item" {
		t.Fatalf("bad ws click %+v", msg)
	}
}

func TestStream_RejectsStrangers(t *testing.T) {
	ts, _ := newTestServer(t)
	g := newClient(t, ts).newGame()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/game/" + g.GameID + "/ws"
	_, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("stranger connected to a foreign session")
	}
	if res == nil || res.StatusCode != http.StatusNotFound {
		t.Fatalf("handshake response %v", res)
	}
}

// playDaily starts today's daily round and clicks every item once.
func (c *client) playDaily() newGameRes {
	c.t.Helper()
	var g newGameRes
	if code := c.do(http.MethodPost, "/daily/new", nil, &g); code != http.StatusCreated {
		c.t.Fatalf("daily new: %d", code)
	}
	for _, it := range g.Snapshot.DisplayOrder {
		c.click(g.GameID, it.ID)
	}
	return g
}

func TestDaily_GuestResultFollowsSignup(t *testing.T) {
	ts, _ := newTestServer(t)
	c := newClient(t, ts)
	c.playDaily()

	creds := credentialsReq{Username: "dora", Password: "daily deck fan"}
	if code := c.do(http.MethodPost, "/auth/signup", creds, nil); code != http.StatusCreated {
		t.Fatalf("signup: %d", code)
	}

	var again newGameRes
	code := c.do(http.MethodPost, "/daily/new", nil, &again)
	if code != http.StatusOK || !again.Played || again.GameID != "" {
		t.Fatalf("after signup: %d %+v", code, again)
	}

	// The claimed result carries the account name on the leaderboard.
	var lb lbRes
	c.do(http.MethodGet, "/daily/leaderboard", nil, &lb)
	if len(lb.Top) != 1 || lb.Top[0].Username != "dora" {
		t.Fatalf("leaderboard %+v", lb)
	}
}

func TestDaily_SignupMidRoundResumesSession(t *testing.T) {
	ts, _ := newTestServer(t)
	c := newClient(t, ts)

	var g newGameRes
	if code := c.do(http.MethodPost, "/daily/new", nil, &g); code != http.StatusCreated {
		t.Fatalf("daily new: %d", code)
	}
	creds := credentialsReq{Username: "eve", Password: "halfway there"}
	if code := c.do(http.MethodPost, "/auth/signup", creds, nil); code != http.StatusCreated {
		t.Fatalf("signup: %d", code)
	}

	var again newGameRes
	if code := c.do(http.MethodPost, "/daily/new", nil, &again); code != http.StatusOK || again.GameID != g.GameID {
		t.Fatalf("resume after signup: %d %+v", code, again)
	}

	for _, it := range g.Snapshot.DisplayOrder {
		c.click(g.GameID, it.ID)
	}
	var me auth.Principal
	c.do(http.MethodGet, "/auth/me", nil, &me)
	var lb lbRes
	c.do(http.MethodGet, "/daily/leaderboard", nil, &lb)
	if len(lb.Top) != 1 || lb.Top[0].UserID != me.ID {
		t.Fatalf("leaderboard %+v, want result under %s", lb, me.ID)
	}
}

func TestGame_SignupMidRoundRecordsToAccount(t *testing.T) {
	ts, _ := newTestServer(t)
	c := newClient(t, ts)
	g := c.newGame()
	c.click(g.GameID, "grin")

	creds := credentialsReq{Username: "frank", Password: "mid round signup"}
	if code := c.do(http.MethodPost, "/auth/signup", creds, nil); code != http.StatusCreated {
		t.Fatalf("signup: %d", code)
	}
	res, code := c.click(g.GameID, "grin")
	if code != http.StatusOK || res.Result != game.ResultLost {
		t.Fatalf("repeat click after signup: %d %+v", code, res)
	}

	var rounds []store.RoundRecord
	c.do(http.MethodGet, "/rounds/mine", nil, &rounds)
	if len(rounds) != 1 || rounds[0].SessionID != g.GameID || rounds[0].Score != 1 {
		t.Fatalf("rounds/mine %+v", rounds)
	}
	var stats map[string]any
	c.do(http.MethodGet, "/stats/me", nil, &stats)
	if stats["gamesPlayed"] != float64(1) || stats["wins"] != float64(0) || stats["bestScore"] != float64(1) {
		t.Fatalf("stats %v", stats)
	}
}

func TestDaily_PrunedSessionIsForgotten(t *testing.T) {
	ts, srv := newTestServer(t)
	c := newClient(t, ts)

	var g newGameRes
	if code := c.do(http.MethodPost, "/daily/new", nil, &g); code != http.StatusCreated {
		t.Fatalf("daily new: %d", code)
	}
	if err := srv.sessions.Delete(context.Background(), g.GameID); err != nil {
		t.Fatal(err)
	}

	var fresh newGameRes
	if code := c.do(http.MethodPost, "/daily/new", nil, &fresh); code != http.StatusCreated || fresh.GameID == g.GameID {
		t.Fatalf("after prune: %d %+v", code, fresh)
	}
	srv.daily.mu.Lock()
	defer srv.daily.mu.Unlock()
	if len(srv.daily.sessions) != 1 {
		t.Fatalf("daily registrations %v, want only the new session", srv.daily.sessions)
	}
	for _, id := range srv.daily.sessions {
		if id != fresh.GameID {
			t.Fatalf("registered %s, want %s", id, fresh.GameID)
		}
	}
}

func TestDaily_FailedResultKeepsSession(t *testing.T) {
	ts, srv, conn := newTestServerDB(t)
	c := newClient(t, ts)

	var g newGameRes
	if code := c.do(http.MethodPost, "/daily/new", nil, &g); code != http.StatusCreated {
		t.Fatalf("daily new: %d", code)
	}
	if _, err := conn.Exec(`DROP TABLE daily_results`); err != nil {
		t.Fatal(err)
	}
	for _, it := range g.Snapshot.DisplayOrder {
		c.click(g.GameID, it.ID)
	}

	srv.daily.mu.Lock()
	defer srv.daily.mu.Unlock()
	found := false
	for _, id := range srv.daily.sessions {
		found = found || id == g.GameID
	}
	if !found {
		t.Fatal("daily session dropped although its result was not stored")
	}
}

func TestStats_UnknownUserIsServerError(t *testing.T) {
	_, srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/stats/me", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), &auth.Principal{ID: "gone", Username: "ghost"}))
	rec := httptest.NewRecorder()

	srv.handleStats(rec, req)

	var e map[string]string
	_ = json.NewDecoder(rec.Body).Decode(&e)
	if rec.Code != http.StatusInternalServerError || e["error"] != "db_error" {
		t.Fatalf("stats for unknown user: %d %v", rec.Code, e)
	}
}
