package web

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaminalder/tictactoe-history/internal/app"
	"github.com/jaminalder/tictactoe-history/internal/domain"
)

func newTestServer(t *testing.T) (*app.Service, http.Handler) {
	t.Helper()
	s := app.NewService(nil)
	h := NewServer(s, Config{})
	return s, h
}

func postForm(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestIndexPage(t *testing.T) {
	_, h := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "<html>")
	assert.Contains(t, body, "<form")
	assert.Contains(t, body, `action="/game"`)
}

func TestCreateRedirectsToGame(t *testing.T) {
	_, h := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/game", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Location"), "/game/"))
}

func TestGamePageRendersBoardAndMoves(t *testing.T) {
	svc, h := newTestServer(t)
	gs, err := svc.CreateGame()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/game/"+url.PathEscape(gs.ID), nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `id="board"`)
	assert.Equal(t, 9, strings.Count(body, `name="cell"`))
	assert.Contains(t, body, "Next player: X")
	assert.Contains(t, body, "Go to game start")
	// SSE wiring present
	assert.Contains(t, body, `hx-ext="sse"`)
	assert.Contains(t, body, "/game/"+gs.ID+"/events")
}

func TestGamePageUnknownID(t *testing.T) {
	_, h := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/game/missing", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPlayEndpointUpdatesStateAndReturnsFragment(t *testing.T) {
	svc, h := newTestServer(t)
	gs, _ := svc.CreateGame()

	rr := postForm(t, h, "/game/"+gs.ID+"/play", url.Values{"cell": {"4"}})

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `id="board"`)
	assert.Contains(t, body, "Next player: O")
	assert.Contains(t, body, "Go to move #1")
	assert.NotContains(t, body, `class="alert"`)

	latest, _ := svc.Get(gs.ID)
	assert.Equal(t, domain.X, latest.Game.Current()[4])
}

func TestPlayEndpointBadCell(t *testing.T) {
	svc, h := newTestServer(t)
	gs, _ := svc.CreateGame()

	for _, v := range []string{"9", "-3", "abc", ""} {
		rr := postForm(t, h, "/game/"+gs.ID+"/play", url.Values{"cell": {v}})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "No such cell", "cell %q", v)
	}
	latest, _ := svc.Get(gs.ID)
	assert.Equal(t, 1, latest.Game.Len())
}

func TestPlayEndpointUnknownGame(t *testing.T) {
	_, h := newTestServer(t)

	rr := postForm(t, h, "/game/missing/play", url.Values{"cell": {"0"}})

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPlayAfterWinShowsWinner(t *testing.T) {
	svc, h := newTestServer(t)
	gs, _ := svc.CreateGame()
	for _, c := range []string{"0", "4", "1", "5", "2"} {
		postForm(t, h, "/game/"+gs.ID+"/play", url.Values{"cell": {c}})
	}

	rr := postForm(t, h, "/game/"+gs.ID+"/play", url.Values{"cell": {"3"}})

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Winner: X")
	assert.NotContains(t, rr.Body.String(), `class="alert"`)
	latest, _ := svc.Get(gs.ID)
	assert.Equal(t, 6, latest.Game.Len())
}

func TestJumpEndpoint(t *testing.T) {
	svc, h := newTestServer(t)
	gs, _ := svc.CreateGame()
	for _, c := range []int{0, 4, 1} {
		_, err := svc.Play(gs.ID, c)
		require.NoError(t, err)
	}

	rr := postForm(t, h, "/game/"+gs.ID+"/jump", url.Values{"step": {"0"}})

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Next player: X")
	assert.Contains(t, body, "Go to move #3")
	assert.NotContains(t, body, ">X</button>")

	latest, _ := svc.Get(gs.ID)
	assert.Equal(t, 0, latest.Game.Step())
	assert.Equal(t, 4, latest.Game.Len())
}

func TestJumpEndpointBadStep(t *testing.T) {
	svc, h := newTestServer(t)
	gs, _ := svc.CreateGame()

	rr := postForm(t, h, "/game/"+gs.ID+"/jump", url.Values{"step": {"5"}})

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "No such move")
}

func TestEventsEndpointSSEHeaders(t *testing.T) {
	_, h := newTestServer(t)
	reqCreate := httptest.NewRequest(http.MethodPost, "/game", nil)
	rrCreate := httptest.NewRecorder()
	h.ServeHTTP(rrCreate, reqCreate)
	loc := rrCreate.Header().Get("Location")
	require.NotEmpty(t, loc)

	req := httptest.NewRequest(http.MethodGet, loc+"/events", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/event-stream"))
}

func TestEventsEndpointUnknownGame(t *testing.T) {
	_, h := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/game/missing/events", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBroadcastCarriesRenderedBoard(t *testing.T) {
	svc, _ := newTestServer(t)
	gs, _ := svc.CreateGame()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ch, unsub, err := svc.Subscribe(ctx, gs.ID)
	require.NoError(t, err)
	defer unsub()

	_, err = svc.Play(gs.ID, 0)
	require.NoError(t, err)

	select {
	case b := <-ch:
		assert.Contains(t, string(b), `id="board"`)
		assert.Contains(t, string(b), "Next player: O")
	case <-ctx.Done():
		t.Fatalf("timed out waiting for broadcast")
	}
}

func TestWriteEvent(t *testing.T) {
	var buf bytes.Buffer

	writeEvent(&buf, "board", []byte("<div>\n</div>"))

	assert.Equal(t, "event: board\ndata: <div>\ndata: </div>\n\n", buf.String())
}
