package web

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jaminalder/tictactoe-history/internal/app"
)

type handlers struct {
	svc       *app.Service
	tpl       *templates
	log       *slog.Logger
	heartbeat time.Duration
}

func (h *handlers) renderBoard(gs app.Session, errMsg string) []byte {
	b, err := renderTemplate(h.tpl.board, "", newBoardData(gs, errMsg))
	if err != nil {
		h.log.Error("render board", "game", gs.ID, "error", err)
	}
	return b
}

func (h *handlers) writeHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	body, err := renderTemplate(h.tpl.index, "base", nil)
	if err != nil {
		h.log.Error("render index", "error", err)
		http.Error(w, "failed to render", http.StatusInternalServerError)
		return
	}
	h.writeHTML(w, http.StatusOK, body)
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	gs, err := h.svc.CreateGame()
	if err != nil {
		http.Error(w, "failed to create", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/game/"+gs.ID, http.StatusSeeOther)
}

func (h *handlers) view(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	gs, ok := h.svc.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	body, err := renderTemplate(h.tpl.game, "base", newBoardData(*gs, ""))
	if err != nil {
		h.log.Error("render game", "game", id, "error", err)
		http.Error(w, "failed to render", http.StatusInternalServerError)
		return
	}
	h.writeHTML(w, http.StatusOK, body)
}

func (h *handlers) play(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	gs, err := h.svc.Play(id, formInt(r, "cell"))
	h.respond(w, r, gs, err)
}

func (h *handlers) jump(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	gs, err := h.svc.JumpTo(id, formInt(r, "step"))
	h.respond(w, r, gs, err)
}

// respond writes the board fragment, with a banner for malformed requests.
func (h *handlers) respond(w http.ResponseWriter, r *http.Request, gs *app.Session, err error) {
	if errors.Is(err, app.ErrNotFound) || gs == nil {
		http.NotFound(w, r)
		return
	}
	var errMsg string
	if err != nil {
		switch {
		case errors.Is(err, app.ErrOutOfBounds):
			errMsg = "No such cell"
		case errors.Is(err, app.ErrStepOutOfRange):
			errMsg = "No such move"
		default:
			errMsg = "Invalid request"
		}
	}
	h.writeHTML(w, http.StatusOK, h.renderBoard(*gs, errMsg))
}

// formInt reads an integer form value; missing or malformed values come back
// as -1, which every caller treats as out of range.
func formInt(r *http.Request, key string) int {
	_ = r.ParseForm()
	n, err := strconv.Atoi(r.Form.Get(key))
	if err != nil {
		return -1
	}
	return n
}

func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.svc.Get(id); !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	// In tests or non-EventSource requests, just acknowledge headers and return
	if r.Header.Get("Accept") != "text/event-stream" {
		w.WriteHeader(http.StatusOK)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}
	ctx := r.Context()
	ch, unsub, err := h.svc.Subscribe(ctx, id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer unsub()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			flusher.Flush()
		case b, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, "board", b)
			flusher.Flush()
		}
	}
}

// writeEvent emits one SSE event; every payload line gets its own data field.
func writeEvent(w io.Writer, event string, payload []byte) {
	_, _ = fmt.Fprintf(w, "event: %s\n", event)
	for _, line := range strings.Split(string(payload), "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = io.WriteString(w, "\n")
}
