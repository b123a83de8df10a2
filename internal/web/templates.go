package web

import (
	"bytes"
	"html/template"

	"github.com/jaminalder/tictactoe-history/internal/app"
	"github.com/jaminalder/tictactoe-history/internal/domain"
)

type templates struct {
	base  *template.Template
	game  *template.Template
	board *template.Template
	index *template.Template
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"iter": func(n int) []int {
			a := make([]int, n)
			for i := range a {
				a[i] = i
			}
			return a
		},
		"cellSymbol": func(c domain.Cell) string { return c.String() },
		"add":        func(a, b int) int { return a + b },
		"mul":        func(a, b int) int { return a * b },
	}
}

func loadTemplates() *templates {
	base := template.Must(template.New("base").Funcs(funcs()).Parse(`<!doctype html><html><head>
<meta charset="utf-8"/>
<title>Tic-Tac-Toe</title>
<script src="https://unpkg.com/htmx.org@1.9.12"></script>
<script src="https://unpkg.com/htmx.org/dist/ext/sse.js"></script>
</head><body>{{template "content" .}}</body></html>`))
	// board lives in the base set so the game page can include it
	template.Must(base.New("board").Parse(boardTemplate))
	index := template.Must(template.Must(base.Clone()).New("content").Parse(`<h1>Tic-Tac-Toe</h1><form action="/game" method="post"><button>New game</button></form>`))
	game := template.Must(template.Must(base.Clone()).New("content").Parse(`
<div hx-ext="sse" hx-sse="connect:/game/{{.ID}}/events">
  <div hx-sse="swap:board" hx-target="#board" hx-swap="outerHTML">{{template "board" .}}</div>
</div>`))
	// Standalone board template used for fragment rendering
	board := template.Must(template.New("board_only").Funcs(funcs()).Parse(boardTemplate))
	return &templates{base: base, game: game, board: board, index: index}
}

func renderTemplate(t *template.Template, name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	if name == "" {
		err = t.Execute(&buf, data)
	} else {
		err = t.ExecuteTemplate(&buf, name, data)
	}
	return buf.Bytes(), err
}

// boardData is what the board fragment renders: the displayed snapshot, the
// status line and the jump targets.
type boardData struct {
	ID     string
	Board  domain.Board
	Status string
	Over   bool
	Moves  []domain.Move
	Error  string
}

func newBoardData(gs app.Session, errMsg string) boardData {
	return boardData{
		ID:     gs.ID,
		Board:  gs.Game.Current(),
		Status: gs.Game.Status(),
		Over:   gs.Game.Over(),
		Moves:  gs.Game.Moves(),
		Error:  errMsg,
	}
}

const boardTemplate = `
<div id="board" class="game">
  {{if .Error}}
  <div class="alert">{{.Error}}</div>
  {{end}}
  <div class="game-board">
  {{range $r := iter 3}}
  <div class="board-row">
    {{range $c := iter 3}}
      {{$i := add (mul $r 3) $c}}
      <form hx-post="/game/{{$.ID}}/play" hx-target="#board" hx-swap="outerHTML" method="post" action="/game/{{$.ID}}/play">
        <input type="hidden" name="cell" value="{{$i}}">
        <button type="submit" class="square" data-cell="{{$i}}">{{cellSymbol (index $.Board $i)}}</button>
      </form>
    {{end}}
  </div>
  {{end}}
  </div>
  <div class="game-info">
    <div class="status">{{.Status}}</div>
    <ol>
    {{range .Moves}}
      <li>
        <form hx-post="/game/{{$.ID}}/jump" hx-target="#board" hx-swap="outerHTML" method="post" action="/game/{{$.ID}}/jump">
          <input type="hidden" name="step" value="{{.Step}}">
          <button type="submit"{{if .Current}} class="current"{{end}}>{{.Label}}</button>
        </form>
      </li>
    {{end}}
    </ol>
  </div>
</div>
`
