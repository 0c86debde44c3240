package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gorilla/websocket"

	"voxelflow.ai/internal/observerproto"
	"voxelflow.ai/internal/sim/world/terrain/gen"
	"voxelflow.ai/internal/sim/world/terrain/store"
)

type viewer struct {
	screen tcell.Screen
	base   string
	conn   *websocket.Conn
	http   *http.Client

	boot   observerproto.BootstrapResponse
	cache  *cache
	style  styler
	radius int

	// Cursor in world block coordinates; the slice is drawn around it.
	x, y, z int
	center  store.ChunkKey
	status  string
}

func main() {
	var (
		addr   = flag.String("addr", "http://127.0.0.1:8080", "server base url")
		radius = flag.Int("radius", 2, "chunk radius to subscribe")
		layer  = flag.Int("y", -1, "initial slice height (default floor_y+1)")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[view] ", log.LstdFlags|log.Lmicroseconds)
	v := &viewer{base: strings.TrimRight(*addr, "/"), radius: *radius, http: &http.Client{Timeout: 5 * time.Second}}
	if err := v.bootstrap(); err != nil {
		logger.Fatalf("bootstrap: %v", err)
	}
	v.y = v.boot.WorldParams.FloorY + 1
	if *layer >= 0 {
		v.y = *layer
	}
	if err := v.dial(); err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer v.conn.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		logger.Fatalf("screen: %v", err)
	}
	if err := screen.Init(); err != nil {
		logger.Fatalf("screen init: %v", err)
	}
	v.screen = screen
	err = v.loop()
	screen.Fini()
	if err != nil {
		logger.Fatal(err)
	}
}

func (v *viewer) bootstrap() error {
	resp, err := v.http.Get(v.base + "/v1/observer/bootstrap")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bootstrap status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&v.boot); err != nil {
		return err
	}
	if v.boot.ProtocolVersion != observerproto.Version {
		return fmt.Errorf("server speaks protocol %s, want %s", v.boot.ProtocolVersion, observerproto.Version)
	}
	v.cache = newCache(v.boot.WorldParams.Height)
	v.style = styler{names: v.boot.BlockPalette}
	return nil
}

func (v *viewer) dial() error {
	u, err := url.Parse(v.base)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return err
	}
	v.conn = conn
	return v.subscribe()
}

func (v *viewer) subscribe() error {
	v.center = store.KeyOf(v.x, v.z)
	return v.conn.WriteJSON(observerproto.SubscribeMsg{
		Type:            "SUBSCRIBE",
		ProtocolVersion: observerproto.Version,
		Center:          [2]int{v.center.CX, v.center.CZ},
		ChunkRadius:     v.radius,
	})
}

func (v *viewer) loop() error {
	msgs := make(chan []byte, 256)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, b, err := v.conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			msgs <- b
		}
	}()

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	redraw := time.NewTicker(50 * time.Millisecond)
	defer redraw.Stop()
	dirty := true
	for {
		select {
		case err := <-readErr:
			return fmt.Errorf("observer stream: %w", err)
		case b := <-msgs:
			if err := v.cache.apply(b); err != nil {
				v.status = err.Error()
			}
			dirty = true
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				v.screen.Sync()
			case *tcell.EventKey:
				if !v.handleKey(ev) {
					return nil
				}
			}
			dirty = true
		case <-redraw.C:
			if dirty {
				v.draw()
				dirty = false
			}
		}
	}
}

// handleKey applies one key press and reports whether the viewer keeps running.
func (v *viewer) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyLeft:
		v.x--
	case tcell.KeyRight:
		v.x++
	case tcell.KeyUp:
		v.z--
	case tcell.KeyDown:
		v.z++
	case tcell.KeyPgUp:
		v.y = min(v.y+1, v.cache.height-1)
	case tcell.KeyPgDn:
		v.y = max(v.y-1, 0)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return false
		case '+':
			v.y = min(v.y+1, v.cache.height-1)
		case '-':
			v.y = max(v.y-1, 0)
		case 'w':
			v.edit(observerproto.EditRequest{Op: "PLACE_LIQUID", Liquid: "WATER"})
		case 'l':
			v.edit(observerproto.EditRequest{Op: "PLACE_LIQUID", Liquid: "LAVA"})
		case 's':
			v.edit(observerproto.EditRequest{Op: "PLACE_BLOCK", Block: "STONE"})
		case 'x':
			v.edit(observerproto.EditRequest{Op: "BREAK_BLOCK"})
		}
	}
	if k := store.KeyOf(v.x, v.z); k != v.center {
		if err := v.subscribe(); err != nil {
			v.status = err.Error()
		}
	}
	return true
}

func (v *viewer) edit(req observerproto.EditRequest) {
	req.Pos = [3]int{v.x, v.y, v.z}
	req.Actor = "view"
	body, _ := json.Marshal(req)
	resp, err := v.http.Post(v.base+"/v1/edit", "application/json", bytes.NewReader(body))
	if err != nil {
		v.status = err.Error()
		return
	}
	defer resp.Body.Close()
	var out observerproto.EditResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if !out.Accepted {
		v.status = fmt.Sprintf("edit refused: %s %s", resp.Status, out.Error)
		return
	}
	v.status = fmt.Sprintf("%s queued at tick %d", req.Op, out.Tick)
}

func (v *viewer) draw() {
	s := v.screen
	s.Clear()
	w, h := s.Size()
	rows := h - 2
	ox, oz := v.x-w/2, v.z-rows/2
	for sy := 0; sy < rows; sy++ {
		for sx := 0; sx < w; sx++ {
			bx, bz := ox+sx, oz+sy
			block, meta, ok := v.cache.at(bx, v.y, bz)
			if !ok {
				s.SetContent(sx, sy, ' ', nil, tcell.StyleDefault.Background(tcell.ColorBlack))
				continue
			}
			r, st := v.style.cell(block, meta)
			if bx == v.x && bz == v.z {
				st = st.Reverse(true)
			}
			s.SetContent(sx, sy, r, nil, st)
		}
	}
	if v.x-ox < w && v.z-oz < rows {
		if _, _, ok := v.cache.at(v.x, v.y, v.z); !ok {
			s.SetContent(v.x-ox, v.z-oz, '+', nil, tcell.StyleDefault.Reverse(true))
		}
	}

	block, meta, _ := v.cache.at(v.x, v.y, v.z)
	name := "?"
	if int(block) < len(v.style.names) {
		name = v.style.names[block]
	}
	head := fmt.Sprintf("%s tick %d  pos %d,%d,%d  %s decay %d  chunk %d,%d",
		v.boot.WorldID, v.cache.tick, v.x, v.y, v.z, name, meta, gen.FloorDiv(v.x, store.ChunkSize), gen.FloorDiv(v.z, store.ChunkSize))
	drawText(s, 0, h-2, head, tcell.StyleDefault.Bold(true))
	foot := v.status
	if n := len(v.cache.audits); n > 0 && foot == "" {
		a := v.cache.audits[n-1]
		foot = fmt.Sprintf("t%d %s %s %v %s", a.Tick, a.Actor, a.Action, a.Pos, a.Reason)
	}
	if foot == "" {
		foot = "arrows move  +/- layer  w water  l lava  s stone  x break  q quit"
	}
	drawText(s, 0, h-1, foot, tcell.StyleDefault)
	s.Show()
}

func drawText(s tcell.Screen, x, y int, text string, st tcell.Style) {
	for i, r := range []rune(text) {
		s.SetContent(x+i, y, r, nil, st)
	}
}
