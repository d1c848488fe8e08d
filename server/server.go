// Package server streams selections of a loaded region to a browser renderer over a
// websocket.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Pessimistress/minecraft-chunk-viewer/anvil"
	"github.com/Pessimistress/minecraft-chunk-viewer/instance"
	"github.com/Pessimistress/minecraft-chunk-viewer/selection"
	"github.com/Pessimistress/minecraft-chunk-viewer/viewer"
)

const (
	TypeSelect    = "SELECT"
	TypeRegion    = "REGION"
	TypeHover     = "HOVER"
	TypeSelection = "SELECTION"
	TypeBlock     = "BLOCK"
	TypeError     = "ERROR"
)

const (
	writeTimeout = 5 * time.Second
	readTimeout  = 5 * time.Minute
	outQueue     = 8
)

// ClientMsg is any message a renderer sends. Chunks are region-local [x, z] pairs.
type ClientMsg struct {
	Type        string   `json:"type"`
	Chunks      [][2]int `json:"chunks,omitempty"`
	RenderIndex int      `json:"renderIndex,omitempty"`
}

type RegionMsg struct {
	Type   string   `json:"type"`
	Chunks [][2]int `json:"chunks"`
}

// SelectionMsg precedes the binary instance frame of a selection.
type SelectionMsg struct {
	Type       string   `json:"type"`
	Chunks     [][2]int `json:"chunks"`
	BlockCount int      `json:"blockCount"`
	Bounds     *Bounds  `json:"bounds"`
}

type Bounds struct {
	Min [3]int `json:"min"`
	Max [3]int `json:"max"`
}

type BlockMsg struct {
	Type        string `json:"type"`
	RenderIndex int    `json:"renderIndex"`
	Description string `json:"description"`
}

type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type frame struct {
	kind int
	data []byte
}

// Server hands every connection its own fork of a loaded session, so selections of
// different clients never interfere.
type Server struct {
	session *viewer.Session
	log     *slog.Logger

	upgrader websocket.Upgrader
}

func New(session *viewer.Session, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		session: session,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Mux routes /ws to the websocket handler.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", s.Handler())
	return mux
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			s.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		log := s.log.With("remote", r.RemoteAddr)
		log.Info("renderer connected")
		session := s.session.Fork()
		out := make(chan frame, outQueue)

		// Writer goroutine.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case f := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(f.kind, f.data); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var frames []frame
			var m ClientMsg
			if err := json.Unmarshal(msg, &m); err != nil {
				frames = jsonFrame(ErrorMsg{Type: TypeError, Message: "bad message: " + err.Error()})
			} else {
				frames = s.handle(ctx, log, session, m)
			}
			for _, f := range frames {
				if !enqueue(ctx, out, f) {
					break
				}
			}
		}

		cancel()
		<-done
		log.Info("renderer disconnected")
	}
}

func (s *Server) handle(ctx context.Context, log *slog.Logger, session *viewer.Session, m ClientMsg) []frame {
	switch m.Type {
	case TypeRegion:
		info := session.Region()
		if info == nil {
			return jsonFrame(ErrorMsg{Type: TypeError, Message: viewer.ErrNoRegion.Error()})
		}
		return jsonFrame(RegionMsg{Type: TypeRegion, Chunks: toPairs(info.Available)})

	case TypeSelect:
		sel, err := session.Reselect(ctx, fromPairs(m.Chunks))
		if err != nil {
			return nil
		}
		var payload bytes.Buffer
		if err := instance.Write(&payload, sel, session.IsOpaque); err != nil {
			log.Error("encoding selection failed", "error", err)
			return jsonFrame(ErrorMsg{Type: TypeError, Message: err.Error()})
		}
		frames := jsonFrame(SelectionMsg{
			Type:       TypeSelection,
			Chunks:     toPairs(sel.Chunks),
			BlockCount: sel.BlockCount,
			Bounds:     toBounds(sel.Bounds),
		})
		return append(frames, frame{kind: websocket.BinaryMessage, data: payload.Bytes()})

	case TypeHover:
		sel, err := session.Selection()
		if err != nil {
			return jsonFrame(ErrorMsg{Type: TypeError, Message: err.Error()})
		}
		rec, ok := sel.Record(m.RenderIndex)
		if !ok {
			return jsonFrame(ErrorMsg{Type: TypeError, Message: "no block with that render index"})
		}
		return jsonFrame(BlockMsg{Type: TypeBlock, RenderIndex: m.RenderIndex, Description: viewer.Describe(rec)})

	default:
		return jsonFrame(ErrorMsg{Type: TypeError, Message: "unknown message type " + m.Type})
	}
}

func enqueue(ctx context.Context, out chan<- frame, f frame) bool {
	select {
	case out <- f:
		return true
	case <-ctx.Done():
		return false
	}
}

func jsonFrame(v any) []frame {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return []frame{{kind: websocket.TextMessage, data: b}}
}

func toPairs(chunks []anvil.ChunkPos) [][2]int {
	out := make([][2]int, len(chunks))
	for i, pos := range chunks {
		out[i] = [2]int{pos.X, pos.Z}
	}
	return out
}

func fromPairs(pairs [][2]int) []anvil.ChunkPos {
	out := make([]anvil.ChunkPos, len(pairs))
	for i, p := range pairs {
		out[i] = anvil.ChunkPos{X: p[0], Z: p[1]}
	}
	return out
}

func toBounds(b *selection.Bounds) *Bounds {
	if b == nil {
		return nil
	}
	return &Bounds{
		Min: [3]int{b.MinX, b.MinY, b.MinZ},
		Max: [3]int{b.MaxX, b.MaxY, b.MaxZ},
	}
}
