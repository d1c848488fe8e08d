package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"

	"github.com/Pessimistress/minecraft-chunk-viewer/anvil/anviltest"
	"github.com/Pessimistress/minecraft-chunk-viewer/blocks"
	"github.com/Pessimistress/minecraft-chunk-viewer/instance"
	"github.com/Pessimistress/minecraft-chunk-viewer/viewer"
)

func dial(t *testing.T, session *viewer.Session) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(New(session, nil).Mux())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func loadedSession(t *testing.T) *viewer.Session {
	t.Helper()
	region := anviltest.Region{
		{X: 2, Z: 3}: anviltest.NewChunk(2, 3).Set(0, 10, 0, 1, 0).Set(1, 11, 0, 1, 0).Build(),
		{X: 4, Z: 0}: anviltest.NewChunk(4, 0).Build(),
	}
	raw, err := region.Bytes()
	if err != nil {
		t.Fatalf("encoding region failed: %v", err)
	}
	s := viewer.NewSession(blocks.Default(), viewer.WithWorkers(2))
	if _, err := s.LoadRegion(context.Background(), raw); err != nil {
		t.Fatalf("LoadRegion failed: %v", err)
	}
	return s
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func read(t *testing.T, conn *websocket.Conn, wantKind int) []byte {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	kind, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if kind != wantKind {
		t.Fatalf("expected message kind %d, got %d", wantKind, kind)
	}
	return msg
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := json.Unmarshal(read(t, conn, websocket.TextMessage), v); err != nil {
		t.Fatalf("bad json: %v", err)
	}
}

func TestRegion(t *testing.T) {
	conn := dial(t, loadedSession(t))
	send(t, conn, ClientMsg{Type: TypeRegion})

	var got RegionMsg
	readJSON(t, conn, &got)
	want := RegionMsg{Type: TypeRegion, Chunks: [][2]int{{2, 3}, {4, 0}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("region mismatch (-want +got):\n%s", diff)
	}
}

func TestRegionWithoutLoadedRegion(t *testing.T) {
	conn := dial(t, viewer.NewSession(blocks.Default()))
	send(t, conn, ClientMsg{Type: TypeRegion})

	var got ErrorMsg
	readJSON(t, conn, &got)
	if got.Type != TypeError {
		t.Fatalf("expected an error message, got %+v", got)
	}
}

func TestSelectStreamsInstances(t *testing.T) {
	conn := dial(t, loadedSession(t))
	send(t, conn, ClientMsg{Type: TypeSelect, Chunks: [][2]int{{2, 3}}})

	var got SelectionMsg
	readJSON(t, conn, &got)
	want := SelectionMsg{
		Type:       TypeSelection,
		Chunks:     [][2]int{{2, 3}},
		BlockCount: 2,
		Bounds:     &Bounds{Min: [3]int{32, 10, 48}, Max: [3]int{33, 11, 48}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("selection mismatch (-want +got):\n%s", diff)
	}

	buf, err := instance.Read(bytes.NewReader(read(t, conn, websocket.BinaryMessage)))
	if err != nil {
		t.Fatalf("instance.Read failed: %v", err)
	}
	if buf.BlockCount != 2 || len(buf.Records) != 2 {
		t.Fatalf("unexpected instance buffer %+v", buf)
	}
	if r := buf.Records[1]; r.X != 33 || r.Y != 11 || r.Z != 48 || r.RenderIndex != 1 {
		t.Fatalf("unexpected second record %+v", r)
	}

	send(t, conn, ClientMsg{Type: TypeHover, RenderIndex: 1})
	var block BlockMsg
	readJSON(t, conn, &block)
	if !strings.HasPrefix(block.Description, "Stone (1:0) at 33, 11, 48") {
		t.Fatalf("unexpected description %q", block.Description)
	}
}

func TestEmptySelectionHasNoBounds(t *testing.T) {
	conn := dial(t, loadedSession(t))
	send(t, conn, ClientMsg{Type: TypeSelect, Chunks: [][2]int{{4, 0}}})

	var got SelectionMsg
	readJSON(t, conn, &got)
	if got.BlockCount != 0 || got.Bounds != nil {
		t.Fatalf("expected an empty selection, got %+v", got)
	}
	read(t, conn, websocket.BinaryMessage)
}

func TestConnectionsHaveIndependentSelections(t *testing.T) {
	session := loadedSession(t)
	first := dial(t, session)
	second := dial(t, session)

	send(t, first, ClientMsg{Type: TypeSelect, Chunks: [][2]int{{2, 3}}})
	var sel SelectionMsg
	readJSON(t, first, &sel)
	read(t, first, websocket.BinaryMessage)

	send(t, second, ClientMsg{Type: TypeHover, RenderIndex: 0})
	var got ErrorMsg
	readJSON(t, second, &got)
	if got.Type != TypeError {
		t.Fatalf("second connection should have an empty selection, got %+v", got)
	}
}

func TestBadMessages(t *testing.T) {
	conn := dial(t, loadedSession(t))

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var got ErrorMsg
	readJSON(t, conn, &got)
	if got.Type != TypeError {
		t.Fatalf("expected an error message, got %+v", got)
	}

	send(t, conn, ClientMsg{Type: "DANCE"})
	readJSON(t, conn, &got)
	if got.Message != "unknown message type DANCE" {
		t.Fatalf("unexpected error %q", got.Message)
	}
}
