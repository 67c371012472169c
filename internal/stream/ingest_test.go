package stream_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/freakspace/polymarket-latency/internal/ingest"
	"github.com/freakspace/polymarket-latency/internal/stream"
	"github.com/freakspace/polymarket-latency/pkg/types"
)

func TestLoopOverWebsocket(t *testing.T) {
	subscriptions := make(chan types.MarketSubscription, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer ws.Close()

		_, data, err := ws.ReadMessage()
		if err != nil {
			t.Errorf("read subscription: %v", err)
			return
		}
		var sub types.MarketSubscription
		if err := json.Unmarshal(data, &sub); err != nil {
			t.Errorf("decode subscription: %v", err)
			return
		}
		subscriptions <- sub

		_ = ws.WriteMessage(websocket.TextMessage, []byte(`[{"event_type":"book"}]`))
		for i := 0; i < 5; i++ {
			ts := time.Now().Add(-20 * time.Millisecond).UnixMilli()
			msg := fmt.Sprintf(`{"event_type":"price_change","asset_id":"tok-1","timestamp":"%d"}`, ts)
			if err := ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := stream.ChannelURL("ws"+strings.TrimPrefix(srv.URL, "http"), types.ChannelMarket)
	conn, err := stream.Dial(ctx, url, stream.Options{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	loop, err := ingest.New(ingest.RunConfig{
		Mode:              ingest.ModeMarket,
		AssetIDs:          []string{"tok-1", "tok-2"},
		NumEvents:         5,
		CalibrationEvents: 2,
	}, ingest.Dependencies{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	state, err := loop.Run(ctx, conn)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	sub := <-subscriptions
	if sub.Type != types.ChannelMarket || len(sub.AssetIDs) != 2 {
		t.Fatalf("unexpected subscription %+v", sub)
	}
	if state.Termination != ingest.TerminationTargetReached {
		t.Fatalf("expected target reached got %s (%v)", state.Termination, state.Err)
	}
	if state.Received() != 5 || state.BatchesSkipped != 1 {
		t.Fatalf("expected 5 samples and 1 skipped batch, got %d/%d", state.Received(), state.BatchesSkipped)
	}
	if _, ok := state.Offset(); !ok {
		t.Fatalf("expected an offset after the calibration window")
	}
}
