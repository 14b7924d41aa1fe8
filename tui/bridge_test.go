// ABOUTME: Tests for the snapshot bridge and tea.Cmd factories.
// ABOUTME: Covers forwarding until close, navigator messages, and tick scheduling.
package tui

import (
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/calquity/conversation"
)

type msgCollector struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (c *msgCollector) send(msg tea.Msg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func TestBridgeForwardsUntilClosed(t *testing.T) {
	var c msgCollector
	b := NewSnapshotBridge(c.send)

	ch := make(chan conversation.State, 3)
	ch <- conversation.State{Version: 1}
	ch <- conversation.State{Version: 2}
	close(ch)

	b.Forward(ch)

	if len(c.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(c.msgs))
	}
	for i, msg := range c.msgs {
		snap, ok := msg.(SnapshotMsg)
		if !ok {
			t.Fatalf("msg %d is %T", i, msg)
		}
		if snap.State.Version != uint64(i+1) {
			t.Errorf("msg %d version = %d", i, snap.State.Version)
		}
	}
}

func TestBridgeNavigator(t *testing.T) {
	sent := make(chan tea.Msg, 1)
	NewSnapshotBridge(func(msg tea.Msg) { sent <- msg }).Navigator().NavigateTo("a.pdf", 3, "quote")

	select {
	case msg := <-sent:
		got, ok := msg.(NavigatedMsg)
		if !ok || got != (NavigatedMsg{Source: "a.pdf", Page: 3, Excerpt: "quote"}) {
			t.Errorf("got %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("navigator did not send")
	}
}

func TestTickCmd(t *testing.T) {
	cmd := TickCmd(time.Millisecond)
	if _, ok := cmd().(TickMsg); !ok {
		t.Error("expected TickMsg")
	}
}
