package capture_test

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/besim-go/besim/capture"
)

func TestOpen_EmptyPathDisablesCapture(t *testing.T) {
	l, err := capture.Open("")
	if err != nil {
		t.Fatalf("Open(\"\"): %v", err)
	}
	if l != nil {
		t.Fatal("expected a nil *Log for an empty path")
	}
	l.LogIn(&net.UDPAddr{}, []byte{1, 2, 3}) // must not panic
}

func TestLog_WritesHexLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.log")
	l, err := capture.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 5001}
	l.LogIn(addr, []byte{0xDE, 0xAD})
	l.LogOut(addr, []byte{0xBE, 0xEF})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, `"I"`) || !strings.Contains(text, "dead") {
		t.Fatalf("missing inbound hex line: %q", text)
	}
	if !strings.Contains(text, `"O"`) || !strings.Contains(text, "beef") {
		t.Fatalf("missing outbound hex line: %q", text)
	}
}
