package xlog

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNilLogger(t *testing.T) {
	var l Logger
	Print(l, "a")
	Printf(l, "%d", 1)
	Println(l, "b")
}

func TestStdLogger(t *testing.T) {
	buf := new(bytes.Buffer)
	l := log.New(buf, "", 0)
	Printf(l, "block %d", 3)
	if g := buf.String(); g != "block 3\n" {
		t.Fatalf("got %q; want %q", g, "block 3\n")
	}
}

func TestLogrus(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := logrus.New()
	logger.SetOutput(buf)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	entry := logger.WithField("pkg", "rtech")
	if l := NewLogrus(entry); l != nil {
		t.Fatalf("NewLogrus returned logger for info level")
	}

	logger.SetLevel(logrus.DebugLevel)
	l := NewLogrus(entry)
	if l == nil {
		t.Fatalf("NewLogrus returned nil for debug level")
	}
	Println(l, "chunk skip")
	g := buf.String()
	if !strings.Contains(g, `msg="chunk skip"`) ||
		!strings.Contains(g, "pkg=rtech") {
		t.Fatalf("unexpected output %q", g)
	}
}
