package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotatingFileWriter(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "armhost.log")

	w, err := NewRotatingFileWriter(RotationConfig{Filename: logPath, MaxSize: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("NewRotatingFileWriter: %v", err)
	}
	defer w.Close()

	msg := []byte("arm state update\n")
	if _, err := w.Write(msg); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if w.CurrentSize() != int64(len(msg)) {
		t.Errorf("CurrentSize = %d, expected %d", w.CurrentSize(), len(msg))
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !bytes.Equal(data, msg) {
		t.Errorf("log content %q, expected %q", data, msg)
	}
}

func TestRotation(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "armhost.log")

	w, err := NewRotatingFileWriter(RotationConfig{Filename: logPath, MaxSize: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("NewRotatingFileWriter: %v", err)
	}
	defer w.Close()

	// Force a rotation by exceeding 1 MB.
	chunk := bytes.Repeat([]byte("x"), 512*1024)
	for i := 0; i < 3; i++ {
		if _, err := w.Write(chunk); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}

	if _, err := os.Stat(logPath + ".1"); err != nil {
		t.Errorf("expected backup file after rotation: %v", err)
	}
}

func TestNewFileLogger(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "host.log")

	l, w, err := NewFileLogger("host", RotationConfig{Filename: logPath})
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	defer w.Close()

	l.Info("starting")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "host: starting") {
		t.Errorf("log file missing message: %q", data)
	}
}

func TestMultiWriter(t *testing.T) {
	var a, b bytes.Buffer
	mw := NewMultiWriter(&a, &b)

	if _, err := mw.Write([]byte("both")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if a.String() != "both" || b.String() != "both" {
		t.Errorf("writers got %q and %q", a.String(), b.String())
	}
}
