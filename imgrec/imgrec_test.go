package imgrec

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNextNumbersSequentially(t *testing.T) {
	root := t.TempDir()
	s := &Sequence{Root: root, Prefix: "cap", Ext: ".raw", now: fixedClock(time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))}
	for i, want := range []string{"cap000001.raw", "cap000002.raw"} {
		got, err := s.Next()
		if err != nil {
			t.Fatal(err)
		}
		if got != filepath.Join(root, "2026-10-18", want) {
			t.Errorf("call %d: expected %s got %s", i, want, got)
		}
	}
}

func TestNextSkipsExistingFiles(t *testing.T) {
	root := t.TempDir()
	day := filepath.Join(root, "2026-10-18")
	os.MkdirAll(day, 0777)
	for _, fn := range []string{"cap000007.raw", "cap000003.raw", "cap000099.fits", "other000500.raw", "capture.raw"} {
		os.WriteFile(filepath.Join(day, fn), nil, 0666)
	}
	s := &Sequence{Root: root, Prefix: "cap", Ext: ".raw", now: fixedClock(time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))}
	got, err := s.Next()
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(got) != "cap000008.raw" {
		t.Errorf("expected cap000008.raw got %s", filepath.Base(got))
	}
}

func TestNewDayRestartsNumbering(t *testing.T) {
	root := t.TempDir()
	day := time.Date(2026, 10, 18, 23, 59, 0, 0, time.UTC)
	s := &Sequence{Root: root, Prefix: "s", Ext: ".tiff", now: fixedClock(day)}
	s.Next()
	s.Next()
	s.now = fixedClock(day.Add(2 * time.Minute))
	got, _ := s.Next()
	if got != filepath.Join(root, "2026-10-19", "s000001.tiff") {
		t.Errorf("expected numbering to restart in the new folder, got %s", got)
	}
}
