package store

import (
	"path/filepath"
	"testing"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadMissingKey(t *testing.T) {
	s := setupStore(t)

	raw, err := s.Load("portfolio")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if raw != nil {
		t.Fatalf("expected nil for missing key, got %q", raw)
	}
}

func TestSaveReplacesWholeValue(t *testing.T) {
	s := setupStore(t)

	if err := s.Save("portfolio", []byte(`[{"symbol":"bitcoin"}]`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save("portfolio", []byte(`[]`)); err != nil {
		t.Fatalf("save again: %v", err)
	}

	raw, err := s.Load("portfolio")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(raw) != `[]` {
		t.Fatalf("expected replaced value, got %q", raw)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := setupStore(t)

	if err := s.Save("alerts-bitcoin", []byte(`[]`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Delete("alerts-bitcoin"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete("alerts-bitcoin"); err != nil {
		t.Fatalf("delete absent key: %v", err)
	}

	raw, err := s.Load("alerts-bitcoin")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if raw != nil {
		t.Fatalf("expected nil after delete, got %q", raw)
	}
}

func TestListKeysPrefix(t *testing.T) {
	s := setupStore(t)

	for _, key := range []string{"alerts-bitcoin", "portfolio", "alerts-ethereum"} {
		if err := s.Save(key, []byte(`[]`)); err != nil {
			t.Fatalf("save %s: %v", key, err)
		}
	}

	keys, err := s.ListKeys("alerts-")
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "alerts-bitcoin" || keys[1] != "alerts-ethereum" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestMetricRoundTrip(t *testing.T) {
	s := setupStore(t)

	value, err := s.GetMetric("cycles_completed")
	if err != nil {
		t.Fatalf("get unknown metric: %v", err)
	}
	if value != 0 {
		t.Fatalf("expected 0 for unknown metric, got %v", value)
	}

	if err := s.SaveMetric("cycles_completed", 42); err != nil {
		t.Fatalf("save metric: %v", err)
	}
	if err := s.SaveMetric("cycles_completed", 43); err != nil {
		t.Fatalf("overwrite metric: %v", err)
	}

	value, err = s.GetMetric("cycles_completed")
	if err != nil {
		t.Fatalf("get metric: %v", err)
	}
	if value != 43 {
		t.Fatalf("expected 43, got %v", value)
	}
}
