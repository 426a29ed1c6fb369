package selector

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// echoLoad returns one option per call, named after the ancestors it saw.
func echoLoad(level string, calls *sync.Map) LoadFunc {
	return func(_ context.Context, a map[string]string) ([]Option, error) {
		var parts []string
		for _, k := range []string{"a", "b", "c"} {
			if v, ok := a[k]; ok {
				parts = append(parts, v)
			}
		}
		key := level + ":" + strings.Join(parts, "/")
		n, _ := calls.LoadOrStore(key, new(int))
		*(n.(*int))++
		return []Option{{ID: key, Name: key}}, nil
	}
}

func TestChain_FourLevelsResetGenerically(t *testing.T) {
	var calls sync.Map
	chain, err := NewChain([]Level{
		{Name: "a", Load: echoLoad("a", &calls)},
		{Name: "b", Parent: "a", Load: echoLoad("b", &calls)},
		{Name: "c", Parent: "b", Load: echoLoad("c", &calls)},
		{Name: "d", Parent: "c", Load: echoLoad("d", &calls)},
	})
	if err != nil {
		t.Fatalf("NewChain() error = %v", err)
	}
	defer chain.Close()

	for _, step := range []struct{ level, value string }{{"a", "1"}, {"b", "2"}, {"c", "3"}, {"d", "4"}} {
		if err := chain.Select(step.level, step.value); err != nil {
			t.Fatalf("Select(%s) error = %v", step.level, err)
		}
		chain.Settle()
	}
	if got := chain.Options("d"); len(got) != 1 || got[0].ID != "d:1/2/3" {
		t.Fatalf("Options(d) = %+v, want ancestors 1/2/3", got)
	}

	if err := chain.Select("b", "x"); err != nil {
		t.Fatal(err)
	}
	if chain.Value("c") != "" || chain.Value("d") != "" {
		t.Errorf("descendants of b not cleared: c=%q d=%q", chain.Value("c"), chain.Value("d"))
	}
	if len(chain.Options("d")) != 0 {
		t.Error("grandchild options should be cleared")
	}
	if chain.Value("a") != "1" {
		t.Error("ancestor must not change")
	}
	chain.Settle()
	if got := chain.Options("c"); len(got) != 1 || got[0].ID != "c:1/x" {
		t.Errorf("Options(c) = %+v, want c:1/x", got)
	}
	if len(chain.Options("d")) != 0 {
		t.Error("d must not load until c is selected")
	}
}

func TestNewChain_Invalid(t *testing.T) {
	noop := func(context.Context, map[string]string) ([]Option, error) { return nil, nil }
	tests := []struct {
		name   string
		levels []Level
	}{
		{"parent declared later", []Level{{Name: "b", Parent: "a", Load: noop}, {Name: "a", Load: noop}}},
		{"unknown parent", []Level{{Name: "a", Parent: "zz", Load: noop}}},
		{"duplicate", []Level{{Name: "a", Load: noop}, {Name: "a", Load: noop}}},
		{"missing loader", []Level{{Name: "a"}}},
		{"missing name", []Level{{Load: noop}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewChain(tt.levels); err == nil {
				t.Error("NewChain() should fail")
			}
		})
	}
}

func TestChain_UnknownLevel(t *testing.T) {
	chain, _ := NewChain([]Level{{Name: "a", Load: func(context.Context, map[string]string) ([]Option, error) { return nil, nil }}})
	defer chain.Close()
	if err := chain.Select("nope", "1"); !errors.Is(err, ErrUnknownLevel) {
		t.Errorf("Select(nope) error = %v, want ErrUnknownLevel", err)
	}
	if err := chain.Reload("nope"); !errors.Is(err, ErrUnknownLevel) {
		t.Errorf("Reload(nope) error = %v, want ErrUnknownLevel", err)
	}
}

func TestChain_SnapshotVersionIncreases(t *testing.T) {
	var mu sync.Mutex
	var versions []uint64
	chain, _ := NewChain([]Level{
		{Name: "a", Load: func(context.Context, map[string]string) ([]Option, error) { return []Option{{ID: "1"}}, nil }},
	}, WithOnChange(func(s Snapshot) {
		mu.Lock()
		versions = append(versions, s.Version)
		mu.Unlock()
	}))
	defer chain.Close()

	chain.Init()
	chain.Settle()
	_ = chain.Select("a", "1")

	mu.Lock()
	defer mu.Unlock()
	if len(versions) < 3 {
		t.Fatalf("got %d snapshots, want at least 3", len(versions))
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[0] {
			t.Errorf("snapshot %d version %d not after first %d", i, versions[i], versions[0])
		}
	}
	if v := chain.Snapshot().Version; v != chain.Snapshot().Version {
		t.Error("reading a snapshot must not bump the version")
	}
}
