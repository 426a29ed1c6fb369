package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemory_SetGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.SetJSON(ctx, "grades", []string{"g9", "g10"}, 0); err != nil {
		t.Fatalf("SetJSON() error = %v", err)
	}

	var got []string
	if err := m.GetJSON(ctx, "grades", &got); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if len(got) != 2 || got[1] != "g10" {
		t.Errorf("GetJSON() = %v, want [g9 g10]", got)
	}
}

func TestMemory_Miss(t *testing.T) {
	m := NewMemory()
	var got []string
	if err := m.GetJSON(context.Background(), "nothing", &got); !errors.Is(err, ErrMiss) {
		t.Errorf("GetJSON() error = %v, want ErrMiss", err)
	}
}

func TestMemory_Expiry(t *testing.T) {
	m := NewMemory()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_ = m.SetJSON(ctx, "subjects:g9", []string{"math"}, time.Minute)

	now = now.Add(59 * time.Second)
	var got []string
	if err := m.GetJSON(ctx, "subjects:g9", &got); err != nil {
		t.Fatalf("GetJSON() before expiry error = %v", err)
	}

	now = now.Add(time.Second)
	if err := m.GetJSON(ctx, "subjects:g9", &got); !errors.Is(err, ErrMiss) {
		t.Errorf("GetJSON() after expiry error = %v, want ErrMiss", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want expired entry evicted", m.Len())
	}
}

func TestMemory_Delete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.SetJSON(ctx, "a", 1, 0)
	_ = m.SetJSON(ctx, "b", 2, 0)

	_ = m.Delete(ctx, "a")

	var v int
	if err := m.GetJSON(ctx, "a", &v); !errors.Is(err, ErrMiss) {
		t.Errorf("GetJSON(a) error = %v, want ErrMiss", err)
	}
	if err := m.GetJSON(ctx, "b", &v); err != nil || v != 2 {
		t.Errorf("GetJSON(b) = %d, %v; want 2, nil", v, err)
	}
}
