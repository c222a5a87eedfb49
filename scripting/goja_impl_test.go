package scripting

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGojaEngine_ContextCancellation(t *testing.T) {
	engine := NewEngine()

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	if _, err := engine.Execute(ctx, "while (true) {}"); err == nil || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline error, got %v", err)
	}

	if _, err := engine.Execute(context.Background(), "1 + 1"); err != nil {
		t.Fatalf("engine should recover after cancellation, got %v", err)
	}
}

func TestGojaEngine_ImmediateCancel(t *testing.T) {
	engine := NewEngine()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Execute(ctx, "42"); err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled error, got %v", err)
	}
}

type adView struct {
	ID      string `json:"id"`
	EndDate string `json:"endDate"`
}

func TestGojaEngine_PredicateOverBoundValues(t *testing.T) {
	prog, err := Compile("eligible.js", `ad.endDate === "" || ad.endDate >= today`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	tests := []struct {
		end  string
		want bool
	}{
		{"", true},
		{"2030-01-01", true},
		{"2020-01-01", false},
	}
	engine := NewEngine()
	for _, tt := range tests {
		if err := engine.Bind("ad", adView{ID: "a1", EndDate: tt.end}); err != nil {
			t.Fatalf("bind: %v", err)
		}
		if err := engine.Bind("today", "2026-06-01"); err != nil {
			t.Fatalf("bind: %v", err)
		}
		got, err := engine.Test(context.Background(), prog)
		if err != nil {
			t.Fatalf("test: %v", err)
		}
		if got != tt.want {
			t.Errorf("end %q: got %v, want %v", tt.end, got, tt.want)
		}
	}
}

func TestCompileRejectsSyntaxErrors(t *testing.T) {
	if _, err := Compile("bad.js", "ad.endDate >= ("); err == nil {
		t.Fatal("expected syntax error")
	}
}

func TestGojaEngine_RunExportsValue(t *testing.T) {
	prog, err := Compile("sum.js", "[1, 2, 3].reduce((a, b) => a + b, 0)")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	got, err := NewEngine().Run(context.Background(), prog)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != int64(6) {
		t.Fatalf("got %#v", got)
	}
}
