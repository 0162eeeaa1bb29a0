package component

import "testing"

func TestBaseRangeRoundTrip(t *testing.T) {
	var b Base
	if start, end := b.Range(); start != 0 || end != 0 {
		t.Fatalf("zero-value Range() = (%d, %d), want (0, 0)", start, end)
	}
	b.SetRange(5, 12)
	if start, end := b.Range(); start != 5 || end != 12 {
		t.Fatalf("Range() = (%d, %d), want (5, 12)", start, end)
	}
}

func TestParsingContextDefaults(t *testing.T) {
	var ctx *ParsingContext
	if got := ctx.Charset(); got != "us-ascii" {
		t.Fatalf("nil ctx.Charset() = %q, want us-ascii", got)
	}
	if got := ctx.BoundaryLimit(); got != 100 {
		t.Fatalf("nil ctx.BoundaryLimit() = %d, want 100", got)
	}

	ctx = &ParsingContext{}
	if got := ctx.Charset(); got != "us-ascii" {
		t.Fatalf("empty ctx.Charset() = %q, want us-ascii", got)
	}
	ctx.DefaultCharset = "iso-8859-1"
	if got := ctx.Charset(); got != "iso-8859-1" {
		t.Fatalf("ctx.Charset() = %q, want iso-8859-1", got)
	}
	ctx.MaxBoundaryLength = 50
	if got := ctx.BoundaryLimit(); got != 50 {
		t.Fatalf("ctx.BoundaryLimit() = %d, want 50", got)
	}
}

func TestDefaultParsingContextIsTolerantByDefault(t *testing.T) {
	ctx := DefaultParsingContext()
	if ctx.Strict {
		t.Fatal("DefaultParsingContext should not be strict")
	}
	if ctx.Charset() != "us-ascii" {
		t.Fatalf("Charset() = %q", ctx.Charset())
	}
}

func TestGenerationContextDefaults(t *testing.T) {
	var ctx *GenerationContext
	if got := ctx.LineLimit(); got != 78 {
		t.Fatalf("nil ctx.LineLimit() = %d, want 78", got)
	}
	if got := ctx.HardLineLimit(); got != 998 {
		t.Fatalf("HardLineLimit() = %d, want 998", got)
	}

	ctx = &GenerationContext{MaxLineLength: 40}
	if got := ctx.LineLimit(); got != 40 {
		t.Fatalf("ctx.LineLimit() = %d, want 40", got)
	}
}

func TestDefaultGenerationContext(t *testing.T) {
	ctx := DefaultGenerationContext()
	if ctx.LineLimit() != 78 {
		t.Fatalf("LineLimit() = %d, want 78", ctx.LineLimit())
	}
}
