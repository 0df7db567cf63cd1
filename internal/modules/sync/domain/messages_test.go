package domain

import (
	"testing"
	"time"
)

func TestEnvelopeValidate(t *testing.T) {
	t.Parallel()
	valid := Envelope{ID: "e1", Kind: KindPageDelta}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid envelope, got %v", err)
	}
	if err := (Envelope{Kind: KindPageDelta}).Validate(); err == nil {
		t.Fatal("expected missing id to fail")
	}
	if err := (Envelope{ID: "e1", Kind: "mystery"}).Validate(); err == nil {
		t.Fatal("expected unknown kind to fail")
	}
}

func TestCompletionValidateAllOrNothing(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	base := Completion{
		ActiveSessionID: "a1",
		Record: SessionRecord{
			ID:        "s1",
			BookID:    "b1",
			StartedAt: now.Add(-time.Hour),
			EndedAt:   now,
			StartPage: 10,
			EndPage:   42,
		},
	}
	if err := base.Validate(now); err != nil {
		t.Fatalf("expected valid completion, got %v", err)
	}

	endBeforeStart := base
	endBeforeStart.Record.EndedAt = now.Add(-2 * time.Hour)
	if err := endBeforeStart.Validate(now); err == nil {
		t.Fatal("expected end-before-start to fail")
	}

	future := base
	future.Record.EndedAt = now.Add(time.Hour)
	if err := future.Validate(now); err == nil {
		t.Fatal("expected future end to fail")
	}

	tooLong := base
	tooLong.Record.StartedAt = now.Add(-30 * time.Hour)
	if err := tooLong.Validate(now); err == nil {
		t.Fatal("expected >24h duration to fail")
	}

	noBook := base
	noBook.Record.BookID = ""
	if err := noBook.Validate(now); err == nil {
		t.Fatal("expected missing book id to fail")
	}
}

func TestOffsetWithinTolerance(t *testing.T) {
	t.Parallel()
	received := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	threeMin := Offset(received, received.Add(-3*time.Minute))
	if threeMin != 3*time.Minute {
		t.Fatalf("expected 3m offset got %v", threeMin)
	}

	tenMin := Offset(received, received.Add(-10*time.Minute))
	if tenMin != 0 {
		t.Fatalf("expected suspect offset zeroed got %v", tenMin)
	}

	if Offset(received, time.Time{}) != 0 {
		t.Fatal("expected zero sentAt to yield zero offset")
	}
}

func TestShiftPreservesZeroTimes(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	if got := Shift(at, 2*time.Minute); !got.Equal(at.Add(2 * time.Minute)) {
		t.Fatalf("unexpected shifted time %v", got)
	}
	if got := Shift(time.Time{}, 2*time.Minute); !got.IsZero() {
		t.Fatalf("expected zero time to stay zero, got %v", got)
	}
}

func TestSignificantOffset(t *testing.T) {
	t.Parallel()
	if SignificantOffset(0) {
		t.Fatal("expected zero offset to be noise")
	}
	if SignificantOffset(300 * time.Millisecond) {
		t.Fatal("expected sub-second offset to be noise")
	}
	if !SignificantOffset(3 * time.Minute) {
		t.Fatal("expected 3m offset to count")
	}
	if !SignificantOffset(-3 * time.Minute) {
		t.Fatal("expected negative 3m offset to count")
	}
}

func TestWithinTolerance(t *testing.T) {
	t.Parallel()
	a := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	if !WithinTolerance(a, a.Add(4*time.Minute)) {
		t.Fatal("expected 4m apart to be within tolerance")
	}
	if WithinTolerance(a, a.Add(6*time.Minute)) {
		t.Fatal("expected 6m apart to be outside tolerance")
	}
}
