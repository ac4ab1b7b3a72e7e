package filtercache

import (
	"errors"
	"testing"
)

func isEven(n int) bool { return n%2 == 0 }

func TestNew_Validation(t *testing.T) {
	if _, err := New(isEven, "", UnknownItemCount, 0.5); !errors.Is(err, ErrEmptyFilterName) {
		t.Errorf("empty name: err = %v, want ErrEmptyFilterName", err)
	}
	if _, err := New(isEven, "even", UnknownItemCount, -0.1); !errors.Is(err, ErrThresholdOutOfRange) {
		t.Errorf("threshold -0.1: err = %v, want ErrThresholdOutOfRange", err)
	}
	if _, err := New(isEven, "even", UnknownItemCount, 1.1); !errors.Is(err, ErrThresholdOutOfRange) {
		t.Errorf("threshold 1.1: err = %v, want ErrThresholdOutOfRange", err)
	}
	if _, err := New(isEven, "even", -2, 0.5); !errors.Is(err, ErrNegativeItemCount) {
		t.Errorf("count -2: err = %v, want ErrNegativeItemCount", err)
	}
	if _, err := New[int](nil, "even", UnknownItemCount, 0.5); err == nil {
		t.Error("nil predicate: want error")
	}
	if _, err := New(isEven, "even", UnknownItemCount, 0.5); err != nil {
		t.Errorf("valid args: err = %v", err)
	}
}

func TestFilterCache_RecordAndContains(t *testing.T) {
	fc, err := New(isEven, "even", UnknownItemCount, 0.5)
	if err != nil {
		t.Fatal(err)
	}

	fc.RecordHit(2)
	fc.RecordHit(4)
	fc.RecordMiss()

	if !fc.Contains(2) || !fc.Contains(4) {
		t.Error("recorded hits should be contained")
	}
	if fc.Contains(3) {
		t.Error("3 was never recorded")
	}
	if fc.Len() != 2 {
		t.Errorf("Len = %d, want 2", fc.Len())
	}

	items := fc.Items()
	if len(items) != 2 || items[0] != 2 || items[1] != 4 {
		t.Errorf("Items = %v, want [2 4] in insertion order", items)
	}
}

func TestFilterCache_Complete(t *testing.T) {
	fc, _ := New(isEven, "even", UnknownItemCount, 0.5)

	fc.RecordHit(2)
	fc.RecordMiss()
	if fc.Complete() {
		t.Error("unknown expected count should never be complete")
	}

	if err := fc.SetExpectedItemCount(2); err != nil {
		t.Fatal(err)
	}
	if !fc.Complete() {
		t.Error("1 hit + 1 miss == 2 expected: should be complete")
	}

	fc2, _ := New(isEven, "even", 3, 0.5)
	fc2.RecordHit(2)
	fc2.RecordHitCached()
	fc2.RecordMiss()
	if !fc2.Complete() {
		t.Error("cached hits count toward completion")
	}
}

func TestFilterCache_TryDisable(t *testing.T) {
	// 4 expected items at threshold 0.5 allow ceil(4*0.5) = 2 misses.
	fc, _ := New(isEven, "even", 4, 0.5)

	fc.RecordHit(2)
	fc.RecordMiss()
	fc.RecordMiss()
	if fc.TryDisable() {
		t.Error("2 misses within budget of 2: must not disable")
	}

	fc.RecordMiss()
	if !fc.TryDisable() {
		t.Error("3 misses over budget of 2: must disable")
	}
	if !fc.Disabled() {
		t.Error("Disabled should report true")
	}
	if fc.Len() != 0 {
		t.Errorf("disabled cache must clear its hit set, Len = %d", fc.Len())
	}
	if len(fc.Items()) != 0 {
		t.Error("disabled cache must have no items")
	}

	// Idempotent once disabled.
	if !fc.TryDisable() {
		t.Error("TryDisable on a disabled cache should report true")
	}
}

func TestFilterCache_TryDisable_UnknownCount(t *testing.T) {
	fc, _ := New(isEven, "even", UnknownItemCount, 0.5)
	for i := 0; i < 100; i++ {
		fc.RecordMiss()
	}
	if fc.TryDisable() {
		t.Error("unknown expected count: miss budget undefined, must not disable")
	}
}

func TestFilterCache_SetExpectedItemCount_Disables(t *testing.T) {
	fc, _ := New(isEven, "even", UnknownItemCount, 0.5)
	fc.RecordHit(2)
	for i := 0; i < 9; i++ {
		fc.RecordMiss()
	}

	// 10 expected at 0.5 allow 5 misses; 9 were recorded.
	if err := fc.SetExpectedItemCount(10); err != nil {
		t.Fatal(err)
	}
	if !fc.Disabled() {
		t.Error("SetExpectedItemCount should apply the disablement policy")
	}

	if err := fc.SetExpectedItemCount(-5); !errors.Is(err, ErrNegativeItemCount) {
		t.Errorf("negative count: err = %v, want ErrNegativeItemCount", err)
	}
}

func TestFilterCache_ZeroThreshold(t *testing.T) {
	fc, _ := New(isEven, "even", 10, 0)
	fc.RecordMiss()
	if !fc.TryDisable() {
		t.Error("threshold 0 tolerates no misses")
	}
}

func TestFilterCache_SelectivityKey(t *testing.T) {
	fc, _ := New(isEven, "even", UnknownItemCount, 0.5)

	fc.RecordHit(2)
	fc.RecordHit(4)
	if got := fc.SelectivityKey(); got != 2 {
		t.Errorf("no misses: key = %d, want numHits (2)", got)
	}

	fc.RecordMiss()
	fc.RecordMiss()
	fc.RecordMiss()
	if got := fc.SelectivityKey(); got != 0 {
		t.Errorf("2 hits / 3 misses: key = %d, want 0 (integer division)", got)
	}
}

func TestFilterCache_Stats(t *testing.T) {
	fc, _ := New(isEven, "even", 2, 0.5)
	fc.RecordHit(2)
	fc.RecordMiss()

	st := fc.Stats()
	if st.Name != "even" {
		t.Errorf("Name = %q", st.Name)
	}
	if st.Hits != 1 || st.Misses != 1 || st.Size != 1 {
		t.Errorf("Stats = %+v, want 1 hit, 1 miss, size 1", st)
	}
	if !st.Complete {
		t.Error("Stats should report completion")
	}
	if st.Disabled {
		t.Error("Stats should not report disabled")
	}
}
