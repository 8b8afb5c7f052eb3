package recycle

import "testing"

func TestSlotZeroReservedAndInvalidByDefault(t *testing.T) {
	l := New[string]()
	if n := l.Len(); n != 1 {
		t.Fatalf("Len of fresh list:\nhave %d\nwant 1", n)
	}
	if _, ok := l.Get(0); ok {
		t.Fatalf("Get(0) before SetSentinel:\nhave ok=true\nwant false")
	}

	l.SetSentinel("null")
	v, ok := l.Get(0)
	if !ok || v != "null" {
		t.Fatalf("Get(0) after SetSentinel:\nhave (%q, %v)\nwant (\"null\", true)", v, ok)
	}
}

func TestAddNeverReturnsZero(t *testing.T) {
	l := New[int]()
	for i := 0; i < 5; i++ {
		if id := l.Add(i * 10); id == 0 {
			t.Fatalf("Add returned reserved sentinel id 0")
		}
	}
}

func TestRemoveThenAddReusesSlot(t *testing.T) {
	l := New[int]()
	a := l.Add(1)
	b := l.Add(2)
	l.Remove(a)

	if _, ok := l.Get(a); ok {
		t.Fatalf("Get after Remove:\nhave ok=true\nwant false")
	}

	c := l.Add(3)
	if c != a {
		t.Fatalf("Add after Remove did not reuse freed slot:\nhave %d\nwant %d", c, a)
	}
	if v, ok := l.Get(b); !ok || v != 2 {
		t.Fatalf("Get(b) unaffected by unrelated Remove:\nhave (%d, %v)\nwant (2, true)", v, ok)
	}
}

func TestRemoveOutOfRangeOrSentinelIsNoOp(t *testing.T) {
	l := New[int]()
	l.Remove(0)
	l.Remove(-1)
	l.Remove(99)
	if n := l.Len(); n != 1 {
		t.Fatalf("Len after no-op Removes:\nhave %d\nwant 1", n)
	}
}

func TestEachVisitsOnlyValidSlotsInAscendingOrder(t *testing.T) {
	l := New[int]()
	l.SetSentinel(0)
	a := l.Add(10)
	b := l.Add(20)
	_ = l.Add(30)
	l.Remove(b)

	var seen []int
	l.Each(func(id int, v int) {
		seen = append(seen, id)
	})
	if len(seen) != 3 {
		t.Fatalf("Each visit count:\nhave %d\nwant 3 (sentinel + a + c)", len(seen))
	}
	for i := 1; i < len(seen); i++ {
		if seen[i-1] >= seen[i] {
			t.Fatalf("Each order not ascending: %v", seen)
		}
	}
	_ = a
}

func TestReset(t *testing.T) {
	l := New[int]()
	l.SetSentinel(0)
	l.Add(1)
	l.Add(2)
	l.Reset()

	if n := l.Len(); n != 1 {
		t.Fatalf("Len after Reset:\nhave %d\nwant 1", n)
	}
	if _, ok := l.Get(0); ok {
		t.Fatalf("Get(0) after Reset:\nhave ok=true\nwant false (sentinel cleared)")
	}
}
