package task

import (
	"testing"
	"time"
)

func TestInsertDuplicateIDPanics(t *testing.T) {
	st := newStore()
	st.insert(&Record{ID: "a", Status: StatusPending, CreatedAt: time.Now().UTC()})

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate id")
		}
	}()
	st.insert(&Record{ID: "a", Status: StatusPending, CreatedAt: time.Now().UTC()})
}

func TestUpdateMissingIDIsNoOp(t *testing.T) {
	st := newStore()
	// A record can be cleaned while its job is still in flight; the late
	// transition must not crash or resurrect it.
	st.update("gone", func(rec *Record) { rec.Status = StatusCompleted })
	if got := len(st.list(nil)); got != 0 {
		t.Fatalf("update must not create records, got %d", got)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	st := newStore()
	st.insert(&Record{ID: "a", Status: StatusPending, CreatedAt: time.Now().UTC()})

	rec, ok := st.get("a")
	if !ok {
		t.Fatal("expected record")
	}
	rec.Status = StatusFailed

	again, _ := st.get("a")
	if again.Status != StatusPending {
		t.Fatalf("caller mutation leaked into store: %s", again.Status)
	}
}

func TestDeleteWhereCounts(t *testing.T) {
	st := newStore()
	for _, id := range []string{"a", "b", "c"} {
		st.insert(&Record{ID: id, Status: StatusCompleted, CreatedAt: time.Now().UTC()})
	}
	st.insert(&Record{ID: "d", Status: StatusRunning, CreatedAt: time.Now().UTC()})

	removed := st.deleteWhere(func(rec *Record) bool { return rec.Status == StatusCompleted })
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	if got := len(st.list(nil)); got != 1 {
		t.Fatalf("expected 1 left, got %d", got)
	}
}
