package comms

import (
	"errors"
	"testing"
)

func TestQueueSendDirections(t *testing.T) {
	q := NewQueue(t.TempDir())

	if _, err := q.Send(RoleWorker, KindBlocker, "blocked on env", PriorityNormal); err != nil {
		t.Fatalf("worker send failed: %v", err)
	}
	if _, err := q.Send(RoleOrchestrator, KindDirective, "switch branch", PriorityNormal); err != nil {
		t.Fatalf("orchestrator send failed: %v", err)
	}

	// Worker messages land in the orchestrator inbox and vice versa.
	orch, err := q.Read(RoleOrchestrator)
	if err != nil {
		t.Fatalf("Read orchestrator: %v", err)
	}
	if len(orch) != 1 || orch[0].Kind != KindBlocker {
		t.Errorf("orchestrator inbox = %+v, want one blocker", orch)
	}

	worker, err := q.Read(RoleWorker)
	if err != nil {
		t.Fatalf("Read worker: %v", err)
	}
	if len(worker) != 1 || worker[0].Kind != KindDirective {
		t.Errorf("worker inbox = %+v, want one directive", worker)
	}
}

func TestQueueRoleEnforcement(t *testing.T) {
	q := NewQueue(t.TempDir())

	cases := []struct {
		from Role
		kind Kind
	}{
		{RoleWorker, KindDirective},
		{RoleWorker, KindGuidance},
		{RoleWorker, KindStop},
		{RoleOrchestrator, KindBlocker},
		{RoleOrchestrator, KindProgress},
		{RoleOrchestrator, KindReviewRequest},
	}
	for _, tc := range cases {
		_, err := q.Send(tc.from, tc.kind, "x", PriorityNormal)
		var invalidKind *InvalidKindError
		if !errors.As(err, &invalidKind) {
			t.Errorf("Send(%s, %s): expected InvalidKindError, got %v", tc.from, tc.kind, err)
		}
	}

	// No file may exist after any rejected send.
	for _, role := range []Role{RoleWorker, RoleOrchestrator} {
		pending, err := q.HasPending(role)
		if err != nil {
			t.Fatalf("HasPending(%s): %v", role, err)
		}
		if pending {
			t.Errorf("%s inbox has pending messages after rejected sends", role)
		}
	}
}

func TestQueueHasPendingAndArchive(t *testing.T) {
	q := NewQueue(t.TempDir())

	pending, err := q.HasPending(RoleOrchestrator)
	if err != nil {
		t.Fatalf("HasPending: %v", err)
	}
	if pending {
		t.Error("empty queue should have no pending messages")
	}

	name, err := q.Send(RoleWorker, KindProgress, "tests green", PriorityLow)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	pending, err = q.HasPending(RoleOrchestrator)
	if err != nil {
		t.Fatalf("HasPending: %v", err)
	}
	if !pending {
		t.Error("expected pending message after send")
	}

	if err := q.Archive(RoleOrchestrator, name); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	pending, err = q.HasPending(RoleOrchestrator)
	if err != nil {
		t.Fatalf("HasPending: %v", err)
	}
	if pending {
		t.Error("expected no pending messages after archive")
	}

	// Double archive is benign for callers: typed NotFoundError.
	err = q.Archive(RoleOrchestrator, name)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}
