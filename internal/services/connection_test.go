package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/campuslink/internal/models"
)

// connectionStore is an in-memory stand-in for the tables the connection
// service touches, driven by the SQL it issues.
type connectionStore struct {
	mu       sync.Mutex
	counts   map[uuid.UUID]int
	requests map[uuid.UUID]*models.ConnectionRequest
	locks    []uuid.UUID
	commits  int
}

func newConnectionStore(profiles ...uuid.UUID) *connectionStore {
	st := &connectionStore{counts: map[uuid.UUID]int{}, requests: map[uuid.UUID]*models.ConnectionRequest{}}
	for _, id := range profiles {
		st.counts[id] = 0
	}
	return st
}

func (st *connectionStore) db() *fakeDB {
	return &fakeDB{
		QueryRowFunc: st.queryRow,
		ExecFunc:     st.exec,
		BeginFunc: func(ctx context.Context) (Tx, error) {
			return &fakeTx{
				QueryRowFunc: st.queryRow,
				ExecFunc:     st.exec,
				CommitFunc: func(ctx context.Context) error {
					st.mu.Lock()
					st.commits++
					st.mu.Unlock()
					return nil
				},
			}, nil
		},
	}
}

func requestValues(r *models.ConnectionRequest) []any {
	return []any{r.ID, r.SenderID, r.ReceiverID, string(r.Status), r.Message, r.CreatedAt, r.RespondedAt}
}

func noRows() Row {
	return fakeRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
}

func (st *connectionStore) active(a, b uuid.UUID, statuses ...models.ConnectionStatus) *models.ConnectionRequest {
	for _, r := range st.requests {
		pair := (r.SenderID == a && r.ReceiverID == b) || (r.SenderID == b && r.ReceiverID == a)
		if !pair {
			continue
		}
		for _, s := range statuses {
			if r.Status == s {
				return r
			}
		}
	}
	return nil
}

func (st *connectionStore) queryRow(ctx context.Context, sql string, args ...any) Row {
	st.mu.Lock()
	defer st.mu.Unlock()

	switch {
	case strings.Contains(sql, "FROM profiles WHERE id = $1") && strings.Contains(sql, "FOR UPDATE"):
		id := args[0].(uuid.UUID)
		if _, ok := st.counts[id]; !ok {
			return noRows()
		}
		st.locks = append(st.locks, id)
		return rowFromValues(id)
	case strings.Contains(sql, "SELECT EXISTS") && strings.Contains(sql, "status IN ('pending', 'accepted')"):
		a, b := args[0].(uuid.UUID), args[1].(uuid.UUID)
		return rowFromValues(st.active(a, b, models.ConnectionStatusPending, models.ConnectionStatusAccepted) != nil)
	case strings.Contains(sql, "SELECT EXISTS") && strings.Contains(sql, "status = 'accepted'"):
		a, b := args[0].(uuid.UUID), args[1].(uuid.UUID)
		return rowFromValues(st.active(a, b, models.ConnectionStatusAccepted) != nil)
	case strings.Contains(sql, "INSERT INTO connection_requests"):
		r := &models.ConnectionRequest{
			ID:         uuid.New(),
			SenderID:   args[0].(uuid.UUID),
			ReceiverID: args[1].(uuid.UUID),
			Status:     models.ConnectionStatusPending,
			Message:    args[2].(*string),
			CreatedAt:  time.Now(),
		}
		st.requests[r.ID] = r
		return rowFromValues(requestValues(r)...)
	case strings.Contains(sql, "SELECT sender_id, receiver_id FROM connection_requests"):
		r, ok := st.requests[args[0].(uuid.UUID)]
		if !ok {
			return noRows()
		}
		return rowFromValues(r.SenderID, r.ReceiverID)
	case strings.Contains(sql, "SELECT status FROM connection_requests"):
		r, ok := st.requests[args[0].(uuid.UUID)]
		if !ok {
			return noRows()
		}
		return rowFromValues(string(r.Status))
	case strings.Contains(sql, "SELECT sender_id FROM connection_requests"):
		r, ok := st.requests[args[0].(uuid.UUID)]
		if !ok {
			return noRows()
		}
		return rowFromValues(r.SenderID)
	case strings.Contains(sql, "UPDATE connection_requests SET status"):
		r, ok := st.requests[args[0].(uuid.UUID)]
		if !ok {
			return noRows()
		}
		now := time.Now()
		r.Status = models.ConnectionStatus(args[1].(string))
		r.RespondedAt = &now
		return rowFromValues(requestValues(r)...)
	case strings.Contains(sql, "SELECT id, sender_id, status FROM connection_requests"):
		r := st.active(args[0].(uuid.UUID), args[1].(uuid.UUID), models.ConnectionStatusPending, models.ConnectionStatusAccepted)
		if r == nil {
			return noRows()
		}
		return rowFromValues(r.ID, r.SenderID, string(r.Status))
	}
	return fakeRow{scanFunc: func(dest ...any) error { return fmt.Errorf("unexpected query: %s", sql) }}
}

func (st *connectionStore) exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	switch {
	case strings.Contains(sql, "UPDATE profiles") && strings.Contains(sql, "connections_count"):
		delta := args[2].(int)
		for _, id := range []uuid.UUID{args[0].(uuid.UUID), args[1].(uuid.UUID)} {
			n := st.counts[id] + delta
			if n < 0 {
				n = 0
			}
			st.counts[id] = n
		}
		return fakeCommandTag{rowsAffected: 2}, nil
	case strings.Contains(sql, "DELETE FROM connection_requests") && strings.Contains(sql, "status = 'accepted'"):
		r := st.active(args[0].(uuid.UUID), args[1].(uuid.UUID), models.ConnectionStatusAccepted)
		if r == nil {
			return fakeCommandTag{}, nil
		}
		delete(st.requests, r.ID)
		return fakeCommandTag{rowsAffected: 1}, nil
	case strings.Contains(sql, "DELETE FROM connection_requests") && strings.Contains(sql, "status = 'pending'"):
		r, ok := st.requests[args[0].(uuid.UUID)]
		if !ok || r.SenderID != args[1].(uuid.UUID) || r.Status != models.ConnectionStatusPending {
			return fakeCommandTag{}, nil
		}
		delete(st.requests, r.ID)
		return fakeCommandTag{rowsAffected: 1}, nil
	}
	return nil, fmt.Errorf("unexpected exec: %s", sql)
}

func strPtr(s string) *string { return &s }

func TestConnectionService_SendAndAccept_IncrementsBothCountersOnce(t *testing.T) {
	sender, receiver := uuid.New(), uuid.New()
	st := newConnectionStore(sender, receiver)
	notifier := &stubNotificationService{}
	svc := NewConnectionService(st.db())
	svc.SetNotificationService(notifier)

	req, err := svc.SendRequest(context.Background(), sender, receiver, strPtr("hi"))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if req.Status != models.ConnectionStatusPending || req.Message == nil || *req.Message != "hi" {
		t.Fatalf("unexpected request: %+v", req)
	}

	accepted, err := svc.Respond(context.Background(), receiver, req.ID, true)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != models.ConnectionStatusAccepted {
		t.Fatalf("expected accepted, got %s", accepted.Status)
	}
	if st.counts[sender] != 1 || st.counts[receiver] != 1 {
		t.Fatalf("expected both counters at 1, got sender=%d receiver=%d", st.counts[sender], st.counts[receiver])
	}

	types := notifier.types()
	if len(types) != 2 || types[0] != models.NotificationConnectionRequestReceived || types[1] != models.NotificationConnectionRequestAccepted {
		t.Fatalf("unexpected notifications: %v", types)
	}
}

func TestConnectionService_SecondAcceptIsRejected(t *testing.T) {
	sender, receiver := uuid.New(), uuid.New()
	st := newConnectionStore(sender, receiver)
	svc := NewConnectionService(st.db())

	req, err := svc.SendRequest(context.Background(), sender, receiver, nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.Respond(context.Background(), receiver, req.ID, true); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	if _, err := svc.Respond(context.Background(), receiver, req.ID, true); !errors.Is(err, ErrRequestNotPending) {
		t.Fatalf("expected ErrRequestNotPending, got %v", err)
	}
	if st.counts[sender] != 1 || st.counts[receiver] != 1 {
		t.Fatalf("expected counters unchanged at 1, got sender=%d receiver=%d", st.counts[sender], st.counts[receiver])
	}
}

func TestConnectionService_AtMostOneActiveRequestPerPair(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	st := newConnectionStore(a, b)
	svc := NewConnectionService(st.db())

	if _, err := svc.SendRequest(context.Background(), a, b, nil); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.SendRequest(context.Background(), a, b, nil); !errors.Is(err, ErrConnectionRequestExists) {
		t.Fatalf("expected ErrConnectionRequestExists for duplicate, got %v", err)
	}
	if _, err := svc.SendRequest(context.Background(), b, a, nil); !errors.Is(err, ErrConnectionRequestExists) {
		t.Fatalf("expected ErrConnectionRequestExists for reverse direction, got %v", err)
	}
	if len(st.requests) != 1 {
		t.Fatalf("expected one request row, got %d", len(st.requests))
	}
}

func TestConnectionService_RejectKeepsRowAndAllowsNewRequest(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	st := newConnectionStore(a, b)
	svc := NewConnectionService(st.db())

	req, _ := svc.SendRequest(context.Background(), a, b, nil)
	rejected, err := svc.Respond(context.Background(), b, req.ID, false)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != models.ConnectionStatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}
	if _, ok := st.requests[req.ID]; !ok {
		t.Fatal("expected rejected row to be retained")
	}
	if st.counts[a] != 0 || st.counts[b] != 0 {
		t.Fatal("reject must not change counters")
	}
	if _, err := svc.SendRequest(context.Background(), a, b, nil); err != nil {
		t.Fatalf("expected a new request after rejection, got %v", err)
	}
}

func TestConnectionService_SendRequest_Validation(t *testing.T) {
	a := uuid.New()
	st := newConnectionStore(a)
	svc := NewConnectionService(st.db())

	if _, err := svc.SendRequest(context.Background(), a, a, nil); !errors.Is(err, ErrCannotConnectSelf) {
		t.Fatalf("expected ErrCannotConnectSelf, got %v", err)
	}
	long := strings.Repeat("x", models.MaxConnectionMessageLength+1)
	if _, err := svc.SendRequest(context.Background(), a, uuid.New(), &long); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}
	if _, err := svc.SendRequest(context.Background(), a, uuid.New(), nil); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound for unknown receiver, got %v", err)
	}
}

func TestConnectionService_Respond_OnlyReceiver(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	st := newConnectionStore(a, b)
	svc := NewConnectionService(st.db())

	req, _ := svc.SendRequest(context.Background(), a, b, nil)
	if _, err := svc.Respond(context.Background(), a, req.ID, true); !errors.Is(err, ErrConnectionRequestNotFound) {
		t.Fatalf("expected sender to be refused, got %v", err)
	}
	if _, err := svc.Respond(context.Background(), b, uuid.New(), true); !errors.Is(err, ErrConnectionRequestNotFound) {
		t.Fatalf("expected ErrConnectionRequestNotFound, got %v", err)
	}
}

func TestConnectionService_CancelPendingOnlyBySender(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	st := newConnectionStore(a, b)
	svc := NewConnectionService(st.db())

	req, _ := svc.SendRequest(context.Background(), a, b, nil)
	if err := svc.Cancel(context.Background(), b, req.ID); !errors.Is(err, ErrConnectionRequestNotFound) {
		t.Fatalf("expected receiver cancel to be refused, got %v", err)
	}
	if err := svc.Cancel(context.Background(), a, req.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(st.requests) != 0 {
		t.Fatal("expected request to be deleted")
	}

	req, _ = svc.SendRequest(context.Background(), a, b, nil)
	_, _ = svc.Respond(context.Background(), b, req.ID, true)
	if err := svc.Cancel(context.Background(), a, req.ID); !errors.Is(err, ErrRequestNotPending) {
		t.Fatalf("expected ErrRequestNotPending for accepted request, got %v", err)
	}
}

func TestConnectionService_RemoveDecrementsCounters(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	st := newConnectionStore(a, b)
	svc := NewConnectionService(st.db())

	req, _ := svc.SendRequest(context.Background(), a, b, nil)
	_, _ = svc.Respond(context.Background(), b, req.ID, true)

	if err := svc.Remove(context.Background(), b, a); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if st.counts[a] != 0 || st.counts[b] != 0 {
		t.Fatalf("expected counters back to 0, got a=%d b=%d", st.counts[a], st.counts[b])
	}
	if err := svc.Remove(context.Background(), a, b); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestConnectionService_Status(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	st := newConnectionStore(a, b)
	svc := NewConnectionService(st.db())
	ctx := context.Background()

	check := func(user, other uuid.UUID, want models.ConnectionState) {
		t.Helper()
		got, err := svc.Status(ctx, user, other)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if got.State != want {
			t.Fatalf("expected %s, got %s", want, got.State)
		}
	}

	check(a, a, models.ConnectionStateSelf)
	check(a, b, models.ConnectionStateNone)
	req, _ := svc.SendRequest(ctx, a, b, nil)
	check(a, b, models.ConnectionStatePendingOutgoing)
	check(b, a, models.ConnectionStatePendingIncoming)
	_, _ = svc.Respond(ctx, b, req.ID, true)
	check(a, b, models.ConnectionStateConnected)
}

func TestConnectionService_LocksProfilesInStableOrder(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	st := newConnectionStore(a, b)
	svc := NewConnectionService(st.db())

	_, _ = svc.SendRequest(context.Background(), a, b, nil)
	first := st.locks
	st.locks = nil
	_, _ = svc.SendRequest(context.Background(), b, a, nil)

	if len(first) != 2 || len(st.locks) != 2 || first[0] != st.locks[0] {
		t.Fatalf("expected identical lock order for both directions, got %v and %v", first, st.locks)
	}
}
