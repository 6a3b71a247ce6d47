package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/models"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/repositories"
)

// memStore is an in-memory stand-in for the PostgreSQL repositories. It mimics
// row-level locking: FOR UPDATE reads and writes lock the row until the
// transaction ends, and a failed transaction replays its undo log.
type memStore struct {
	mu     sync.Mutex
	events map[int]models.Event
	users  map[int]models.User
	parts  map[int]models.Participation
	nextID int

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	// plainCounterUpdates makes AdjustAttendingCount skip its capacity
	// predicate, leaving the service's locked check as the only guard.
	plainCounterUpdates bool

	listErr error
}

func newMemStore() *memStore {
	return &memStore{
		events: make(map[int]models.Event),
		users:  make(map[int]models.User),
		parts:  make(map[int]models.Participation),
		locks:  make(map[string]*sync.Mutex),
	}
}

func (m *memStore) addEvent(e models.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = e
}

func (m *memStore) addUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *memStore) addParticipation(p models.Participation) models.Participation {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	m.parts[p.ID] = p
	return p
}

func (m *memStore) event(id int) *models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.events[id]
	return &e
}

func (m *memStore) participation(eventID, userID int) (models.Participation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.parts {
		if p.EventID == eventID && p.UserID == userID {
			return p, true
		}
	}
	return models.Participation{}, false
}

func (m *memStore) rowLock(key string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

func eventKey(id int) string { return fmt.Sprintf("event:%d", id) }

func participationKey(eventID, userID int) string {
	return fmt.Sprintf("participation:%d:%d", eventID, userID)
}

// memTx is the executor handed to fn by WithinTx. Its SQL methods are never
// called; the fake repositories only use it to find the transaction.
type memTx struct {
	repositories.SQLExecutor

	store  *memStore
	held   []*sync.Mutex
	locked map[string]bool
	undo   []func()
}

func txOf(exec repositories.SQLExecutor) *memTx {
	tx, _ := exec.(*memTx)
	return tx
}

// lock takes the row lock for key until the transaction ends. Outside a
// transaction it is a no-op, like an autocommit read.
func (tx *memTx) lock(key string) {
	if tx == nil || tx.locked[key] {
		return
	}
	l := tx.store.rowLock(key)
	l.Lock()
	tx.held = append(tx.held, l)
	tx.locked[key] = true
}

func (tx *memTx) onRollback(fn func()) {
	if tx != nil {
		tx.undo = append(tx.undo, fn)
	}
}

func (m *memStore) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	tx := &memTx{store: m, locked: make(map[string]bool)}
	err := fn(tx)
	if err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
	}
	for i := len(tx.held) - 1; i >= 0; i-- {
		tx.held[i].Unlock()
	}
	return err
}

type memEventRepo struct{ *memStore }

func (r memEventRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return nil, repositories.ErrEventNotFound
	}
	return &e, nil
}

func (r memEventRepo) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Event, error) {
	txOf(exec).lock(eventKey(id))
	return r.GetByID(ctx, exec, id)
}

func (r memEventRepo) AdjustAttendingCount(_ context.Context, exec repositories.SQLExecutor, id int, delta int) error {
	tx := txOf(exec)
	tx.lock(eventKey(id))

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return repositories.ErrEventNotFound
	}
	prev := e.Attending()
	next := prev + delta
	if !r.plainCounterUpdates && delta > 0 && e.CapacityLimit != nil && next > *e.CapacityLimit {
		return repositories.ErrEventCapacityReached
	}
	if next < 0 {
		next = 0
	}
	e.AttendingCount = &next
	r.events[id] = e

	applied := next - prev
	tx.onRollback(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		e := r.events[id]
		restored := e.Attending() - applied
		e.AttendingCount = &restored
		r.events[id] = e
	})
	return nil
}

type memUserRepo struct{ *memStore }

func (r memUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return &u, nil
}

type memParticipationRepo struct{ *memStore }

func (r memParticipationRepo) find(match func(models.Participation) bool) (*models.Participation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.parts {
		if match(p) {
			cp := p
			return &cp, nil
		}
	}
	return nil, repositories.ErrParticipationNotFound
}

func (r memParticipationRepo) GetByEventAndUser(_ context.Context, _ repositories.SQLExecutor, eventID, userID int) (*models.Participation, error) {
	return r.find(func(p models.Participation) bool { return p.EventID == eventID && p.UserID == userID })
}

func (r memParticipationRepo) GetByEventAndUserForUpdate(ctx context.Context, exec repositories.SQLExecutor, eventID, userID int) (*models.Participation, error) {
	txOf(exec).lock(participationKey(eventID, userID))
	return r.GetByEventAndUser(ctx, exec, eventID, userID)
}

func (r memParticipationRepo) GetByTransactionID(_ context.Context, _ repositories.SQLExecutor, transactionID string) (*models.Participation, error) {
	return r.find(func(p models.Participation) bool {
		return p.PaymentTransactionID != nil && *p.PaymentTransactionID == transactionID
	})
}

func (r memParticipationRepo) Create(_ context.Context, exec repositories.SQLExecutor, p *models.Participation) error {
	tx := txOf(exec)
	tx.lock(participationKey(p.EventID, p.UserID))

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.parts {
		if existing.EventID == p.EventID && existing.UserID == p.UserID {
			return repositories.ErrParticipationConflict
		}
		if p.PaymentTransactionID != nil && existing.PaymentTransactionID != nil &&
			*existing.PaymentTransactionID == *p.PaymentTransactionID {
			return repositories.ErrDuplicateTransaction
		}
	}
	r.nextID++
	p.ID = r.nextID
	p.CreatedAt = p.UpdatedAt
	r.parts[p.ID] = *p

	id := p.ID
	tx.onRollback(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.parts, id)
	})
	return nil
}

// restoreOnRollback puts prev back if the transaction fails.
func (r memParticipationRepo) restoreOnRollback(tx *memTx, prev models.Participation) {
	tx.onRollback(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.parts[prev.ID] = prev
	})
}

func (r memParticipationRepo) UpdateStatus(_ context.Context, exec repositories.SQLExecutor, p *models.Participation, from models.ParticipationStatus) error {
	tx := txOf(exec)
	tx.lock(participationKey(p.EventID, p.UserID))

	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.parts[p.ID]
	if !ok || stored.Status != from {
		return repositories.ErrParticipationStale
	}
	r.restoreOnRollback(tx, stored)
	stored.Status = p.Status
	stored.UpdatedAt = p.UpdatedAt
	if p.ReviewedAt != nil {
		stored.ReviewedAt = p.ReviewedAt
	}
	r.parts[p.ID] = stored
	return nil
}

func (r memParticipationRepo) Reopen(_ context.Context, exec repositories.SQLExecutor, p *models.Participation, from models.ParticipationStatus) error {
	tx := txOf(exec)
	tx.lock(participationKey(p.EventID, p.UserID))

	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.parts[p.ID]
	if !ok || stored.Status != from {
		return repositories.ErrParticipationStale
	}
	r.restoreOnRollback(tx, stored)
	p.ReviewedAt = nil
	r.parts[p.ID] = *p
	return nil
}

func (r memParticipationRepo) application(p models.Participation) models.Application {
	app := models.Application{Participation: p, EventTitle: r.events[p.EventID].Title}
	if u, ok := r.users[p.UserID]; ok {
		app.Applicant = &u
	}
	return app
}

func (r memParticipationRepo) ListByEvent(_ context.Context, eventID int, status models.ParticipationStatus) ([]models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	apps := make([]models.Application, 0)
	for _, p := range r.parts {
		if p.EventID == eventID && p.Status == status {
			apps = append(apps, r.application(p))
		}
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].Participation.ID < apps[j].Participation.ID })
	return apps, nil
}

func (r memParticipationRepo) ListForHost(_ context.Context, hostID int, statuses []models.ParticipationStatus, reviewedOnly bool) ([]models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	want := make(map[models.ParticipationStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	apps := make([]models.Application, 0)
	for _, p := range r.parts {
		if r.events[p.EventID].HostID != hostID || !want[p.Status] {
			continue
		}
		if reviewedOnly && p.ReviewedAt == nil {
			continue
		}
		apps = append(apps, r.application(p))
	}
	sort.Slice(apps, func(i, j int) bool {
		return apps[i].Participation.UpdatedAt.After(apps[j].Participation.UpdatedAt)
	})
	return apps, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []models.ParticipationChange
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, change models.ParticipationChange) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change)
	return n.err
}

func (n *recordingNotifier) recorded() []models.ParticipationChange {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.ParticipationChange(nil), n.changes...)
}

type recordingArchiver struct {
	mu       sync.Mutex
	archived map[string][]byte
	err      error
}

func (a *recordingArchiver) Archive(_ context.Context, transactionID string, payload []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.archived == nil {
		a.archived = make(map[string][]byte)
	}
	a.archived[transactionID] = payload
	return a.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
