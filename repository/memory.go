// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/amirphl/tv-slot-pool/models"
	"github.com/amirphl/tv-slot-pool/utils"
)

type memoryTxKey struct{}

// MemoryStore is a process-local Store. All repositories share one mutex; a
// transaction holds it for its whole duration and undoes the rows it touched on error.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState

	accounts *memoryAccountRepository
	slots    *memorySlotRepository
	history  *memorySlotHistoryRepository
	counters *memorySequenceCounterRepository
}

type memoryState struct {
	accounts map[uint]*models.Account
	slots    map[uint]*models.Slot
	history  []*models.SlotHistory
	counters map[string]int64
	// assigned counts the assigned history entries of each slot
	assigned map[uint]int

	nextAccountID uint
	nextSlotID    uint
	nextHistoryID uint

	undo *memoryUndo
}

// memoryUndo holds the pre-transaction value of every row a transaction
// touched. A nil row means it did not exist. history is append-only, so its
// header at begin is enough; cascade deletes replace the slice instead of
// filtering it in place.
type memoryUndo struct {
	accounts map[uint]*models.Account
	slots    map[uint]*models.Slot
	counters map[string]int64
	assigned map[uint]int
	history  []*models.SlotHistory

	nextAccountID uint
	nextSlotID    uint
	nextHistoryID uint
}

func newMemoryState() *memoryState {
	return &memoryState{
		accounts: make(map[uint]*models.Account),
		slots:    make(map[uint]*models.Slot),
		counters: make(map[string]int64),
		assigned: make(map[uint]int),
	}
}

func (st *memoryState) begin() {
	st.undo = &memoryUndo{
		accounts:      make(map[uint]*models.Account),
		slots:         make(map[uint]*models.Slot),
		counters:      make(map[string]int64),
		assigned:      make(map[uint]int),
		history:       st.history,
		nextAccountID: st.nextAccountID,
		nextSlotID:    st.nextSlotID,
		nextHistoryID: st.nextHistoryID,
	}
}

func (st *memoryState) commit() {
	st.undo = nil
}

func (st *memoryState) rollback() {
	u := st.undo
	st.undo = nil
	if u == nil {
		return
	}
	for id, a := range u.accounts {
		if a == nil {
			delete(st.accounts, id)
		} else {
			st.accounts[id] = a
		}
	}
	for id, sl := range u.slots {
		if sl == nil {
			delete(st.slots, id)
		} else {
			st.slots[id] = sl
		}
	}
	for name, v := range u.counters {
		st.counters[name] = v
	}
	for id, n := range u.assigned {
		if n == 0 {
			delete(st.assigned, id)
		} else {
			st.assigned[id] = n
		}
	}
	st.history = u.history
	st.nextAccountID = u.nextAccountID
	st.nextSlotID = u.nextSlotID
	st.nextHistoryID = u.nextHistoryID
}

// touchAccount, touchSlot, touchCounter and touchAssigned must run before the row changes

func (st *memoryState) touchAccount(id uint) {
	if st.undo == nil {
		return
	}
	if _, seen := st.undo.accounts[id]; seen {
		return
	}
	var prev *models.Account
	if a, ok := st.accounts[id]; ok {
		prev = copyAccount(a)
	}
	st.undo.accounts[id] = prev
}

func (st *memoryState) touchSlot(id uint) {
	if st.undo == nil {
		return
	}
	if _, seen := st.undo.slots[id]; seen {
		return
	}
	var prev *models.Slot
	if sl, ok := st.slots[id]; ok {
		prev = copySlot(sl)
	}
	st.undo.slots[id] = prev
}

func (st *memoryState) touchCounter(name string) {
	if st.undo == nil {
		return
	}
	if _, seen := st.undo.counters[name]; !seen {
		st.undo.counters[name] = st.counters[name]
	}
}

func (st *memoryState) touchAssigned(slotID uint) {
	if st.undo == nil {
		return
	}
	if _, seen := st.undo.assigned[slotID]; !seen {
		st.undo.assigned[slotID] = st.assigned[slotID]
	}
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{state: newMemoryState()}
	s.accounts = &memoryAccountRepository{s: s}
	s.slots = &memorySlotRepository{s: s}
	s.history = &memorySlotHistoryRepository{s: s}
	s.counters = &memorySequenceCounterRepository{s: s}
	return s
}

func (s *MemoryStore) Accounts() AccountRepository         { return s.accounts }
func (s *MemoryStore) Slots() SlotRepository               { return s.slots }
func (s *MemoryStore) History() SlotHistoryRepository      { return s.history }
func (s *MemoryStore) Counters() SequenceCounterRepository { return s.counters }

func (s *MemoryStore) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(memoryTxKey{}).(*MemoryStore)
	return ok && owner == s
}

// lock acquires the store mutex unless ctx already runs inside one of its transactions
func (s *MemoryStore) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// WithTransaction runs fn atomically against the store. Nested calls join the outer transaction.
func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.begin()
	defer func() {
		if r := recover(); r != nil {
			s.state.rollback()
			err = fmt.Errorf("panic in transaction: %v", r)
		}
	}()

	if err := fn(context.WithValue(ctx, memoryTxKey{}, s)); err != nil {
		s.state.rollback()
		return err
	}

	s.state.commit()
	return nil
}

func copyAccount(a *models.Account) *models.Account {
	c := *a
	c.Slots = nil
	return &c
}

func copySlot(sl *models.Slot) *models.Slot {
	c := *sl
	c.Account = nil
	return &c
}

func copyHistory(h *models.SlotHistory) *models.SlotHistory {
	c := *h
	c.Metadata = append([]byte(nil), h.Metadata...)
	c.Slot = nil
	return &c
}

// slotWithAccount returns a detached copy of sl with its account attached
func (st *memoryState) slotWithAccount(sl *models.Slot) *models.Slot {
	c := copySlot(sl)
	if a, ok := st.accounts[sl.AccountID]; ok {
		c.Account = copyAccount(a)
	}
	return c
}

func (st *memoryState) hasAction(slotID uint, action models.SlotHistoryAction) bool {
	if action == models.SlotHistoryActionAssigned {
		return st.assigned[slotID] > 0
	}
	for _, h := range st.history {
		if h.SlotID == slotID && h.Action == action {
			return true
		}
	}
	return false
}

func (st *memoryState) isCandidate(sl *models.Slot, freshOnly bool) bool {
	if !sl.IsFree() {
		return false
	}
	return !freshOnly || !st.hasAction(sl.ID, models.SlotHistoryActionAssigned)
}

// sortedSlots orders slots by account sequence then slot number
func (st *memoryState) sortedSlots(keep func(*models.Slot) bool) []*models.Slot {
	var out []*models.Slot
	for _, sl := range st.slots {
		if keep(sl) {
			out = append(out, sl)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := st.accounts[out[i].AccountID], st.accounts[out[j].AccountID]
		if ai.SequenceIndex != aj.SequenceIndex {
			return ai.SequenceIndex < aj.SequenceIndex
		}
		return out[i].SlotNumber < out[j].SlotNumber
	})
	return out
}

// ---------------------------------------------------------------------------
// Accounts

type memoryAccountRepository struct {
	s *MemoryStore
}

func matchAccount(a *models.Account, f models.AccountFilter) bool {
	switch {
	case f.ID != nil && a.ID != *f.ID:
		return false
	case f.UUID != nil && a.UUID != *f.UUID:
		return false
	case f.SequenceIndex != nil && a.SequenceIndex != *f.SequenceIndex:
		return false
	case f.Email != nil && a.Email != *f.Email:
		return false
	case f.CreatedAfter != nil && a.CreatedAt.Before(*f.CreatedAfter):
		return false
	case f.CreatedBefore != nil && !a.CreatedAt.Before(*f.CreatedBefore):
		return false
	}
	return true
}

func (r *memoryAccountRepository) ByID(ctx context.Context, id uint) (*models.Account, error) {
	defer r.s.lock(ctx)()
	a, ok := r.s.state.accounts[id]
	if !ok {
		return nil, nil
	}
	return copyAccount(a), nil
}

// ByFilter ignores orderBy and always returns accounts in sequence order
func (r *memoryAccountRepository) ByFilter(ctx context.Context, filter models.AccountFilter, _ string, limit, offset int) ([]*models.Account, error) {
	defer r.s.lock(ctx)()
	var rows []*models.Account
	for _, a := range r.s.state.accounts {
		if matchAccount(a, filter) {
			rows = append(rows, copyAccount(a))
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SequenceIndex < rows[j].SequenceIndex })
	return paginate(rows, limit, offset), nil
}

func (r *memoryAccountRepository) Save(ctx context.Context, account *models.Account) error {
	return r.s.WithTransaction(ctx, func(ctx context.Context) error {
		return r.s.state.insertAccount(account)
	})
}

func (r *memoryAccountRepository) Count(ctx context.Context, filter models.AccountFilter) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for _, a := range r.s.state.accounts {
		if matchAccount(a, filter) {
			n++
		}
	}
	return n, nil
}

func (r *memoryAccountRepository) Exists(ctx context.Context, filter models.AccountFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *memoryAccountRepository) CreateNext(ctx context.Context, build AccountBuilder) (*models.Account, error) {
	var account *models.Account
	err := r.s.WithTransaction(ctx, func(ctx context.Context) error {
		seq, err := r.s.counters.Next(ctx, models.SequenceAccountIndex)
		if err != nil {
			return err
		}
		account, err = build(seq)
		if err != nil {
			return err
		}
		return r.s.state.insertAccount(account)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// insertAccount stores account and its slots, enforcing the same unique keys as the schema
func (st *memoryState) insertAccount(account *models.Account) error {
	for _, a := range st.accounts {
		if a.SequenceIndex == account.SequenceIndex {
			return fmt.Errorf("failed to create account %d: duplicate sequence index", account.SequenceIndex)
		}
		if a.Email == account.Email {
			return fmt.Errorf("failed to create account %d: duplicate email %s", account.SequenceIndex, account.Email)
		}
	}
	usernames := make(map[string]struct{}, len(st.slots))
	for _, sl := range st.slots {
		usernames[sl.Username] = struct{}{}
	}
	numbers := make(map[int]struct{}, len(account.Slots))
	for _, sl := range account.Slots {
		if _, dup := usernames[sl.Username]; dup {
			return fmt.Errorf("failed to create account %d: duplicate username %s", account.SequenceIndex, sl.Username)
		}
		if _, dup := numbers[sl.SlotNumber]; dup {
			return fmt.Errorf("failed to create account %d: duplicate slot number %d", account.SequenceIndex, sl.SlotNumber)
		}
		usernames[sl.Username] = struct{}{}
		numbers[sl.SlotNumber] = struct{}{}
	}

	now := utils.UTCNow()
	st.nextAccountID++
	account.ID = st.nextAccountID
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	st.touchAccount(account.ID)
	st.accounts[account.ID] = copyAccount(account)

	for i := range account.Slots {
		sl := &account.Slots[i]
		st.nextSlotID++
		sl.ID = st.nextSlotID
		sl.AccountID = account.ID
		if sl.Status == "" {
			sl.Status = models.SlotStatusAvailable
		}
		sl.CreatedAt = now
		sl.UpdatedAt = now
		st.touchSlot(sl.ID)
		st.slots[sl.ID] = copySlot(sl)
	}
	return nil
}

func (r *memoryAccountRepository) Delete(ctx context.Context, id uint) (bool, error) {
	defer r.s.lock(ctx)()
	st := r.s.state
	if _, ok := st.accounts[id]; !ok {
		return false, nil
	}
	st.touchAccount(id)
	delete(st.accounts, id)

	removed := make(map[uint]struct{})
	for sid, sl := range st.slots {
		if sl.AccountID == id {
			removed[sid] = struct{}{}
			st.touchSlot(sid)
			delete(st.slots, sid)
			st.touchAssigned(sid)
			delete(st.assigned, sid)
		}
	}
	kept := make([]*models.SlotHistory, 0, len(st.history))
	for _, h := range st.history {
		if _, gone := removed[h.SlotID]; !gone {
			kept = append(kept, h)
		}
	}
	st.history = kept
	return true, nil
}

func (r *memoryAccountRepository) Inventory(ctx context.Context) ([]*AccountInventory, error) {
	defer r.s.lock(ctx)()
	st := r.s.state

	byAccount := make(map[uint]*AccountInventory, len(st.accounts))
	var rows []*AccountInventory
	for _, a := range st.accounts {
		inv := &AccountInventory{
			AccountID:     a.ID,
			SequenceIndex: a.SequenceIndex,
			Email:         a.Email,
			Capacity:      a.Capacity,
		}
		byAccount[a.ID] = inv
		rows = append(rows, inv)
	}
	for _, sl := range st.slots {
		inv := byAccount[sl.AccountID]
		if inv == nil {
			continue
		}
		switch sl.Status {
		case models.SlotStatusAvailable:
			if sl.ClientID == nil {
				inv.Available++
				if !st.hasAction(sl.ID, models.SlotHistoryActionAssigned) {
					inv.Fresh++
				}
			}
		case models.SlotStatusAssigned:
			inv.Assigned++
		case models.SlotStatusInactive:
			inv.Inactive++
		case models.SlotStatusSuspended:
			inv.Suspended++
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SequenceIndex < rows[j].SequenceIndex })
	return rows, nil
}

// ---------------------------------------------------------------------------
// Slots

type memorySlotRepository struct {
	s *MemoryStore
}

func matchSlot(sl *models.Slot, f models.SlotFilter) bool {
	switch {
	case f.ID != nil && sl.ID != *f.ID:
		return false
	case f.UUID != nil && sl.UUID != *f.UUID:
		return false
	case f.AccountID != nil && sl.AccountID != *f.AccountID:
		return false
	case f.ClientID != nil && (sl.ClientID == nil || *sl.ClientID != *f.ClientID):
		return false
	case f.Status != nil && sl.Status != *f.Status:
		return false
	case f.PlanType != nil && (sl.PlanType == nil || *sl.PlanType != *f.PlanType):
		return false
	case f.Username != nil && sl.Username != *f.Username:
		return false
	case f.SlotNumber != nil && sl.SlotNumber != *f.SlotNumber:
		return false
	}
	return true
}

func (r *memorySlotRepository) ByID(ctx context.Context, id uint) (*models.Slot, error) {
	defer r.s.lock(ctx)()
	sl, ok := r.s.state.slots[id]
	if !ok {
		return nil, nil
	}
	return r.s.state.slotWithAccount(sl), nil
}

// ByIDForUpdate is ByID; the store mutex already serializes writers
func (r *memorySlotRepository) ByIDForUpdate(ctx context.Context, id uint) (*models.Slot, error) {
	return r.ByID(ctx, id)
}

// ByFilter ignores orderBy and returns slots by account sequence then slot number
func (r *memorySlotRepository) ByFilter(ctx context.Context, filter models.SlotFilter, _ string, limit, offset int) ([]*models.Slot, error) {
	defer r.s.lock(ctx)()
	st := r.s.state
	matched := st.sortedSlots(func(sl *models.Slot) bool { return matchSlot(sl, filter) })
	rows := make([]*models.Slot, 0, len(matched))
	for _, sl := range matched {
		rows = append(rows, st.slotWithAccount(sl))
	}
	return paginate(rows, limit, offset), nil
}

func (r *memorySlotRepository) Save(ctx context.Context, slot *models.Slot) error {
	defer r.s.lock(ctx)()
	st := r.s.state
	if _, ok := st.accounts[slot.AccountID]; !ok {
		return fmt.Errorf("failed to save entity: account %d does not exist", slot.AccountID)
	}
	for _, sl := range st.slots {
		if sl.Username == slot.Username {
			return fmt.Errorf("failed to save entity: duplicate username %s", slot.Username)
		}
		if sl.AccountID == slot.AccountID && sl.SlotNumber == slot.SlotNumber {
			return fmt.Errorf("failed to save entity: duplicate slot number %d", slot.SlotNumber)
		}
	}
	now := utils.UTCNow()
	st.nextSlotID++
	slot.ID = st.nextSlotID
	slot.CreatedAt = now
	slot.UpdatedAt = now
	st.touchSlot(slot.ID)
	st.slots[slot.ID] = copySlot(slot)
	return nil
}

func (r *memorySlotRepository) Count(ctx context.Context, filter models.SlotFilter) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for _, sl := range r.s.state.slots {
		if matchSlot(sl, filter) {
			n++
		}
	}
	return n, nil
}

func (r *memorySlotRepository) Exists(ctx context.Context, filter models.SlotFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *memorySlotRepository) SelectCandidates(ctx context.Context, limit int, freshOnly bool) ([]*models.Slot, error) {
	defer r.s.lock(ctx)()
	st := r.s.state
	matched := st.sortedSlots(func(sl *models.Slot) bool { return st.isCandidate(sl, freshOnly) })
	rows := make([]*models.Slot, 0, len(matched))
	for _, sl := range matched {
		rows = append(rows, copySlot(sl))
	}
	return paginate(rows, limit, 0), nil
}

func (r *memorySlotRepository) CountAvailable(ctx context.Context, freshOnly bool) (int64, error) {
	defer r.s.lock(ctx)()
	st := r.s.state
	var n int64
	for _, sl := range st.slots {
		if st.isCandidate(sl, freshOnly) {
			n++
		}
	}
	return n, nil
}

func (r *memorySlotRepository) TryClaim(ctx context.Context, slotID, clientID uint, sale models.SlotSale) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	defer r.s.lock(ctx)()
	sl, ok := r.s.state.slots[slotID]
	if !ok || !sl.IsFree() {
		return false, nil
	}
	r.s.state.touchSlot(slotID)
	sl.Status = models.SlotStatusAssigned
	sl.ClientID = utils.ToPtr(clientID)
	sl.PlanType = sale.PlanType
	sl.SoldBy = sale.SoldBy
	sl.SoldAt = sale.SoldAt
	sl.StartsAt = sale.StartsAt
	sl.ExpiresAt = sale.ExpiresAt
	sl.Notes = sale.Notes
	sl.UpdatedAt = utils.UTCNow()
	return true, nil
}

func (r *memorySlotRepository) Release(ctx context.Context, slotID, clientID uint, newPassword string) (bool, error) {
	defer r.s.lock(ctx)()
	sl, ok := r.s.state.slots[slotID]
	if !ok || sl.Status != models.SlotStatusAssigned || sl.ClientID == nil || *sl.ClientID != clientID {
		return false, nil
	}
	r.s.state.touchSlot(slotID)
	sl.Status = models.SlotStatusAvailable
	sl.ClientID = nil
	sl.SoldBy = nil
	sl.SoldAt = nil
	sl.ExpiresAt = nil
	sl.Notes = nil
	sl.Password = newPassword
	sl.UpdatedAt = utils.UTCNow()
	return true, nil
}

func (r *memorySlotRepository) ApplyPatch(ctx context.Context, slotID uint, patch models.SlotPatch, mode PatchMode) error {
	defer r.s.lock(ctx)()
	sl, ok := r.s.state.slots[slotID]
	if !ok {
		return nil
	}
	r.s.state.touchSlot(slotID)
	if mode == PatchRelease {
		sl.SoldBy = nil
		sl.SoldAt = nil
		sl.ExpiresAt = nil
		sl.Notes = nil
		sl.ClientID = nil
	}
	if patch.SoldBy != nil {
		sl.SoldBy = utils.ToPtr(*patch.SoldBy)
	}
	if patch.SoldAt != nil {
		sl.SoldAt = utils.ToPtr(*patch.SoldAt)
	}
	if patch.StartsAt != nil {
		sl.StartsAt = utils.ToPtr(*patch.StartsAt)
	}
	if patch.ExpiresAt != nil {
		sl.ExpiresAt = utils.ToPtr(*patch.ExpiresAt)
	}
	if patch.Status != nil {
		sl.Status = *patch.Status
	}
	if patch.Notes != nil {
		sl.Notes = utils.ToPtr(*patch.Notes)
	}
	if patch.PlanType != nil {
		sl.PlanType = utils.ToPtr(*patch.PlanType)
	}
	if patch.Password != nil {
		sl.Password = *patch.Password
	}
	sl.UpdatedAt = utils.UTCNow()
	return nil
}

func (r *memorySlotRepository) SetPassword(ctx context.Context, slotID uint, password string) error {
	defer r.s.lock(ctx)()
	if sl, ok := r.s.state.slots[slotID]; ok {
		r.s.state.touchSlot(slotID)
		sl.Password = password
		sl.UpdatedAt = utils.UTCNow()
	}
	return nil
}

func (r *memorySlotRepository) ListByClient(ctx context.Context, clientID uint) ([]*models.Slot, error) {
	defer r.s.lock(ctx)()
	st := r.s.state
	var rows []*models.Slot
	for _, sl := range st.slots {
		if sl.Status == models.SlotStatusAssigned && sl.ClientID != nil && *sl.ClientID == clientID {
			rows = append(rows, st.slotWithAccount(sl))
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (r *memorySlotRepository) ListIDsAfter(ctx context.Context, afterID uint, limit int) ([]uint, error) {
	defer r.s.lock(ctx)()
	var ids []uint
	for id := range r.s.state.slots {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return paginate(ids, limit, 0), nil
}

// ---------------------------------------------------------------------------
// History

type memorySlotHistoryRepository struct {
	s *MemoryStore
}

func (r *memorySlotHistoryRepository) Save(ctx context.Context, entry *models.SlotHistory) error {
	defer r.s.lock(ctx)()
	st := r.s.state
	if _, ok := st.slots[entry.SlotID]; !ok {
		return fmt.Errorf("failed to save entity: slot %d does not exist", entry.SlotID)
	}
	st.nextHistoryID++
	entry.ID = st.nextHistoryID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = utils.UTCNow()
	}
	st.history = append(st.history, copyHistory(entry))
	if entry.Action == models.SlotHistoryActionAssigned {
		st.touchAssigned(entry.SlotID)
		st.assigned[entry.SlotID]++
	}
	return nil
}

func (r *memorySlotHistoryRepository) ListBySlot(ctx context.Context, slotID uint) ([]*models.SlotHistory, error) {
	return r.ListBySlots(ctx, []uint{slotID})
}

func (r *memorySlotHistoryRepository) ListBySlots(ctx context.Context, slotIDs []uint) ([]*models.SlotHistory, error) {
	defer r.s.lock(ctx)()
	wanted := make(map[uint]struct{}, len(slotIDs))
	for _, id := range slotIDs {
		wanted[id] = struct{}{}
	}
	var rows []*models.SlotHistory
	for i := len(r.s.state.history) - 1; i >= 0; i-- {
		h := r.s.state.history[i]
		if _, ok := wanted[h.SlotID]; ok {
			rows = append(rows, copyHistory(h))
		}
	}
	return rows, nil
}

func (r *memorySlotHistoryRepository) ExistsAction(ctx context.Context, slotID uint, action models.SlotHistoryAction) (bool, error) {
	defer r.s.lock(ctx)()
	return r.s.state.hasAction(slotID, action), nil
}

// ---------------------------------------------------------------------------
// Counters

type memorySequenceCounterRepository struct {
	s *MemoryStore
}

func (r *memorySequenceCounterRepository) Next(ctx context.Context, name string) (int64, error) {
	defer r.s.lock(ctx)()
	r.s.state.touchCounter(name)
	r.s.state.counters[name]++
	return r.s.state.counters[name], nil
}

func (r *memorySequenceCounterRepository) Current(ctx context.Context, name string) (int64, error) {
	defer r.s.lock(ctx)()
	return r.s.state.counters[name], nil
}

func paginate[T any](rows []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
