package attendance

import (
	"context"
	"fmt"
	"sync"

	"github.com/trezcool/darasa/core"
)

type (
	// DraftKey identifies the sheet a staff member is editing.
	DraftKey struct {
		User    string
		ClassID int
		Day     core.Day
	}

	// DraftStore keeps edited sheets between requests. Get returns core.ErrNotFound when there is no draft.
	DraftStore interface {
		Get(ctx context.Context, key DraftKey) (*Sheet, error)
		Put(ctx context.Context, key DraftKey, sheet *Sheet) error
		Delete(ctx context.Context, key DraftKey) error
	}

	memoryDraftStore struct {
		mu     sync.RWMutex
		sheets map[DraftKey]*Sheet
	}
)

func (k DraftKey) String() string {
	return fmt.Sprintf("%s:%d:%s", k.User, k.ClassID, k.Day.Key())
}

var _ DraftStore = (*memoryDraftStore)(nil)

// NewMemoryDraftStore keeps drafts in process memory; they are lost on restart.
func NewMemoryDraftStore() DraftStore {
	return &memoryDraftStore{sheets: make(map[DraftKey]*Sheet)}
}

func (st *memoryDraftStore) Get(_ context.Context, key DraftKey) (*Sheet, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if sheet, ok := st.sheets[key]; ok {
		return sheet.Clone(), nil
	}
	return nil, core.ErrNotFound
}

func (st *memoryDraftStore) Put(_ context.Context, key DraftKey, sheet *Sheet) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sheets[key] = sheet.Clone()
	return nil
}

func (st *memoryDraftStore) Delete(_ context.Context, key DraftKey) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sheets, key)
	return nil
}
