package posting

import (
	"context"
	"sync"
	"time"

	"payrollsync/internal/domain/ledger"
)

// ReferenceSearcher is the authoritative duplicate check: the ledger's own
// exact-match search by reference number.
type ReferenceSearcher interface {
	FindByReference(ctx context.Context, companyKey, referenceNumber string) (*ledger.ExpenseRecord, error)
}

// DuplicateGuard decides whether a period's expense may be created. It layers
// a session-scoped cache over the remote reference search so the remote check
// can never be bypassed by ad hoc conditionals: a creation happens only after
// Check returns no record.
type DuplicateGuard interface {
	// Check returns the existing expense for the reference, if any, and
	// whether it came from the local cache. A nil record clears the caller
	// to create.
	Check(ctx context.Context, companyKey, referenceNumber string) (*ledger.ExpenseRecord, bool, error)
	// MarkPosted records a successful creation in the local cache. It is
	// never called for failed creations, so a later attempt re-runs the
	// remote search.
	MarkPosted(referenceNumber, expenseID string)
}

type cacheEntry struct {
	expenseID string
	seenAt    time.Time
}

// guard's local cache is advisory only: it saves a network round trip within
// one session, but a miss proves nothing, because the cache does not survive
// restarts or span other operators.
type guard struct {
	searcher ReferenceSearcher

	mu   sync.Mutex
	seen map[string]cacheEntry
}

func NewDuplicateGuard(searcher ReferenceSearcher) DuplicateGuard {
	return &guard{searcher: searcher, seen: map[string]cacheEntry{}}
}

func (g *guard) Check(ctx context.Context, companyKey, referenceNumber string) (*ledger.ExpenseRecord, bool, error) {
	g.mu.Lock()
	entry, cached := g.seen[referenceNumber]
	g.mu.Unlock()
	if cached {
		return &ledger.ExpenseRecord{ID: entry.expenseID, ReferenceNumber: referenceNumber}, true, nil
	}

	record, err := g.searcher.FindByReference(ctx, companyKey, referenceNumber)
	if err != nil {
		return nil, false, err
	}
	if record != nil {
		g.MarkPosted(referenceNumber, record.ID)
		return record, false, nil
	}
	return nil, false, nil
}

func (g *guard) MarkPosted(referenceNumber, expenseID string) {
	g.mu.Lock()
	g.seen[referenceNumber] = cacheEntry{expenseID: expenseID, seenAt: time.Now()}
	g.mu.Unlock()
}
