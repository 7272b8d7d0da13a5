/**
 * @description
 * HierarchyService owns the account-hierarchy invariants that need repository
 * traversal. Account.SetParent enforces the local rules (type, owner,
 * self-reference); cycle detection across the stored graph cannot live on the
 * entity and is done here with an explicit ancestor set plus a depth cap.
 *
 * @dependencies
 * - internal/domain, internal/store: Ledger models and repository contracts.
 */

package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/kontoflow/ledger-service/internal/domain"
	"github.com/kontoflow/ledger-service/internal/store"
)

// maxHierarchyDepth bounds the ancestor walk; a chain this long is a data
// defect even when it is not a cycle.
const maxHierarchyDepth = 64

// HierarchyService validates and applies account parent changes.
type HierarchyService struct {
	accounts store.AccountRepository
}

// NewHierarchyService creates the hierarchy service.
func NewHierarchyService(accounts store.AccountRepository) *HierarchyService {
	return &HierarchyService{accounts: accounts}
}

// ValidateParent checks that linking account under parent introduces no cycle
// in the stored hierarchy. The local SetParent invariants are checked by the
// entity; this walks parent's ancestor chain looking for account.
func (s *HierarchyService) ValidateParent(ctx context.Context, account, parent *domain.Account) error {
	if parent == nil {
		return nil
	}
	seen := map[uuid.UUID]struct{}{account.ID: {}}
	current := parent
	for depth := 0; ; depth++ {
		if depth >= maxHierarchyDepth {
			return domain.ErrHierarchyTooDeep
		}
		if _, cycle := seen[current.ID]; cycle {
			return domain.ErrHierarchyCycle
		}
		seen[current.ID] = struct{}{}
		if current.ParentID == nil {
			return nil
		}
		next, err := s.accounts.FindByID(ctx, account.UserID, *current.ParentID)
		if err != nil {
			return err
		}
		current = next
	}
}

// SetParent applies a validated parent change and persists it.
func (s *HierarchyService) SetParent(ctx context.Context, account, parent *domain.Account) error {
	if err := s.ValidateParent(ctx, account, parent); err != nil {
		return err
	}
	if err := account.SetParent(parent); err != nil {
		return err
	}
	return s.accounts.Save(ctx, account)
}
