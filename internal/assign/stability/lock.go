// Package stability implements the fixed-order stability-lock check and the
// ARR-balanced strategic pre-assignment pass, per spec §4.4.
package stability

import (
	"time"

	"github.com/fieldcompass/territory-engine/internal/assign/domain"
)

// Lock is the result of a successful check_stability match: the account
// must be assigned to TargetRepID, for the recorded Reason.
type Lock struct {
	AccountID   string
	TargetRepID string
	Reason      string
}

// Config bundles the stability-relevant fields of LPConfiguration.
type Config struct {
	BackfillMigrationEnabled bool
	CRERiskLocked            bool
	RenewalSoonLocked        bool
	RenewalSoonDays          int
	PEFirmLocked             bool
	RecentChangeLocked       bool
	RecentChangeDays         int
}

// RepsByID is the lookup the checker needs to validate lock targets are
// eligible and to resolve backfill targets.
type RepsByID map[string]domain.Rep

// Check evaluates the fixed six-step order against one account, returning
// the first match. A match whose target rep is ineligible (or does not
// exist) is reported via dropped (the rule name that matched but could not
// apply) rather than folded into the ok=false/no-rule-matched case, so
// callers can tell "account is genuinely unlocked" from "a lock rule fired
// but had nowhere to land" and emit a LockDropped warning only for the
// latter, since only the caller holds the warning collector.
func Check(a domain.Account, reps RepsByID, cfg Config, asOf time.Time) (lock Lock, ok bool, dropped string) {
	owner, hasOwner := reps[a.OwnerID]

	// 1. exclude_from_reassignment -> current owner.
	if a.ExcludeFromReassignment {
		if hasOwner && owner.Eligible() {
			return Lock{AccountID: a.AccountID, TargetRepID: owner.RepID, Reason: "exclude_from_reassignment"}, true, ""
		}
		return Lock{}, false, "exclude_from_reassignment"
	}

	// 2. owner is backfill source and backfill migration enabled -> target.
	if hasOwner && owner.IsBackfillSource && cfg.BackfillMigrationEnabled {
		target, tOK := reps[owner.BackfillTargetRepID]
		if tOK && target.Eligible() {
			return Lock{AccountID: a.AccountID, TargetRepID: target.RepID, Reason: "backfill_migration"}, true, ""
		}
		return Lock{}, false, "backfill_migration"
	}

	// 3. cre_risk -> current owner.
	if a.CRERisk && cfg.CRERiskLocked {
		if hasOwner && owner.Eligible() {
			return Lock{AccountID: a.AccountID, TargetRepID: owner.RepID, Reason: "cre_risk"}, true, ""
		}
		return Lock{}, false, "cre_risk"
	}

	// 4. renewal soon -> current owner.
	if cfg.RenewalSoonLocked && a.RenewalDate != nil {
		days := cfg.RenewalSoonDays
		if days <= 0 {
			days = 90
		}
		if a.RenewalDate.Sub(asOf) <= time.Duration(days)*24*time.Hour {
			if hasOwner && owner.Eligible() {
				return Lock{AccountID: a.AccountID, TargetRepID: owner.RepID, Reason: "renewal_soon"}, true, ""
			}
			return Lock{}, false, "renewal_soon"
		}
	}

	// 5. pe_firm non-null -> current owner.
	if cfg.PEFirmLocked && a.PEFirm != "" {
		if hasOwner && owner.Eligible() {
			return Lock{AccountID: a.AccountID, TargetRepID: owner.RepID, Reason: "pe_firm"}, true, ""
		}
		return Lock{}, false, "pe_firm"
	}

	// 6. recent owner change -> current owner.
	if cfg.RecentChangeLocked && a.OwnerChangeDate != nil {
		days := cfg.RecentChangeDays
		if days <= 0 {
			days = 90
		}
		if asOf.Sub(*a.OwnerChangeDate) <= time.Duration(days)*24*time.Hour {
			if hasOwner && owner.Eligible() {
				return Lock{AccountID: a.AccountID, TargetRepID: owner.RepID, Reason: "recent_owner_change"}, true, ""
			}
			return Lock{}, false, "recent_owner_change"
		}
	}

	return Lock{}, false, ""
}
