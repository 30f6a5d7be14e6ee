package domain

import (
	"strings"
	"time"
)

type Tier string

const (
	TierDefault Tier = "default"
	TierVIP     Tier = "vip"
	TierPremium Tier = "premium"
	TierAdmin   Tier = "admin"
)

// TierPriority is the resolution order for permission-scoped tiers. The
// default tier applies when none of these match.
var TierPriority = []Tier{TierAdmin, TierPremium, TierVIP}

func ParseTier(raw string) (Tier, bool) {
	switch Tier(strings.ToLower(strings.TrimSpace(raw))) {
	case TierDefault:
		return TierDefault, true
	case TierVIP:
		return TierVIP, true
	case TierPremium:
		return TierPremium, true
	case TierAdmin:
		return TierAdmin, true
	default:
		return "", false
	}
}

// CreditAccount holds a session's balance of credit minutes and the
// bookkeeping for consumption and zone relocation.
type CreditAccount struct {
	SessionID      SessionID
	BalanceMinutes int
	LastEarnedAt   time.Time

	Consuming      bool
	ReturnLocation *Location
	InZone         bool
	RelocatedAt    time.Time

	// LowBalanceWarnedAt is the balance level of the last low-balance
	// warning, or -1 when none is pending suppression.
	LowBalanceWarnedAt int
	DecayWarnedAt      time.Time

	// UpdatedAt is when the account was last handed to a store.
	UpdatedAt time.Time
}

func NewCreditAccount(id SessionID) CreditAccount {
	return CreditAccount{SessionID: id, LowBalanceWarnedAt: -1}
}

// Clone returns a copy that shares no pointers with a.
func (a CreditAccount) Clone() CreditAccount {
	if a.ReturnLocation != nil {
		loc := *a.ReturnLocation
		a.ReturnLocation = &loc
	}
	return a
}

func ClampBalance(balance, max int) int {
	if balance < 0 {
		return 0
	}
	if max >= 0 && balance > max {
		return max
	}
	return balance
}

type TransactionType string

const (
	TxEarn       TransactionType = "EARN"
	TxBonus      TransactionType = "BONUS"
	TxConsume    TransactionType = "CONSUME"
	TxDecay      TransactionType = "DECAY"
	TxAdminGive  TransactionType = "ADMIN_GIVE"
	TxAdminTake  TransactionType = "ADMIN_TAKE"
	TxAdminSet   TransactionType = "ADMIN_SET"
	TxAdminReset TransactionType = "ADMIN_RESET"

	// TxCap trims a balance above a tier max that was lowered or lost.
	TxCap TransactionType = "CAP"
)

// Transaction is an immutable ledger history entry.
type Transaction struct {
	ID            string
	SessionID     SessionID
	Type          TransactionType
	AmountMinutes int
	BalanceAfter  int
	At            time.Time
	Note          string
}

// AdminResult reports the outcome of an administrative balance operation.
type AdminResult struct {
	Changed bool
	Balance int
	Max     int
}

type ReturnResult int

const (
	ReturnSuccess ReturnResult = iota
	ReturnNotInZone
	ReturnNoSavedLocation
	ReturnCooldown
	ReturnTooFar
	ReturnUnsafeLocation
	ReturnSystemDisabled
)

func (r ReturnResult) String() string {
	switch r {
	case ReturnSuccess:
		return "SUCCESS"
	case ReturnNotInZone:
		return "NOT_IN_ZONE"
	case ReturnNoSavedLocation:
		return "NO_SAVED_LOCATION"
	case ReturnCooldown:
		return "COOLDOWN"
	case ReturnTooFar:
		return "TOO_FAR"
	case ReturnUnsafeLocation:
		return "UNSAFE_LOCATION"
	case ReturnSystemDisabled:
		return "SYSTEM_DISABLED"
	default:
		return "UNKNOWN"
	}
}
