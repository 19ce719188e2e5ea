package billing

import (
	"context"

	"go.uber.org/zap"
)

// ServiceStatus is the remaining quota of one service.
type ServiceStatus struct {
	Service   Service `json:"service"`
	Remaining int64   `json:"remaining"`
	Verdict   Verdict `json:"verdict"`
}

// AccountStatus summarizes what a user can still do.
type AccountStatus struct {
	UserID    int64           `json:"user_id"`
	Unlimited bool            `json:"unlimited"`
	Services  []ServiceStatus `json:"services"`
	Pass      *Pass           `json:"pass,omitempty"`
}

// Remaining returns the remaining quota for service.
func (s *AccountStatus) Remaining(service Service) int64 {
	for _, st := range s.Services {
		if st.Service == service {
			return st.Remaining
		}
	}
	return 0
}

// StatusReader builds AccountStatus snapshots.
type StatusReader struct {
	ledger *Ledger
	passes *PassManager
	policy WarningPolicy
	logger *zap.Logger
}

// NewStatusReader creates a StatusReader.
func NewStatusReader(ledger *Ledger, passes *PassManager, policy WarningPolicy, logger *zap.Logger) *StatusReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusReader{ledger: ledger, passes: passes, policy: policy, logger: logger.Named("status")}
}

// Status reads every service counter and the active pass. A pass read
// failure is logged and leaves Pass nil.
func (r *StatusReader) Status(ctx context.Context, userID int64, identity string) *AccountStatus {
	unlimited := r.ledger.IsUnlimited(identity)
	status := &AccountStatus{
		UserID:    userID,
		Unlimited: unlimited,
		Services:  make([]ServiceStatus, 0, len(Services)),
	}

	for _, service := range Services {
		remaining := r.ledger.GetQuota(ctx, userID, service)
		status.Services = append(status.Services, ServiceStatus{
			Service:   service,
			Remaining: remaining,
			Verdict:   r.policy.Classify(remaining, unlimited),
		})
	}

	pass, err := r.passes.GetActivePass(ctx, userID)
	if err != nil {
		r.logger.Warn("pass lookup failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	status.Pass = pass
	return status
}

// Classify returns the verdict for a single service.
func (r *StatusReader) Classify(ctx context.Context, userID int64, service Service, identity string) (int64, Verdict) {
	unlimited := r.ledger.IsUnlimited(identity)
	remaining := r.ledger.GetQuota(ctx, userID, service)
	return remaining, r.policy.Classify(remaining, unlimited)
}
