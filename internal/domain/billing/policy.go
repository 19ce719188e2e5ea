package billing

import "fmt"

// Verdict is what the chat layer should show before starting a generation.
type Verdict string

const (
	VerdictOK            Verdict = "ok"
	VerdictGentleWarning Verdict = "gentle_warning"
	VerdictHardBlock     Verdict = "hard_block"
)

// WarningPolicy maps remaining quota to a Verdict.
type WarningPolicy struct {
	GentleWarning int64
	HardBlock     int64
}

// DefaultWarningPolicy warns at 3 remaining and blocks at 0.
func DefaultWarningPolicy() WarningPolicy {
	return WarningPolicy{GentleWarning: 3, HardBlock: 0}
}

// Validate checks the thresholds. HardBlock must stay below 1 so that a
// hard block always coincides with HasQuota(amount=1) being false.
func (p WarningPolicy) Validate() error {
	if p.HardBlock >= 1 {
		return fmt.Errorf("hard block threshold must be < 1, got %d", p.HardBlock)
	}
	if p.GentleWarning < p.HardBlock {
		return fmt.Errorf("gentle warning threshold %d is below hard block threshold %d", p.GentleWarning, p.HardBlock)
	}
	return nil
}

// Classify returns the verdict for remaining quota.
func (p WarningPolicy) Classify(remaining int64, unlimited bool) Verdict {
	switch {
	case unlimited:
		return VerdictOK
	case remaining <= p.HardBlock:
		return VerdictHardBlock
	case remaining <= p.GentleWarning:
		return VerdictGentleWarning
	default:
		return VerdictOK
	}
}
