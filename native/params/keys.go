package params

// Canonical parameter store keys. Values are JSON-encoded to align with the
// operator tooling payloads.
const (
	KeyPauses          = "venue/pauses"
	KeyTimers          = "venue/timers"
	KeyIncentives      = "venue/incentives"
	keyTradingLimitFmt = "venue/trading-limit/%s"
)
