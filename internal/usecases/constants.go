package usecases

import "time"

// Settlement defaults
const DefaultFeeBasisPoints = 50 // 0.5%
const DefaultMinimumUSDC = "1.00"

// DepositTolerance is the share of the expected amount a balance increase
// must reach to count as the deposit.
const DepositTolerance = "0.99"

// Durations
const DefaultQuoteTTL = 15 * time.Minute
const DefaultDepositPollInterval = 2 * time.Second
const DefaultDepositTimeout = 5 * time.Minute
