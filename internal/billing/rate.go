package billing

import (
	"fmt"
	"time"

	pkgerrors "github.com/lumea-app/lumea-backend/pkg/errors"
)

// unitLength is the metering granularity for timed sessions.
const unitLength = time.Minute

// ComputeCharge converts elapsed session time into billable units and the
// gross coin charge. Elapsed time rounds up to the next whole minute, so a
// session shorter than one minute still bills one unit.
func ComputeCharge(ratePerMinute int64, elapsed time.Duration) (units int64, gross int64, err error) {
	if ratePerMinute <= 0 {
		return 0, 0, pkgerrors.New(pkgerrors.CodeInvalidAmount, fmt.Sprintf("rate per minute must be positive, got %d", ratePerMinute))
	}
	if elapsed <= 0 {
		return 0, 0, pkgerrors.New(pkgerrors.CodeInvalidDuration, fmt.Sprintf("elapsed duration must be positive, got %s", elapsed))
	}

	units = int64(elapsed / unitLength)
	if elapsed%unitLength != 0 {
		units++
	}
	return units, units * ratePerMinute, nil
}

// AffordableUnits returns how many whole billable units the given balance
// can cover at the given rate. Used when a balance drifted below the full
// charge between pre-flight and settlement and the session settles for the
// largest affordable portion instead.
func AffordableUnits(balance, ratePerMinute int64) int64 {
	if ratePerMinute <= 0 || balance <= 0 {
		return 0
	}
	return balance / ratePerMinute
}
