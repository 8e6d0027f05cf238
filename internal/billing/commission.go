package billing

import (
	"fmt"

	pkgerrors "github.com/lumea-app/lumea-backend/pkg/errors"
)

// Split divides a gross coin amount between the platform and the payee.
// The commission is floored so the payee never receives a fractional coin
// the platform rounded away: commission = floor(gross * pct / 100).
func Split(gross int64, commissionPct int) (commission int64, net int64, err error) {
	if gross < 0 {
		return 0, 0, pkgerrors.New(pkgerrors.CodeInvalidAmount, fmt.Sprintf("gross amount must not be negative, got %d", gross))
	}
	if commissionPct < 0 || commissionPct > 100 {
		return 0, 0, pkgerrors.New(pkgerrors.CodeInvalidCommission, fmt.Sprintf("commission percentage must be between 0 and 100, got %d", commissionPct))
	}

	commission = gross * int64(commissionPct) / 100
	net = gross - commission
	return commission, net, nil
}
