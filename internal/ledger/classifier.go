package ledger

// Delta returns the signed balance change the transaction causes on the given
// account. It is the single source of truth for sign rules so that apply and
// remove paths cannot diverge.
//
// Charged account: income is +amount, expense is -amount, the outgoing leg of
// a transfer is -amount. Target account of a transfer: +amount. Reversal
// negates the result. An account not referenced by the transaction gets 0.
func Delta(tx *Transaction, accountID string, reversal bool) float64 {
	var delta float64

	switch {
	case tx.IsTransfer() && accountID == tx.TargetAccountID:
		delta = tx.Amount
	case accountID == tx.ChargedAccountID:
		if tx.Kind == KindIncome {
			delta = tx.Amount
		} else {
			delta = -tx.Amount
		}
	default:
		return 0
	}

	if reversal {
		return -delta
	}
	return delta
}
