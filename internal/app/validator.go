/**
 * @description
 * This file groups the validation rules applied before any balance mutation
 * or credential change. Each rule returns a typed domain error so callers and
 * the API edge can branch on the failure code.
 *
 * @dependencies
 * - github.com/shopspring/decimal: Amount checks.
 * - internal/domain: Account model and error taxonomy.
 * - pkg/pinhash: Current-PIN verification for PIN changes.
 */
package app

import (
	"github.com/shopspring/decimal"
	"github.com/transfa/atm-service/internal/domain"
	"github.com/transfa/atm-service/pkg/pinhash"
)

// validator holds the stateless validation rules for core operations.
type validator struct{}

// CardNumberFormat checks the fixed-length numeric card format.
func (validator) CardNumberFormat(cardNumber string) error {
	if !domain.IsValidCardNumber(cardNumber) {
		return domain.Errorf(domain.CodeInvalidFormat, "card number must be exactly %d digits", domain.CardNumberLength)
	}
	return nil
}

// PinFormat checks the PIN length and digit constraints.
func (validator) PinFormat(pin string) error {
	if !domain.IsValidPin(pin) {
		return domain.Errorf(domain.CodeInvalidFormat, "PIN must be %d to %d digits", domain.PinMinLength, domain.PinMaxLength)
	}
	return nil
}

// Amount checks that a transaction amount is strictly positive.
func (validator) Amount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.NewError(domain.CodeInvalidFormat, "amount must be greater than zero")
	}
	return nil
}

// Withdrawal applies the per-transaction limit and the balance check, in that
// order, against the source account.
func (v validator) Withdrawal(account *domain.Account, amount decimal.Decimal) error {
	if err := v.Amount(amount); err != nil {
		return err
	}
	if amount.GreaterThan(account.WithdrawLimit) {
		return domain.Errorf(domain.CodeLimitExceeded, "amount exceeds the withdraw limit of %s", account.WithdrawLimit.String())
	}
	if amount.GreaterThan(account.Balance) {
		return domain.NewError(domain.CodeInsufficientFunds, "insufficient funds")
	}
	return nil
}

// Transfer applies the target-side format rules; the source side reuses the
// withdrawal checks.
func (v validator) Transfer(sourceCard, targetCard string) error {
	if err := v.CardNumberFormat(targetCard); err != nil {
		return err
	}
	if sourceCard == targetCard {
		return domain.NewError(domain.CodeInvalidFormat, "cannot transfer to the same account")
	}
	return nil
}

// PinChange verifies the current PIN and the shape of the new one. A supplied
// confirmation must match the new PIN; an empty confirmation is skipped.
func (v validator) PinChange(account *domain.Account, currentPin, newPin, confirmPin string) error {
	if !pinhash.Verify(currentPin, account.PINSalt, account.PINHash) {
		return domain.NewError(domain.CodeUnauthorized, "current PIN is incorrect")
	}
	if err := v.PinFormat(newPin); err != nil {
		return err
	}
	if newPin == currentPin {
		return domain.NewError(domain.CodeInvalidFormat, "new PIN must differ from the current PIN")
	}
	if confirmPin != "" && confirmPin != newPin {
		return domain.NewError(domain.CodeInvalidFormat, "PIN confirmation does not match")
	}
	return nil
}
