package services

import (
	"github.com/shopspring/decimal"
)

// Денежные колонки хранятся как numeric(20,2)
const (
	moneyScale         = 2
	moneyIntegerDigits = 18
)

// MaxMoney - наибольшее значение, которое помещается в numeric(20,2)
var MaxMoney = decimal.New(1, moneyIntegerDigits).Sub(decimal.New(1, -moneyScale))

// checkMoney проверяет, что сумма положительна и без потерь помещается в numeric(20,2).
// Величина оценивается по числу цифр и экспоненте, без арифметики над значением.
func checkMoney(amount decimal.Decimal, notPositive, precision, tooLarge error) error {
	if !amount.IsPositive() {
		return notPositive
	}
	if amount.NumDigits()+int(amount.Exponent()) > moneyIntegerDigits {
		return tooLarge
	}
	if amount.Exponent() < -moneyScale {
		// Длинный хвост нулей тоже отклоняется, не раскрывая значение
		if amount.Exponent() < -(moneyIntegerDigits + moneyScale) {
			return precision
		}
		if !amount.Equal(amount.Truncate(moneyScale)) {
			return precision
		}
	}
	return nil
}
