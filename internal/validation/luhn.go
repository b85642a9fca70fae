// Package validation содержит функции валидации входных данных.
package validation

import "unicode"

// IsValidLuhn проверяет строку из цифр по алгоритму Луна.
func IsValidLuhn(number string) bool {
	if number == "" {
		return false
	}

	sum, ok := luhnSum(number, false)
	return ok && sum%10 == 0
}

// LuhnCheckDigit вычисляет контрольную цифру, которую нужно дописать к digits.
func LuhnCheckDigit(digits string) (byte, bool) {
	if digits == "" {
		return 0, false
	}

	sum, ok := luhnSum(digits, true)
	if !ok {
		return 0, false
	}
	return byte('0' + (10-sum%10)%10), true
}

func luhnSum(number string, doubleFirst bool) (int, bool) {
	sum := 0
	double := doubleFirst

	for i := len(number) - 1; i >= 0; i-- {
		ch := rune(number[i])
		if !unicode.IsDigit(ch) {
			return 0, false
		}
		digit := int(ch - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}

	return sum, true
}
