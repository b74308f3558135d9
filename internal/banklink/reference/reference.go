// Package reference implements the Estonian payment reference number
// checksum: weights 7, 3, 1 applied right to left over the base number,
// check digit (10 - sum mod 10) mod 10.
package reference

// Complete appends the check digit to a numeric base string.
func Complete(base string) string {
	weights := []int{7, 3, 1}
	sum := 0
	for i := 0; i < len(base); i++ {
		digit := int(base[len(base)-1-i] - '0')
		sum += digit * weights[i%3]
	}
	check := (10 - sum%10) % 10
	return base + string(rune('0'+check))
}

// Valid reports whether ref is a correctly checksummed reference number.
// Callers are expected to have checked shape (at least two digits) first.
func Valid(ref string) bool {
	if len(ref) < 2 {
		return false
	}
	for i := 0; i < len(ref); i++ {
		if ref[i] < '0' || ref[i] > '9' {
			return false
		}
	}
	return Complete(ref[:len(ref)-1]) == ref
}
