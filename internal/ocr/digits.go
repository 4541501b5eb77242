package ocr

import (
	"regexp"
	"sort"
)

const (
	minBarcodeDigits = 8
	maxBarcodeDigits = 14
)

// digitGroups matches runs of digit groups joined by a single space or dash,
// the way printed GTINs are usually split under the bars.
var digitGroups = regexp.MustCompile(`\d+(?:[ \-]\d+)*`)
var digitsOnly = regexp.MustCompile(`\d+`)

// lengthRank orders plausible barcode lengths: EAN-13, UPC-A, EAN-8, GTIN-14.
var lengthRank = map[int]int{13: 0, 12: 1, 8: 2, 14: 3}

type candidate struct {
	code  string
	valid bool
	pos   int
}

// RecoverBarcode looks for an 8–14 digit code in OCR text. Codes with a valid
// GS1 check digit win over ones without; ties go to the more common length,
// then to the earliest occurrence.
func RecoverBarcode(text string) (string, bool) {
	var cands []candidate
	for _, run := range digitGroups.FindAllStringIndex(text, -1) {
		groups := digitsOnly.FindAllString(text[run[0]:run[1]], -1)
		for i := range groups {
			joined := ""
			for j := i; j < len(groups); j++ {
				joined += groups[j]
				if len(joined) > maxBarcodeDigits {
					break
				}
				if len(joined) >= minBarcodeDigits {
					cands = append(cands, candidate{
						code:  joined,
						valid: ValidGTIN(joined),
						pos:   run[0]*32 + i,
					})
				}
			}
		}
	}
	if len(cands) == 0 {
		return "", false
	}
	sort.SliceStable(cands, func(a, b int) bool {
		ca, cb := cands[a], cands[b]
		if ca.valid != cb.valid {
			return ca.valid
		}
		ra, rb := rank(len(ca.code)), rank(len(cb.code))
		if ra != rb {
			return ra < rb
		}
		return ca.pos < cb.pos
	})
	return cands[0].code, true
}

func rank(n int) int {
	if r, ok := lengthRank[n]; ok {
		return r
	}
	return len(lengthRank)
}

// ValidGTIN checks the GS1 mod-10 check digit of an 8, 12, 13 or 14 digit code.
func ValidGTIN(code string) bool {
	switch len(code) {
	case 8, 12, 13, 14:
	default:
		return false
	}
	sum := 0
	// Weights alternate 3,1,... starting from the digit left of the check digit.
	weight := 3
	for i := len(code) - 2; i >= 0; i-- {
		d := int(code[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		sum += d * weight
		weight = 4 - weight
	}
	check := (10 - sum%10) % 10
	return int(code[len(code)-1]-'0') == check
}
