// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package tts

import (
	"regexp"
	"strconv"
	"strings"
)

var numberPattern = regexp.MustCompile(`\$?\d[\d,]*(?:\.\d+)?`)

var onesWords = []string{
	"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
	"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen",
	"seventeen", "eighteen", "nineteen",
}

var tensWords = []string{
	"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety",
}

// numberToWords spells out a non-negative integer in English.
func numberToWords(n int) string {
	if n < 0 {
		return "minus " + numberToWords(-n)
	}
	if n < 20 {
		return onesWords[n]
	}
	if n < 100 {
		word := tensWords[n/10]
		if n%10 != 0 {
			word += " " + onesWords[n%10]
		}
		return word
	}
	if n < 1000 {
		word := onesWords[n/100] + " hundred"
		if n%100 != 0 {
			word += " " + numberToWords(n%100)
		}
		return word
	}
	for _, scale := range []struct {
		value int
		name  string
	}{
		{1_000_000_000, "billion"},
		{1_000_000, "million"},
		{1_000, "thousand"},
	} {
		if n >= scale.value {
			word := numberToWords(n/scale.value) + " " + scale.name
			if n%scale.value != 0 {
				word += " " + numberToWords(n%scale.value)
			}
			return word
		}
	}
	return strconv.Itoa(n)
}

// NormalizeText replaces numeric tokens with their spoken form so the
// synthesizer never sees digits. Currency amounts become dollars and
// cents; plain decimals are read digit-group "point" digit-group.
func NormalizeText(text string) string {
	matches := numberPattern.FindAllString(text, -1)
	for _, match := range matches {
		token := strings.Trim(match, "$?!.:;")
		token = strings.ReplaceAll(token, ",", "")
		currency := strings.Contains(match, "$")

		var words string
		if whole, frac, isDecimal := strings.Cut(token, "."); isDecimal {
			left, errLeft := strconv.Atoi(whole)
			right, errRight := strconv.Atoi(frac)
			if errLeft != nil || errRight != nil {
				continue
			}
			joiner := " point "
			if currency {
				joiner = " dollars and "
			}
			words = numberToWords(left) + joiner + numberToWords(right)
			if currency {
				words += " cents"
			}
		} else {
			value, err := strconv.Atoi(token)
			if err != nil {
				continue
			}
			words = numberToWords(value)
			if currency {
				words += " dollars"
			}
		}

		words = strings.ReplaceAll(words, "  ", " ")
		text = strings.Replace(text, match, words, 1)
	}
	return text
}
