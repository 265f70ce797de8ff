package phonetic

import "strings"

// Metaphone is the default phonetic backend. It implements a simplified
// Metaphone transcription: vowels survive only in the leading position,
// voiced/unvoiced pairs collapse (V->F, Z->S, D->T), and common English
// digraphs (PH, SH, TH, CH) map to single symbols. Codes are short
// consonant skeletons, so "smith" and "smyth" encode identically.
type Metaphone struct{}

func (Metaphone) Encode(token string) string {
	s := lettersUpper(token)
	if s == "" {
		return ""
	}

	var b strings.Builder
	n := len(s)
	at := func(i int) byte {
		if i < 0 || i >= n {
			return 0
		}
		return s[i]
	}

	for i := 0; i < n; i++ {
		c := s[i]
		switch c {
		case 'A', 'E', 'I', 'O', 'U':
			if i == 0 {
				b.WriteByte(c)
			}
		case 'B':
			// silent after M at the end, as in "lamb"
			if i == n-1 && at(i-1) == 'M' {
				continue
			}
			b.WriteByte('B')
		case 'C':
			if at(i-1) == 'S' && (at(i+1) == 'I' || at(i+1) == 'E') {
				continue
			}
			switch {
			case at(i+1) == 'H':
				b.WriteByte('X')
			case at(i+1) == 'I' || at(i+1) == 'E' || at(i+1) == 'Y':
				b.WriteByte('S')
			default:
				b.WriteByte('K')
			}
		case 'D':
			if at(i+1) == 'G' && (at(i+2) == 'E' || at(i+2) == 'I' || at(i+2) == 'Y') {
				b.WriteByte('J')
			} else {
				b.WriteByte('T')
			}
		case 'F', 'J', 'L', 'M', 'N', 'R':
			b.WriteByte(c)
		case 'G':
			if at(i+1) == 'H' && i > 0 {
				continue
			}
			if at(i+1) == 'N' {
				continue
			}
			b.WriteByte('K')
		case 'H':
			// silent between a vowel and a non-vowel, as in "john"
			if i > 0 && isVowel(at(i-1)) && !isVowel(at(i+1)) {
				continue
			}
			if i > 0 && at(i-1) != 'C' && at(i-1) != 'S' && at(i-1) != 'P' && at(i-1) != 'T' && at(i-1) != 'G' {
				b.WriteByte('H')
			}
		case 'K':
			if at(i-1) == 'C' {
				continue
			}
			b.WriteByte('K')
		case 'P':
			if at(i+1) == 'H' {
				b.WriteByte('F')
			} else {
				b.WriteByte('P')
			}
		case 'Q':
			b.WriteByte('K')
		case 'S':
			if at(i+1) == 'H' || (at(i+1) == 'I' && (at(i+2) == 'O' || at(i+2) == 'A')) {
				b.WriteByte('X')
			} else {
				b.WriteByte('S')
			}
		case 'T':
			switch {
			case at(i+1) == 'I' && (at(i+2) == 'O' || at(i+2) == 'A'):
				b.WriteByte('X')
			case at(i+1) == 'H':
				b.WriteByte('0')
			default:
				b.WriteByte('T')
			}
		case 'V':
			b.WriteByte('F')
		case 'W', 'Y':
			if isVowel(at(i + 1)) {
				b.WriteByte(c)
			}
		case 'X':
			b.WriteString("KS")
		case 'Z':
			b.WriteByte('S')
		}
	}
	return b.String()
}

func isVowel(c byte) bool {
	switch c {
	case 'A', 'E', 'I', 'O', 'U':
		return true
	}
	return false
}

// lettersUpper keeps only ASCII letters, uppercased. Deduplicates runs
// of the same letter so "harriett" and "hariet" share a code.
func lettersUpper(token string) string {
	var b strings.Builder
	var prev byte
	for i := 0; i < len(token); i++ {
		c := token[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c < 'A' || c > 'Z' {
			continue
		}
		if c == prev {
			continue
		}
		b.WriteByte(c)
		prev = c
	}
	return b.String()
}
