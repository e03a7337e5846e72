package textimport

import (
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// SeparatorsFor derives the grouping and decimal marks of a locale from its
// CLDR number formatting.
func SeparatorsFor(tag language.Tag) Separators {
	p := message.NewPrinter(tag)

	seps := DefaultSeparators
	if r, ok := markBetween(p.Sprintf("%.1f", 1.5)); ok {
		seps.Decimal = r
	}
	if r, ok := markBetween(p.Sprintf("%d", 1234567)); ok && r != seps.Decimal {
		seps.Grouping = r
	} else if seps.Decimal == ',' {
		seps.Grouping = '.'
	}
	return seps
}

// ParseLocale accepts BCP 47 tags as well as POSIX names like "de_DE.UTF-8".
func ParseLocale(name string) (language.Tag, error) {
	name = strings.TrimSpace(name)
	if i := strings.IndexAny(name, ".@"); i >= 0 {
		name = name[:i]
	}
	if name == "" || name == "C" || name == "POSIX" {
		return language.English, nil
	}
	return language.Parse(strings.ReplaceAll(name, "_", "-"))
}

// SystemSeparators reads the process locale from the environment, in POSIX
// precedence order, falling back to DefaultSeparators.
func SystemSeparators() Separators {
	for _, key := range []string{"LC_ALL", "LC_NUMERIC", "LANG"} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		tag, err := ParseLocale(v)
		if err != nil {
			return DefaultSeparators
		}
		return SeparatorsFor(tag)
	}
	return DefaultSeparators
}

// markBetween returns the first non-digit rune between the leading and
// trailing digits of a formatted number.
func markBetween(formatted string) (rune, bool) {
	runes := []rune(strings.TrimSpace(formatted))
	for i := 1; i < len(runes)-1; i++ {
		if !unicode.IsDigit(runes[i]) {
			return runes[i], true
		}
	}
	return 0, false
}
