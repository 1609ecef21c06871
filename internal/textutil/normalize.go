package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// NormalizeTitle lowercases a title, strips accents and punctuation, spells
// out "&" and collapses whitespace. "Harbor, The (Study) & Sea" becomes
// "harbor the study and sea".
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, title)
	if err != nil {
		stripped = title
	}
	folded := folder.String(stripped)
	folded = strings.ReplaceAll(folded, "&", " and ")

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// dimensionSuffix matches a trailing "24x36in", "24 x 36 x 2 cm" or
// `12 × 16"` expression, optionally preceded by a comma.
var dimensionSuffix = regexp.MustCompile(`(?i)[,;]?\s*(\d+(?:\.\d+)?\s*[x×]\s*\d+(?:\.\d+)?(?:\s*[x×]\s*\d+(?:\.\d+)?)?\s*(?:inches|inch|in\.?|cm|mm|")?)\s*$`)

// SplitMediumDimensions separates a trailing dimension expression from a
// medium description: "Oil on canvas, 24x36in" yields ("Oil on canvas",
// "24x36in"). When no dimensions are present the medium is returned trimmed.
func SplitMediumDimensions(medium string) (string, string) {
	medium = strings.TrimSpace(medium)
	loc := dimensionSuffix.FindStringSubmatchIndex(medium)
	if loc == nil {
		return medium, ""
	}
	rest := strings.TrimSpace(strings.TrimRight(medium[:loc[0]], ",; "))
	return rest, strings.TrimSpace(medium[loc[2]:loc[3]])
}

var dimensionUnits = strings.NewReplacer(
	"×", "x",
	"inches", "in",
	"inch", "in",
	"in.", "in",
	`"`, "in",
)

// NormalizeDimensions canonicalizes a dimension string for exact comparison:
// lowercase, unified multiplication sign and unit words, whitespace removed.
func NormalizeDimensions(dims string) string {
	lowered := strings.ToLower(strings.TrimSpace(dims))
	if lowered == "" {
		return ""
	}
	lowered = dimensionUnits.Replace(lowered)
	lowered = strings.Join(strings.Fields(lowered), "")
	return strings.TrimRight(lowered, ".")
}

// NormalizeMedium lowercases and trims a medium, removing any trailing
// dimension expression.
func NormalizeMedium(medium string) string {
	rest, _ := SplitMediumDimensions(medium)
	return strings.Join(strings.Fields(folder.String(rest)), " ")
}
