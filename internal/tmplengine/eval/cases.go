package eval

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Caser instances back the `upper`/`lower`/`casefold` string methods
// (spec.md §6) per SPEC_FULL.md's domain-stack decision to use
// golang.org/x/text/cases rather than hand-rolled ASCII folding.
var (
	upperCaser = cases.Upper(language.Und)
	lowerCaser = cases.Lower(language.Und)
	foldCaser  = cases.Fold()
)
