// Package extract pulls named fields out of the HTML/CSS markup stored in a
// row's Content column.
//
// Extraction is driven by a [Profile]: an ordered list of [Rule] values, each
// pairing an output field with a regular expression, a capture group, optional
// post-processing steps, and a fallback. Field sets that differ between
// content revisions are expressed as separate profiles of the same engine:
//
//	ex, err := extract.New(extract.MustLookup(extract.DefaultProfile))
//	fields := ex.Extract(row["Content"])
//	// fields["PageTitle"], fields["headerBorderBottom"], ...
//
// Every configured field is always present in the returned [Fields]. A pattern
// that does not match, or matches an empty string, yields the rule's fallback.
// Extraction never fails at run time; configuration problems (bad patterns,
// out-of-range groups, unknown steps) are reported by [New] and [Profile.Validate].
//
// # Limitations
//
// Rules are targeted pattern matches, not a DOM. They break when attributes are
// reordered, when an attribute value spans lines, or when tags of the same kind
// are nested inside the matched block. Captures other than the modal blocks
// stop at line terminators (\r, \n, U+2028, U+2029), so a title split across
// lines reads as missing.
package extract
