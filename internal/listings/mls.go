package listings

import "regexp"

var mlsIDPattern = regexp.MustCompile(`\d+`)

// ExtractMLSID pulls the first run of digits out of free text, so replies like
// "it's MLS 384921 I think" still yield a usable identifier.
func ExtractMLSID(text string) (string, bool) {
	match := mlsIDPattern.FindString(text)
	return match, match != ""
}
