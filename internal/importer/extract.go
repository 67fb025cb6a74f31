package importer

import (
	"regexp"
	"strings"
)

// addressPattern matches local-part@domain. Only lowercase letters are in
// the classes; ExtractEmail lowercases its input first.
const addressPattern = "[a-z0-9!#$%&'*+/=?^_`{|}~-]+(?:\\.[a-z0-9!#$%&'*+/=?^_`{|}~-]+)*" +
	"@(?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\\.)+[a-z0-9](?:[a-z0-9-]*[a-z0-9])?"

var (
	emailRegex = regexp.MustCompile(addressPattern)

	// nameRegex captures an optional `"Name" ` or `Name ` prefix in front of
	// an optionally angle-bracketed address.
	nameRegex = regexp.MustCompile(`(?:"?([^"]*)"?\s)?(?:<?(` + addressPattern + `)>?)`)
)

// ExtractEmail returns the first address found in text, lowercased.
func ExtractEmail(text string) (string, bool) {
	email := emailRegex.FindString(strings.ToLower(text))
	return email, email != ""
}

// ExtractName returns the display name written in front of the address in
// text, if there is one. It runs on the original casing and does not depend
// on ExtractEmail having matched.
func ExtractName(text string) (string, bool) {
	m := nameRegex.FindStringSubmatchIndex(text)
	if m == nil || m[2] < 0 {
		return "", false
	}
	return text[m[2]:m[3]], true
}
