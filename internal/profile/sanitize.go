package profile

import (
	"regexp"
	"strings"
)

const scriptPackage = "package layout"

var codeFence = regexp.MustCompile("(?m)^```[A-Za-z]*\\s*$")

// SanitizeScript trims text around a layout script pasted from a chat or a
// markdown file: fences, any preamble before the package clause and anything
// after the last closing brace.
func SanitizeScript(input string) string {
	input = codeFence.ReplaceAllString(input, "")

	if start := strings.Index(input, scriptPackage); start != -1 {
		input = input[start:]
	}

	if lastBrace := strings.LastIndex(input, "}"); lastBrace != -1 {
		input = input[:lastBrace+1]
	}

	if !strings.Contains(input, scriptPackage) {
		input = scriptPackage + "\n\n" + strings.TrimSpace(input)
	}

	return strings.TrimSpace(input) + "\n"
}
