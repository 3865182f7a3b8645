package niagara

import "strings"

// knownHeaders is the section header vocabulary. A line opens a section when
// it case-insensitively equals one of these names or begins with one followed
// by whitespace (the Filesystem header carries its column captions on the
// same line). One rule for every section keeps scanning deterministic across
// firmware versions.
var knownHeaders = []string{
	"Modules",
	"Filesystem",
	"Applications",
	"Licenses",
	"Physical RAM",
}

// NormaliseLines converts raw export text into a trimmed, non-empty line
// sequence. It strips a single leading byte-order mark, folds CRLF and lone
// CR line endings to LF, splits, trims each line, and drops lines that are
// empty after trimming.
//
// Pure and total: never fails, idempotent over its own output.
func NormaliseLines(raw string) []string {
	raw = strings.TrimPrefix(raw, "\uFEFF")
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	lines := make([]string, 0, strings.Count(raw, "\n")+1)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// ExtractValue scans lines in order for the first line starting with the
// exact label (case-sensitive, including any trailing colon) and returns the
// remainder with surrounding whitespace trimmed. Returns "" when no line
// matches. Only the first occurrence is used.
func ExtractValue(lines []string, label string) string {
	for _, line := range lines {
		if strings.HasPrefix(line, label) {
			return strings.TrimSpace(line[len(label):])
		}
	}
	return ""
}

// isSectionHeader reports whether line opens the named section.
func isSectionHeader(line, name string) bool {
	folded := strings.ToLower(line)
	name = strings.ToLower(name)
	if folded == name {
		return true
	}
	return strings.HasPrefix(folded, name) && len(folded) > len(name) &&
		(folded[len(name)] == ' ' || folded[len(name)] == '\t')
}

// isAnyHeader reports whether line opens any known section.
func isAnyHeader(line string) bool {
	for _, h := range knownHeaders {
		if isSectionHeader(line, h) {
			return true
		}
	}
	return false
}

// findSection returns the line range (start inclusive, end exclusive) of the
// named section's body: the lines after the header up to the next recognised
// header. Returns (0, 0) when the header is absent, so section parsers yield
// empty collections rather than errors.
func findSection(lines []string, name string) (start, end int) {
	headerIdx := -1
	for i, line := range lines {
		if isSectionHeader(line, name) {
			headerIdx = i
			break
		}
	}
	if headerIdx == -1 {
		return 0, 0
	}

	start = headerIdx + 1
	end = len(lines)
	for i := start; i < len(lines); i++ {
		if isAnyHeader(lines[i]) {
			end = i
			break
		}
	}
	return start, end
}
