package agentruntime

import (
	"regexp"
	"strings"
)

// fencedJSONPattern matches a fenced code block, optionally tagged
// ```json, capturing its body. Compiled once, mirroring react_parser.go's
// compiled-pattern-at-package-scope convention.
var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")

// rateLimitPattern matches rate-limit phrasing commonly emitted by AI CLI
// tools on stderr (spec §4.4: "rate-limit errors ... pattern-matched from
// stderr").
var rateLimitPattern = regexp.MustCompile(`(?i)rate.?limit|too many requests|429`)

// ParseResponse scans stdout for fenced JSON code blocks and returns the
// single result payload. Zero or more than one match is
// ErrMalformedResponse (spec §4.4), in the same disciplined,
// no-silent-guessing spirit as ParseReActResponse's "try multiple
// detection strategies before declaring malformed" — here there is only
// one valid shape, so any deviation from it is reported precisely via
// MalformedResponseError.BlockCount.
func ParseResponse(stdout string) ([]byte, error) {
	matches := fencedJSONPattern.FindAllStringSubmatch(stdout, -1)
	if len(matches) != 1 {
		return nil, NewMalformedResponseError(len(matches))
	}
	body := strings.TrimSpace(matches[0][1])
	if body == "" {
		return nil, NewMalformedResponseError(0)
	}
	return []byte(body), nil
}

// looksRateLimited reports whether stderr indicates the subprocess was
// rate-limited by its upstream provider.
func looksRateLimited(stderr string) bool {
	return rateLimitPattern.MatchString(stderr)
}
