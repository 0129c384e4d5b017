package rules

import "regexp"

// secretPattern is one sensitive-data signature checked against commit
// message and diff content. Each pattern type counts at most once per commit.
type secretPattern struct {
	name string
	re   *regexp.Regexp
}

var secretPatterns = []secretPattern{
	{
		name: "cloud credential",
		re:   regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
	},
	{
		name: "private key marker",
		re:   regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),
	},
	{
		name: "password assignment",
		re:   regexp.MustCompile(`(?i)\bpassword\s*=\s*\S+`),
	},
	{
		name: "api key marker",
		re:   regexp.MustCompile(`(?i)\b(?:api[_-]?key|secret[_-]?key|access[_-]?token)\b\s*[=:]\s*['"]?[A-Za-z0-9_\-]{8,}`),
	},
}
