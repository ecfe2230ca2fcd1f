package descriptor

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// SensitivePattern represents a pattern that might indicate a credential
// embedded in a descriptor URL.
type SensitivePattern struct {
	Name        string
	Pattern     *regexp.Regexp
	Description string
}

var sensitiveQueryPatterns = []SensitivePattern{
	{
		Name:        "Token",
		Pattern:     regexp.MustCompile(`(?i)^(token|auth[_-]?token|access[_-]?token|bearer)$`),
		Description: "authentication token in query string",
	},
	{
		Name:        "API Key",
		Pattern:     regexp.MustCompile(`(?i)^(api[_-]?key|apikey|key)$`),
		Description: "API key in query string",
	},
	{
		Name:        "Signature",
		Pattern:     regexp.MustCompile(`(?i)^(x-amz-signature|x-amz-credential|sig|signature)$`),
		Description: "pre-signed URL credentials",
	},
	{
		Name:        "Password",
		Pattern:     regexp.MustCompile(`(?i)^(password|passwd|pwd|secret)$`),
		Description: "password in query string",
	},
}

var githubToken = regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{36,}`)

// SensitiveDataFinding is one suspected credential in a descriptor.
type SensitiveDataFinding struct {
	PatternName string
	Description string
	// Field is the descriptor field holding the URL, e.g. "artifacts[1].url".
	Field string
	// Preview is the URL with the sensitive part redacted.
	Preview string
}

// DetectSensitiveData scans every URL of the descriptor for embedded
// credentials. Disabled variants are scanned too.
func DetectSensitiveData(d *PackageDescriptor) []SensitiveDataFinding {
	if d == nil {
		return nil
	}
	var findings []SensitiveDataFinding
	findings = append(findings, scanURL("homepage", d.Homepage)...)
	for i, v := range d.Artifacts {
		prefix := fmt.Sprintf("artifacts[%d]", i+1)
		findings = append(findings, scanURL(prefix+".url", v.URL)...)
		findings = append(findings, scanURL(prefix+".signature_url", v.SignatureURL)...)
		if v.Sigstore != nil {
			findings = append(findings, scanURL(prefix+".sigstore.bundle_url", v.Sigstore.URL)...)
		}
	}
	return findings
}

func scanURL(field, raw string) []SensitiveDataFinding {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}

	var findings []SensitiveDataFinding
	if u.User != nil {
		findings = append(findings, SensitiveDataFinding{
			PatternName: "Userinfo",
			Description: "credentials in URL userinfo",
			Field:       field,
			Preview:     redactURL(u),
		})
	}
	for key := range u.Query() {
		for _, p := range sensitiveQueryPatterns {
			if p.Pattern.MatchString(key) {
				findings = append(findings, SensitiveDataFinding{
					PatternName: p.Name,
					Description: p.Description,
					Field:       field,
					Preview:     redactURL(u),
				})
				break
			}
		}
	}
	if githubToken.MatchString(raw) {
		findings = append(findings, SensitiveDataFinding{
			PatternName: "GitHub Token",
			Description: "GitHub token in URL",
			Field:       field,
			Preview:     githubToken.ReplaceAllString(redactURL(u), "[REDACTED]"),
		})
	}
	return findings
}

// redactURL drops userinfo and replaces every query value.
func redactURL(u *url.URL) string {
	c := *u
	if c.User != nil {
		c.User = url.User("[REDACTED]")
	}
	if c.RawQuery != "" {
		q := c.Query()
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k+"=[REDACTED]")
		}
		slices.Sort(keys)
		c.RawQuery = strings.Join(keys, "&")
	}
	s := c.String()
	// url.String escapes the brackets in the query.
	return strings.NewReplacer("%5B", "[", "%5D", "]").Replace(s)
}

// FormatSensitiveDataWarning formats findings into a user-facing warning.
func FormatSensitiveDataWarning(findings []SensitiveDataFinding) string {
	if len(findings) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("WARNING: descriptor URLs appear to contain credentials\n\n")
	for i, f := range findings {
		fmt.Fprintf(&sb, "%d. %s (%s)\n", i+1, f.Description, f.Field)
		fmt.Fprintf(&sb, "   Preview: %s\n", f.Preview)
	}
	sb.WriteString("\nDescriptors are usually shared; prefer a credential helper or a proxy.\n")
	return sb.String()
}
