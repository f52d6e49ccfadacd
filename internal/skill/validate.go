package skill

import (
	"fmt"
	"regexp"
	"strings"
)

// Name and description bounds for skill documents.
const (
	MinNameLength        = 3
	MaxNameLength        = 64
	MaxDescriptionLength = 500
)

// slugPattern is the strict slug grammar for skill names: lowercase ASCII
// letters and digits in hyphen-separated runs. No leading, trailing, or
// doubled hyphens.
var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// pathSegmentPattern validates one segment of a taxonomy path.
var pathSegmentPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// suspiciousMarkers are substrings that indicate prompt-injection or
// script content smuggled into a generated document.
var suspiciousMarkers = []string{
	"<script",
	"javascript:",
	"ignore previous instructions",
	"ignore all previous instructions",
	"disregard the above",
}

// ValidateSkillName checks a skill name against the slug grammar and
// length bounds.
func ValidateSkillName(name string) error {
	if name == "" {
		return fmt.Errorf("skill name cannot be empty")
	}

	if len(name) < MinNameLength {
		return fmt.Errorf("skill name must be at least %d characters, got %d", MinNameLength, len(name))
	}

	if len(name) > MaxNameLength {
		return fmt.Errorf("skill name must be at most %d characters, got %d", MaxNameLength, len(name))
	}

	if !slugPattern.MatchString(name) {
		return fmt.Errorf("skill name %q contains invalid characters: must be lowercase letters, digits, and single hyphens", name)
	}

	return nil
}

// ValidateDescription checks that a description is non-empty and bounded.
func ValidateDescription(description string) error {
	trimmed := strings.TrimSpace(description)
	if trimmed == "" {
		return fmt.Errorf("description cannot be empty")
	}

	if len(description) > MaxDescriptionLength {
		return fmt.Errorf("description must be at most %d characters, got %d", MaxDescriptionLength, len(description))
	}

	return nil
}

// ValidateTaxonomyPath checks a slash-separated taxonomy path. Each segment
// must be a valid slug segment; empty segments are rejected.
func ValidateTaxonomyPath(path string) error {
	if path == "" {
		return fmt.Errorf("taxonomy path cannot be empty")
	}

	if strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return fmt.Errorf("taxonomy path %q must not have leading or trailing slashes", path)
	}

	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			return fmt.Errorf("taxonomy path %q contains an empty segment", path)
		}
		if segment == ".." || segment == "." {
			return fmt.Errorf("taxonomy path %q contains a relative segment", path)
		}
		if !pathSegmentPattern.MatchString(segment) {
			return fmt.Errorf("taxonomy path segment %q contains invalid characters", segment)
		}
	}

	return nil
}

// ScanContent checks generated content for injection markers. Returns a
// list of findings; empty means clean.
func ScanContent(content string) []string {
	var findings []string

	lower := strings.ToLower(content)
	for _, marker := range suspiciousMarkers {
		if strings.Contains(lower, marker) {
			findings = append(findings, fmt.Sprintf("content contains suspicious marker %q", marker))
		}
	}

	return findings
}

// Slugify converts free text into a candidate skill name matching the slug
// grammar. Used to suggest corrections in structure-fix requests.
func Slugify(text string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen

	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	slug := strings.TrimSuffix(b.String(), "-")
	if len(slug) > MaxNameLength {
		slug = strings.TrimSuffix(slug[:MaxNameLength], "-")
	}

	return slug
}

// CountWords returns the whitespace-separated word count of content.
func CountWords(content string) int {
	return len(strings.Fields(content))
}

// ClassifySize buckets a word count against the configured bounds.
func ClassifySize(wordCount, min, max int) SizeClass {
	switch {
	case wordCount < min:
		return SizeUndersized
	case wordCount > max:
		return SizeOversized
	default:
		return SizeOptimal
	}
}
