package service

import (
	"regexp"
	"strings"
)

// Row is one normalized tabular row from a form source. Empty-like cells are
// removed during normalization, so a missing key means "no value".
type Row map[string]string

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// emailColumnKeywords match primary email headers across form revisions.
var emailColumnKeywords = []string{"email address", "e-mail", "email"}

// studentEmailColumnKeywords match the secondary student-identity column used
// when the form login address belongs to a guardian.
var studentEmailColumnKeywords = []string{"student email", "student_email", "student e-mail"}

// NormalizeRows trims every value and drops cells equal to "", "nan" or
// "None". Pure; tolerates nil input.
func NormalizeRows(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, raw := range rows {
		row := make(Row, len(raw))
		for key, value := range raw {
			trimmed := strings.TrimSpace(value)
			if trimmed == "" || trimmed == "nan" || trimmed == "None" {
				continue
			}
			row[key] = trimmed
		}
		out = append(out, row)
	}
	return out
}

// NormalizeEmail lowercases and trims an address; returns "" when the result
// is not plausibly an email (must contain "@" and be at least 3 runes).
func NormalizeEmail(raw string) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	if len(email) < 3 || !strings.Contains(email, "@") {
		return ""
	}
	return email
}

// IsValidEmail reports whether the address matches the strict pattern used
// for exported email lists.
func IsValidEmail(raw string) bool {
	return emailPattern.MatchString(strings.TrimSpace(raw))
}

// FindEmailColumn scans headers in order for the first primary-email column,
// case-insensitive substring match. Returns "" when none matches.
func FindEmailColumn(headers []string) string {
	return findColumn(headers, emailColumnKeywords)
}

// FindStudentEmailColumn scans headers for the secondary student-email column.
func FindStudentEmailColumn(headers []string) string {
	return findColumn(headers, studentEmailColumnKeywords)
}

func findColumn(headers []string, keywords []string) string {
	for _, header := range headers {
		lower := strings.ToLower(header)
		for _, keyword := range keywords {
			if strings.Contains(lower, keyword) {
				return header
			}
		}
	}
	return ""
}

// nameChain is the display-name priority order applied to merged rows.
var nameChain = []string{"Name", "Student Full Name", "Student Name", "Full Name"}

// ResolveName applies the fixed priority chain and falls back to first/last
// name composition. Returns "" when nothing usable exists.
func ResolveName(row Row) string {
	for _, key := range nameChain {
		if value, ok := row[key]; ok && value != "" {
			return value
		}
	}
	first := strings.TrimSpace(row["First Name"])
	last := strings.TrimSpace(row["Last Name"])
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	}
	return ""
}
