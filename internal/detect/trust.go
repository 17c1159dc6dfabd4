// Mailuminati Sentry
// Copyright (C) 2025 Simon Bressier
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package detect

import "strings"

// TrustFilter exempts messages whose sender domain ends with a trusted suffix.
type TrustFilter struct {
	suffixes []string
}

// NewTrustFilter builds a filter from trusted domain suffixes. Blank entries are dropped.
func NewTrustFilter(domains []string) *TrustFilter {
	suffixes := make([]string, 0, len(domains))
	for _, d := range domains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			suffixes = append(suffixes, d)
		}
	}
	return &TrustFilter{suffixes: suffixes}
}

// Skip reports whether the sender's domain is trusted. Malformed addresses never match.
func (f *TrustFilter) Skip(sender string) bool {
	domain := extractDomain(sender)
	if domain == "" {
		return false
	}
	for _, s := range f.suffixes {
		if strings.HasSuffix(domain, s) {
			return true
		}
	}
	return false
}

// extractDomain returns the lower-cased text after the last "@", or "" if there is none.
// Accepts both "Name <user@domain>" and bare "user@domain".
func extractDomain(sender string) string {
	addr := strings.TrimSpace(sender)
	if idx := strings.LastIndex(addr, "<"); idx != -1 {
		addr = addr[idx+1:]
		if end := strings.Index(addr, ">"); end != -1 {
			addr = addr[:end]
		}
	}
	idx := strings.LastIndex(addr, "@")
	if idx == -1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(addr[idx+1:]))
}
