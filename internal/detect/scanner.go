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

// Package detect decides, per message, whether content is suspicious.
package detect

import (
	"fmt"
	"mime"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/h2non/filetype"

	"mailuminati-sentry/internal/config"
	"mailuminati-sentry/internal/model"
)

// Detector applies the trust filter and the content rules built from one rule set.
type Detector struct {
	trust      *TrustFilter
	words      []string
	credential *regexp.Regexp
	extensions []string
	markers    []string
}

// New compiles rules into a Detector.
func New(rules config.Rules) (*Detector, error) {
	d := &Detector{
		trust:      NewTrustFilter(rules.TrustedDomains),
		words:      normalize(rules.SensitiveWords),
		extensions: normalize(rules.DangerousExtensions),
		markers:    normalize(rules.DangerousTypeMarkers),
	}

	labels := normalize(rules.CredentialLabels)
	if len(labels) > 0 {
		quoted := make([]string, len(labels))
		for i, l := range labels {
			quoted[i] = regexp.QuoteMeta(l)
		}
		re, err := regexp.Compile(`(?i)(?:` + strings.Join(quoted, "|") + `)\s*[:=]\s*\S+`)
		if err != nil {
			return nil, fmt.Errorf("compile credential pattern: %w", err)
		}
		d.credential = re
	}
	return d, nil
}

// Skip reports whether msg comes from a trusted domain and must not be scanned.
func (d *Detector) Skip(msg model.Message) bool {
	return d.trust.Skip(msg.Sender)
}

// Inspect runs the trust filter and, for untrusted senders, the content rules.
func (d *Detector) Inspect(msg model.Message) (findings []model.Finding, skipped bool) {
	if d.Skip(msg) {
		return nil, true
	}
	return d.Scan(msg), false
}

// Scan applies every rule independently. Findings come back in rule order,
// then attachment order.
func (d *Detector) Scan(msg model.Message) []model.Finding {
	var findings []model.Finding

	subject := strings.ToLower(msg.Subject)
	body := strings.ToLower(msg.Body)
	for _, w := range d.words {
		if strings.Contains(subject, w) || strings.Contains(body, w) {
			findings = append(findings, model.Finding{
				Rule: model.RuleSensitiveWord,
				Text: fmt.Sprintf("Sensitive word detected: '%s'", w),
			})
		}
	}

	if d.credential != nil && d.credential.MatchString(msg.Body) {
		findings = append(findings, model.Finding{
			Rule: model.RuleCredentialPattern,
			Text: "Possible credential string detected in message body",
		})
	}

	for _, name := range msg.Attachments {
		if d.dangerousAttachment(name) {
			findings = append(findings, model.Finding{
				Rule: model.RuleDangerousAttachment,
				Text: fmt.Sprintf("Potentially dangerous attachment: '%s'", name),
			})
		}
	}
	return findings
}

func (d *Detector) dangerousAttachment(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range d.extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	contentType := inferContentType(lower)
	if contentType == "" {
		return false
	}
	for _, m := range d.markers {
		if strings.Contains(contentType, m) {
			return true
		}
	}
	return false
}

// compressionExts are content encodings, not content types: "a.tar.gz" has
// no type of its own ("application/gzip" would otherwise match "zip").
var compressionExts = map[string]bool{"gz": true, "bz2": true, "xz": true, "z": true, "br": true}

// inferContentType maps a file name to a MIME type by extension only.
// h2non/filetype's table is consulted first, then the system mime table.
func inferContentType(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" || compressionExts[ext] {
		return ""
	}
	if t := filetype.GetType(ext); t != filetype.Unknown {
		return strings.ToLower(t.MIME.Value)
	}
	return strings.ToLower(mime.TypeByExtension("." + ext))
}

func normalize(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
