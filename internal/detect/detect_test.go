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

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mailuminati-sentry/internal/config"
	"mailuminati-sentry/internal/model"
)

func newDetector(t *testing.T, rules config.Rules) *Detector {
	t.Helper()
	d, err := New(rules)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func rulesOf(findings []model.Finding) []model.Rule {
	out := make([]model.Rule, len(findings))
	for i, f := range findings {
		out[i] = f.Rule
	}
	return out
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		sender string
		want   string
	}{
		{"alice@Empresa.com", "empresa.com"},
		{"Alice <alice@sub.empresa.com>", "sub.empresa.com"},
		{"weird@name@evil.com", "evil.com"},
		{"no-at-sign", ""},
		{"", ""},
		{"trailing@", ""},
	}
	for _, tt := range tests {
		if got := extractDomain(tt.sender); got != tt.want {
			t.Errorf("extractDomain(%q) = %q, want %q", tt.sender, got, tt.want)
		}
	}
}

func TestTrustFilterSuffixMatch(t *testing.T) {
	f := NewTrustFilter([]string{"empresa.com", "  ", "Google.com"})
	tests := []struct {
		sender string
		skip   bool
	}{
		{"boss@empresa.com", true},
		{"boss@sub.empresa.com", true},
		{"alerts@GOOGLE.COM", true},
		{"attacker@evil.com", false},
		{"attacker@empresa.com.evil.net", false},
		{"not an address", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := f.Skip(tt.sender); got != tt.skip {
			t.Errorf("Skip(%q) = %v, want %v", tt.sender, got, tt.skip)
		}
	}
}

func TestTrustedSenderNeverProducesFindings(t *testing.T) {
	d := newDetector(t, config.DefaultRules())
	msg := model.Message{
		Sender:      "it@sub.empresa.com",
		Subject:     "contraseña confidencial",
		Body:        "password: hunter2",
		Attachments: []string{"tool.exe", "archive.zip"},
	}
	findings, skipped := d.Inspect(msg)
	if !skipped {
		t.Fatal("trusted sender should be skipped")
	}
	if len(findings) != 0 {
		t.Errorf("trusted sender produced %d findings", len(findings))
	}
}

func TestSensitiveWordsOnePerWord(t *testing.T) {
	d := newDetector(t, config.DefaultRules())
	msg := model.Message{
		Sender:  "x@evil.com",
		Subject: "CONFIDENCIAL",
		Body:    "la contraseña es confidencial, repito: confidencial",
	}
	got := d.Scan(msg)
	want := []model.Finding{
		{Rule: model.RuleSensitiveWord, Text: "Sensitive word detected: 'confidencial'"},
		{Rule: model.RuleSensitiveWord, Text: "Sensitive word detected: 'contraseña'"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Scan mismatch (-want +got):\n%s", diff)
	}
}

func TestCredentialPatternAtMostOnce(t *testing.T) {
	d := newDetector(t, config.DefaultRules())
	bodies := []string{
		"password: xyz123",
		"user=foo",
		"USER = admin\nPassword:secret\nlogin: root clave=1",
		"usuario :\tpepe",
	}
	for _, body := range bodies {
		findings := d.Scan(model.Message{Sender: "x@evil.com", Body: body})
		if diff := cmp.Diff([]model.Rule{model.RuleCredentialPattern}, rulesOf(findings)); diff != "" {
			t.Errorf("body %q (-want +got):\n%s", body, diff)
		}
	}
}

func TestCredentialPatternNoMatch(t *testing.T) {
	d := newDetector(t, config.DefaultRules())
	for _, body := range []string{"password", "user: ", "please change your password soon", ""} {
		if findings := d.Scan(model.Message{Body: body}); len(findings) != 0 {
			t.Errorf("body %q produced %v", body, findings)
		}
	}
}

func TestCredentialPatternIgnoresSubject(t *testing.T) {
	d := newDetector(t, config.DefaultRules())
	findings := d.Scan(model.Message{Subject: "password: 1234", Body: "hello"})
	if len(findings) != 0 {
		t.Errorf("credential rule should only look at the body, got %v", findings)
	}
}

func TestDangerousAttachmentsOnePerAttachment(t *testing.T) {
	d := newDetector(t, config.DefaultRules())
	msg := model.Message{
		Sender:      "x@evil.com",
		Attachments: []string{"notes.txt", "Payload.EXE", "bundle.zip", "run.bat", "photo.png"},
	}
	got := d.Scan(msg)
	want := []model.Finding{
		{Rule: model.RuleDangerousAttachment, Text: "Potentially dangerous attachment: 'Payload.EXE'"},
		{Rule: model.RuleDangerousAttachment, Text: "Potentially dangerous attachment: 'bundle.zip'"},
		{Rule: model.RuleDangerousAttachment, Text: "Potentially dangerous attachment: 'run.bat'"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Scan mismatch (-want +got):\n%s", diff)
	}
}

func TestDangerousAttachmentByContentTypeOnly(t *testing.T) {
	rules := config.DefaultRules()
	rules.DangerousExtensions = nil
	rules.DangerousTypeMarkers = []string{"zip"}
	d := newDetector(t, rules)

	findings := d.Scan(model.Message{Attachments: []string{"archive.zip", "readme.md", "noext"}})
	if len(findings) != 1 || !strings.Contains(findings[0].Text, "archive.zip") {
		t.Errorf("expected a single content-type finding for archive.zip, got %v", findings)
	}
}

func TestInferContentType(t *testing.T) {
	if got := inferContentType("bundle.zip"); !strings.Contains(got, "zip") {
		t.Errorf("inferContentType(zip) = %q", got)
	}
	if got := inferContentType("noext"); got != "" {
		t.Errorf("inferContentType(noext) = %q, want empty", got)
	}
	for _, name := range []string{"backup.tar.gz", "logs.bz2", "dump.xz"} {
		if got := inferContentType(name); got != "" {
			t.Errorf("inferContentType(%s) = %q, want empty for a compression suffix", name, got)
		}
	}
}

func TestCompressedAttachmentNotFlagged(t *testing.T) {
	d := newDetector(t, config.DefaultRules())
	findings := d.Scan(model.Message{Attachments: []string{"backup.tar.gz", "bundle.zip"}})
	if len(findings) != 1 || !strings.Contains(findings[0].Text, "bundle.zip") {
		t.Errorf("want only bundle.zip flagged, got %v", findings)
	}
}

func TestEmptyRulesProduceNothing(t *testing.T) {
	d := newDetector(t, config.Rules{})
	msg := model.Message{Sender: "a@b.c", Subject: "contraseña", Body: "password: x", Attachments: []string{"a.exe"}}
	if findings, skipped := d.Inspect(msg); skipped || len(findings) != 0 {
		t.Errorf("Inspect with empty rules = (%v, %v)", findings, skipped)
	}
}

func TestEndToEndScenarioFindings(t *testing.T) {
	rules := config.DefaultRules()
	rules.TrustedDomains = []string{"empresa.com"}
	d := newDetector(t, rules)

	msg := model.Message{
		Sender:      "attacker@evil.com",
		Subject:     "contraseña urgente",
		Body:        "user: admin password: 1234",
		Attachments: []string{"payload.exe"},
	}
	findings, skipped := d.Inspect(msg)
	if skipped {
		t.Fatal("evil.com must not be trusted")
	}
	want := []model.Rule{model.RuleSensitiveWord, model.RuleCredentialPattern, model.RuleDangerousAttachment}
	if diff := cmp.Diff(want, rulesOf(findings)); diff != "" {
		t.Errorf("rule order mismatch (-want +got):\n%s", diff)
	}
}
