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

// Package report assembles per-message findings into an alert batch.
//
// A Batch has two renderings. Items is the list of record texts: it is what
// goes over the wire and what the integrity hash covers. Report is the
// human-readable at-rest file, which adds a banner around the same records.
package report

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"mailuminati-sentry/internal/model"
)

const banner = "SECURITY ALERTS:\n=====================\n\n"

// Record is one message's findings plus its identifying metadata.
type Record struct {
	Source   string
	Sender   string
	Subject  string
	Findings []model.Finding
}

// Render returns the canonical text block for the record. Invalid UTF-8
// (e.g. a non-UTF-8 file name) is replaced with U+FFFD so the text survives
// JSON encoding byte for byte.
func (r Record) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", r.Source)
	fmt.Fprintf(&b, "Sender: %s\n", r.Sender)
	fmt.Fprintf(&b, "Subject: %s\n", r.Subject)
	b.WriteString("Findings:\n")
	for _, f := range r.Findings {
		fmt.Fprintf(&b, "    * %s\n", f.Text)
	}
	return strings.ToValidUTF8(b.String(), "\uFFFD")
}

// Batch is the ordered set of records produced by one run.
type Batch struct {
	records []Record
}

// Add appends a record for msg if it has at least one finding.
// It reports whether a record was created.
func (b *Batch) Add(msg model.Message, findings []model.Finding) bool {
	if len(findings) == 0 {
		return false
	}
	fs := make([]model.Finding, len(findings))
	copy(fs, findings)
	b.records = append(b.records, Record{
		Source:   msg.Source,
		Sender:   msg.Sender,
		Subject:  msg.Subject,
		Findings: fs,
	})
	return true
}

// Len is the number of records in the batch.
func (b *Batch) Len() int {
	return len(b.records)
}

// Records returns a copy of the records in discovery order.
func (b *Batch) Records() []Record {
	out := make([]Record, len(b.records))
	copy(out, b.records)
	return out
}

// Items returns the rendered record texts in order.
func (b *Batch) Items() []string {
	items := make([]string, len(b.records))
	for i, r := range b.records {
		items[i] = r.Render()
	}
	return items
}

// Report returns the at-rest report text.
func (b *Batch) Report() string {
	var sb strings.Builder
	sb.WriteString(banner)
	for _, item := range b.Items() {
		sb.WriteString(item)
		sb.WriteString("\n")
	}
	return sb.String()
}

// WriteFile writes the at-rest report to path with owner-only permissions.
func (b *Batch) WriteFile(path string) error {
	if err := os.WriteFile(path, []byte(b.Report()), 0o600); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

// Hash is the lowercase hex SHA-256 of items joined with "\n".
// Sender and receiver must both use this join rule.
func Hash(items []string) string {
	sum := sha256.Sum256([]byte(strings.Join(items, "\n")))
	return hex.EncodeToString(sum[:])
}
