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

package model

import "time"

// Rule identifies which heuristic produced a finding.
type Rule int

const (
	RuleSensitiveWord       Rule = iota // Sensitive word in subject or body
	RuleCredentialPattern               // label followed by ":" or "=" and a value
	RuleDangerousAttachment             // Extension or inferred content type
)

func (r Rule) String() string {
	switch r {
	case RuleSensitiveWord:
		return "sensitive_word"
	case RuleCredentialPattern:
		return "credential_pattern"
	case RuleDangerousAttachment:
		return "dangerous_attachment"
	default:
		return "unknown"
	}
}

// Message is one input email document. It is never modified after loading.
type Message struct {
	Source      string   `json:"-"`
	Sender      string   `json:"from"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	Attachments []string `json:"attachments"`
}

// Finding is a single detected indicator within one message.
type Finding struct {
	Rule Rule
	Text string
}

// AlertRequest is the body of POST /alerta.
type AlertRequest struct {
	Alerts []string `json:"alertas"`
}

// AlertResponse is the receiver's reply. Hash is set on success, Message on rejection.
type AlertResponse struct {
	Status  string `json:"status"`
	Hash    string `json:"hash,omitempty"`
	Message string `json:"message,omitempty"`
}

const (
	StatusReceived = "recibido"
	StatusError    = "error"
)

// StoredAlert is one persisted alert row on the receiver side.
type StoredAlert struct {
	ID          int64     `json:"id"`
	ReceivedAt  time.Time `json:"received_at"`
	Content     string    `json:"content"`
	Fingerprint string    `json:"fingerprint,omitempty"`
}
