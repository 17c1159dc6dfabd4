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

package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mailuminati-sentry/internal/model"
)

const sampleEML = "From: Mallory <mallory@evil.com>\r\n" +
	"To: victim@empresa.com\r\n" +
	"Subject: Factura pendiente\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"XYZ\"\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"login: admin\r\n" +
	"--XYZ\r\n" +
	"Content-Type: application/octet-stream\r\n" +
	"Content-Disposition: attachment; filename=\"factura.exe\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"TVqQAAMAAAAEAAAA\r\n" +
	"--XYZ--\r\n"

func TestReadJSON(t *testing.T) {
	doc := `{"from":"attacker@evil.com","subject":"hola","body":"user: admin","attachments":["payload.exe","a.txt"]}`
	got, err := ReadJSON(strings.NewReader(doc), "mail1.json")
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	want := model.Message{
		Source:      "mail1.json",
		Sender:      "attacker@evil.com",
		Subject:     "hola",
		Body:        "user: admin",
		Attachments: []string{"payload.exe", "a.txt"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadJSON mismatch (-want +got):\n%s", diff)
	}
}

func TestReadJSONMalformed(t *testing.T) {
	tests := []string{
		`{"from": "a@b.c",`,
		`{"attachments": "not-a-list"}`,
		``,
	}
	for _, doc := range tests {
		if _, err := ReadJSON(strings.NewReader(doc), "bad.json"); !errors.Is(err, ErrInputRead) {
			t.Errorf("ReadJSON(%q) error = %v, want ErrInputRead", doc, err)
		}
	}
}

func TestReadEML(t *testing.T) {
	msg, err := ReadEML(strings.NewReader(sampleEML), "mail.eml")
	if err != nil {
		t.Fatalf("ReadEML: %v", err)
	}
	if !strings.Contains(msg.Sender, "mallory@evil.com") {
		t.Errorf("Sender = %q", msg.Sender)
	}
	if msg.Subject != "Factura pendiente" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.Body, "login: admin") {
		t.Errorf("Body = %q", msg.Body)
	}
	if diff := cmp.Diff([]string{"factura.exe"}, msg.Attachments); diff != "" {
		t.Errorf("Attachments mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscoverAndLoad(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"b.json":   `{"from":"b@evil.com","subject":"","body":"","attachments":[]}`,
		"a.eml":    sampleEML,
		"skip.txt": "ignored",
		"c.json":   `{broken`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	found, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	var names []string
	for _, f := range found {
		names = append(names, filepath.Base(f))
	}
	if diff := cmp.Diff([]string{"a.eml", "b.json", "c.json"}, names); diff != "" {
		t.Errorf("Discover mismatch (-want +got):\n%s", diff)
	}

	if _, err := Load(filepath.Join(dir, "b.json")); err != nil {
		t.Errorf("Load(b.json): %v", err)
	}
	if _, err := Load(filepath.Join(dir, "c.json")); !errors.Is(err, ErrInputRead) {
		t.Errorf("Load(c.json) error = %v, want ErrInputRead", err)
	}
	if _, err := Load(filepath.Join(dir, "missing.json")); !errors.Is(err, ErrInputRead) {
		t.Errorf("Load(missing.json) error = %v, want ErrInputRead", err)
	}
}
