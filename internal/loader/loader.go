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

// Package loader turns input documents on disk into messages.
package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jhillyerd/enmime"

	"mailuminati-sentry/internal/model"
)

// ErrInputRead marks a document that could not be read or parsed.
// Callers skip the document and continue with the batch.
var ErrInputRead = errors.New("unreadable input document")

// Patterns are the file globs picked up by Discover.
var Patterns = []string{"*.json", "*.eml"}

// Discover lists candidate documents in dir, sorted by name.
func Discover(dir string) ([]string, error) {
	var files []string
	for _, p := range Patterns {
		matches, err := filepath.Glob(filepath.Join(dir, p))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// Load reads one document. The format is chosen by extension.
func Load(path string) (model.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Message{}, fmt.Errorf("%w: %s: %v", ErrInputRead, path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".eml") {
		return ReadEML(f, path)
	}
	return ReadJSON(f, path)
}

// ReadJSON decodes a {"from","subject","body","attachments"} document.
func ReadJSON(r io.Reader, source string) (model.Message, error) {
	var msg model.Message
	if err := json.NewDecoder(r).Decode(&msg); err != nil {
		return model.Message{}, fmt.Errorf("%w: %s: %v", ErrInputRead, source, err)
	}
	msg.Source = source
	return msg, nil
}

// ReadEML parses a MIME message. The plain text part is preferred over HTML.
func ReadEML(r io.Reader, source string) (model.Message, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return model.Message{}, fmt.Errorf("%w: %s: %v", ErrInputRead, source, err)
	}

	body := env.Text
	if strings.TrimSpace(body) == "" {
		body = env.HTML
	}
	attachments := make([]string, 0, len(env.Attachments))
	for _, att := range env.Attachments {
		if att.FileName != "" {
			attachments = append(attachments, att.FileName)
		}
	}
	return model.Message{
		Source:      source,
		Sender:      env.GetHeader("From"),
		Subject:     env.GetHeader("Subject"),
		Body:        body,
		Attachments: attachments,
	}, nil
}
