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

package protect

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// GPG shells out to a gpg binary. It is treated as a black box that either
// produces the requested output file or fails.
type GPG struct {
	Binary string
}

func (g GPG) Encrypt(ctx context.Context, plaintextPath, recipient, outPath string) error {
	return g.run(ctx, "--batch", "--yes", "--output", outPath, "--encrypt", "--recipient", recipient, plaintextPath)
}

func (g GPG) Sign(ctx context.Context, plaintextPath, signer, outPath string) error {
	return g.run(ctx, "--batch", "--yes", "--output", outPath, "--detach-sign", "--local-user", signer, plaintextPath)
}

func (g GPG) run(ctx context.Context, args ...string) error {
	bin := g.Binary
	if bin == "" {
		bin = "gpg"
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w: %s", bin, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
