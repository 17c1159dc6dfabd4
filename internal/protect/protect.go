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

// Package protect encrypts and signs the at-rest alert report.
package protect

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// ErrProtection wraps every encryption, signing or cleanup failure.
var ErrProtection = errors.New("report protection failed")

// Protector is the cryptographic capability the stage depends on.
// Implementations write their output to outPath and return nil only on success.
type Protector interface {
	Encrypt(ctx context.Context, plaintextPath, recipient, outPath string) error
	Sign(ctx context.Context, plaintextPath, signer, outPath string) error
}

// Artifacts describes what a Protect call left on disk.
type Artifacts struct {
	Plaintext        string
	Encrypted        string
	Signature        string
	PlaintextRemoved bool
}

// Stage runs encryption, detached signing and plaintext cleanup for one report.
type Stage struct {
	protector Protector
	recipient string
	signer    string
	logger    zerolog.Logger
}

// NewStage binds a Protector to the configured recipient and signer identities.
func NewStage(p Protector, recipient, signer string, logger zerolog.Logger) *Stage {
	return &Stage{
		protector: p,
		recipient: recipient,
		signer:    signer,
		logger:    logger.With().Str("component", "protect").Logger(),
	}
}

// Protect encrypts and signs the report at plaintextPath. A failing step is
// logged and does not prevent the other one from running. The plaintext is
// removed only when both outputs exist, so afterwards the plaintext is absent
// if and only if both the encrypted file and the signature are present.
func (s *Stage) Protect(ctx context.Context, plaintextPath string) (Artifacts, error) {
	a := Artifacts{
		Plaintext: plaintextPath,
		Encrypted: plaintextPath + ".gpg",
		Signature: plaintextPath + ".sig",
	}
	if _, err := os.Stat(plaintextPath); err != nil {
		return a, fmt.Errorf("%w: report missing: %v", ErrProtection, err)
	}

	// Outputs from an earlier run would otherwise count as produced by this one.
	for _, stale := range []string{a.Encrypted, a.Signature} {
		if err := os.Remove(stale); err != nil && !errors.Is(err, os.ErrNotExist) {
			return a, fmt.Errorf("%w: remove stale %s: %v", ErrProtection, stale, err)
		}
	}

	var errs []error

	if err := s.step(ctx, "encrypt", s.recipient, a.Encrypted, func() error {
		return s.protector.Encrypt(ctx, plaintextPath, s.recipient, a.Encrypted)
	}); err != nil {
		errs = append(errs, err)
	}

	if err := s.step(ctx, "sign", s.signer, a.Signature, func() error {
		return s.protector.Sign(ctx, plaintextPath, s.signer, a.Signature)
	}); err != nil {
		errs = append(errs, err)
	}

	if exists(a.Encrypted) && exists(a.Signature) {
		if err := os.Remove(plaintextPath); err != nil {
			s.logger.Error().Err(err).Str("path", plaintextPath).Msg("failed to remove plaintext report")
			errs = append(errs, fmt.Errorf("remove plaintext: %w", err))
		} else {
			a.PlaintextRemoved = true
			s.logger.Info().Str("path", plaintextPath).Msg("plaintext report removed after encryption and signing")
		}
	} else {
		s.logger.Warn().Str("path", plaintextPath).Msg("plaintext report left on disk")
	}

	if len(errs) > 0 {
		return a, fmt.Errorf("%w: %w", ErrProtection, errors.Join(errs...))
	}
	return a, nil
}

func (s *Stage) step(ctx context.Context, name, identity, outPath string, run func() error) error {
	if identity == "" {
		err := fmt.Errorf("%s: no identity configured", name)
		s.logger.Error().Err(err).Msg("protection step skipped")
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	err := run()
	if err == nil && !exists(outPath) {
		err = fmt.Errorf("output %s not created", outPath)
	}
	if err != nil {
		// A failed step must not leave a partial artifact behind.
		_ = os.Remove(outPath)
		s.logger.Error().Err(err).Str("step", name).Str("identity", identity).Msg("protection step failed")
		return fmt.Errorf("%s: %w", name, err)
	}
	s.logger.Info().Str("step", name).Str("output", outPath).Msg("protection step completed")
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
