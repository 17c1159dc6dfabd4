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

// sentry scans mail documents for leaks of sensitive data and ships the
// findings to an authenticated receiver.
//
// Usage:
//
//	sentry scan   [--input <dir>] [--report <file>] [--receiver <url>]
//	sentry serve  [--addr <host:port>] [--db <file>]
//	sentry alerts [--db <file>] [--limit <n>]
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
