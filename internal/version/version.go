/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package version

// Version is the current release, overridden at build time via ldflags.
var Version = "0.0.1-alpha"
