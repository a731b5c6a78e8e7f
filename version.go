// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pbox

import "github.com/bureau-foundation/pbox/version"

// Version returns this build's formatted version string, suitable for
// a --version flag.
func Version() string { return version.Info() }
