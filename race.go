// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package lincheck

// RaceEnabled is true when the race detector is active.
// Used by tests to skip concurrent stress runs: operation records cross
// goroutines through a lock-free buffer whose acquire-release ordering the
// detector cannot observe, so it reports false positives.
const RaceEnabled = true
