// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lincheck

import "github.com/cockroachdb/errors"

// ErrMalformedHistory marks a history that cannot be checked.
//
// A malformed history is an input error, never a verdict: Check returns it
// before the search starts and reports no outcome. Wrapped errors carry the
// offending entry; use [IsMalformed] or errors.Is to classify them.
//
// Example:
//
//	res, err := lincheck.Check(h)
//	if lincheck.IsMalformed(err) {
//	    // fix the recorder, not the map under test
//	}
var ErrMalformedHistory = errors.New("malformed history")

// IsMalformed reports whether err marks a malformed history.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedHistory)
}

// ErrWitnessMismatch marks a witness that does not explain its history.
// Returned by [Replay].
var ErrWitnessMismatch = errors.New("witness does not explain history")

func malformedf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrMalformedHistory)
}

func mismatchf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrWitnessMismatch)
}
