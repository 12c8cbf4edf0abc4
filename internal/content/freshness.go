// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import "time"

// CheckFreshness returns ErrConflict when the stored row was modified after
// the client's last-known timestamp. A nil client timestamp skips the check.
// Times are compared in UTC at full precision. A client timestamp without a
// sub-second part (an HTTP date) is compared against the stored time
// truncated to the second.
func CheckFreshness(current time.Time, client *time.Time) error {
	if client == nil {
		return nil
	}
	cur := current.UTC()
	cli := client.UTC()
	if cli.Nanosecond() == 0 {
		cur = cur.Truncate(time.Second)
	}
	if cur.After(cli) {
		return ErrConflict
	}
	return nil
}
