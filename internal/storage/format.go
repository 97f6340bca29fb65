// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"strconv"
	"strings"

	"github.com/bensaine/payg-chatgpt/internal/util"
)

// =============================================================================
// LIST FORMATTING
// =============================================================================

// FormatList renders summaries as a fixed-width table. Rows are numbered
// from 1 in list order; the active conversation is marked with "*".
func FormatList(summaries []Summary) string {
	if len(summaries) == 0 {
		return "No conversations yet."
	}

	var sb strings.Builder
	sb.WriteString("   " + util.PadRight("#", 4) + util.PadRight("Title", 36) + util.PadRight("Created", 18) + "Messages\n")
	sb.WriteString(strings.Repeat("-", 68) + "\n")

	for i, s := range summaries {
		marker := "  "
		if s.Active {
			marker = "* "
		}
		sb.WriteString(marker + " " +
			util.PadRight(strconv.Itoa(i+1), 4) +
			util.PadRight(strings.Join(strings.Fields(s.Title), " "), 35) + " " +
			util.PadRight(s.CreatedAt.Local().Format("2006-01-02 15:04"), 18) +
			strconv.Itoa(s.MessageCount) + "\n")
	}
	return sb.String()
}
