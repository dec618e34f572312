// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"strconv"
	"strings"
	"time"

	"github.com/xhjxhj001/mcp-chat-server/internal/toolcard"
	"github.com/xhjxhj001/mcp-chat-server/internal/util"
)

// =============================================================================
// HISTORY LIST FORMATTING
// =============================================================================

// FormatList renders transcript metadata as a fixed-width table.
func FormatList(metas []Meta) string {
	if len(metas) == 0 {
		return "No transcripts found."
	}

	var sb strings.Builder
	sb.WriteString(util.PadRight("ID", 10) + " " + util.PadRight("Finished", 16) + " " +
		util.PadRight("State", 10) + " " + util.PadRight("Tools", 5) + " Question\n")
	sb.WriteString(strings.Repeat("-", 80) + "\n")

	for _, m := range metas {
		id := m.ID
		if len(id) > 8 {
			id = id[:8]
		}
		sb.WriteString(util.PadRight(id, 10) + " " +
			util.PadRight(m.FinishedAt.Format("2006-01-02 15:04"), 16) + " " +
			util.PadRight(m.State, 10) + " " +
			util.PadRight(strconv.Itoa(m.ToolCount), 5) + " " +
			util.Preview(m.Query, 36) + "\n")
	}
	return sb.String()
}

// =============================================================================
// TRANSCRIPT EXPORT
// =============================================================================

// Markdown renders a transcript as a Markdown document.
func (t *Transcript) Markdown() string {
	var sb strings.Builder
	sb.WriteString("# Transcript " + t.ID + "\n\n")
	sb.WriteString("- Finished: " + t.FinishedAt.Format(time.RFC3339) + "\n")
	if t.ConversationID != "" {
		sb.WriteString("- Conversation: " + t.ConversationID + "\n")
	}
	sb.WriteString("- State: " + t.State + "\n")
	sb.WriteString("- Duration: " + t.Duration.Round(time.Millisecond).String() + "\n\n")

	sb.WriteString("## Question\n\n")
	sb.WriteString(t.Query + "\n\n")

	if len(t.ToolCalls) > 0 {
		sb.WriteString("## Tool calls\n\n")
		for _, tc := range t.ToolCalls {
			sb.WriteString("### " + toolcard.Icon(tc.Name) + " " + tc.Name + "\n\n")
			if args, _ := toolcard.FormatPayload(tc.Args); args != "" {
				sb.WriteString("```json\n" + args + "\n```\n\n")
			}
			if tc.HasResult {
				result, isJSON := toolcard.FormatPayload(tc.Result)
				fence := "```\n"
				if isJSON {
					fence = "```json\n"
				}
				sb.WriteString(fence + result + "\n```\n\n")
			}
		}
	}

	sb.WriteString("## Answer\n\n")
	sb.WriteString(t.Content + "\n")
	if t.Error != "" && t.State != "completed" {
		sb.WriteString("\n> " + t.Error + "\n")
	}
	return sb.String()
}
