package aggregate

import (
	"strings"

	"github.com/OptimiLabs/velocity/internal/model"
)

const (
	// headTailSize bounds the record buffers retained for the summary.
	headTailSize = 10
	// firstPromptLimit truncates the extracted first human message.
	firstPromptLimit = 200
	// modifiedFilesCap bounds the listed modified files; the rest roll up
	// into an overflow counter.
	modifiedFilesCap = 10
)

// headTail keeps the first and last N records of a stream in O(N) memory.
type headTail struct {
	head []model.Record
	tail []model.Record
}

func (h *headTail) push(rec model.Record) {
	if len(h.head) < headTailSize {
		h.head = append(h.head, rec)
		return
	}
	if len(h.tail) == headTailSize {
		copy(h.tail, h.tail[1:])
		h.tail = h.tail[:headTailSize-1]
	}
	h.tail = append(h.tail, rec)
}

// firstPrompt extracts the first genuine human message from the head
// buffer, skipping command wrappers and injected context.
func (h *headTail) firstPrompt() string {
	for _, rec := range h.head {
		if rec.Role != "user" {
			continue
		}
		text := strings.TrimSpace(userText(rec))
		if text == "" || systemishContent(text) {
			continue
		}
		return truncate(text, firstPromptLimit)
	}
	return ""
}

func userText(rec model.Record) string {
	if rec.Text != "" {
		return rec.Text
	}
	for _, b := range rec.Blocks {
		if b.Type == model.BlockText && b.Text != "" {
			return b.Text
		}
	}
	return ""
}

// systemishContent matches injected wrappers that are not real prompts.
func systemishContent(text string) bool {
	return strings.HasPrefix(text, "<local-command-") ||
		strings.HasPrefix(text, "<command-name>") ||
		strings.HasPrefix(text, "<environment_context>") ||
		strings.Contains(text, "<system-reminder>")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}

// buildSummary assembles the extractive auto-summary at the end of a pass.
func buildSummary(ht *headTail, touches []model.FileTouch, notableCmds int, sawErrors bool) model.Summary {
	var modified []string
	overflow := 0
	for _, ft := range touches {
		if !ft.Written {
			continue
		}
		if len(modified) < modifiedFilesCap {
			modified = append(modified, ft.Path)
		} else {
			overflow++
		}
	}

	return model.Summary{
		FirstPrompt:       ht.firstPrompt(),
		ModifiedFiles:     modified,
		ModifiedOverflow:  overflow,
		NotableCommands:   notableCmds,
		EncounteredErrors: sawErrors,
	}
}
