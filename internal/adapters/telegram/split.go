package telegram

import "strings"

const (
	messageLimit = 4096
	captionLimit = 1024
)

// SplitMessage режет текст на части, помещающиеся в одно сообщение Telegram.
func SplitMessage(text string) []string {
	return split(text, messageLimit)
}

// FitsCaption сообщает, поместится ли текст в подпись к фото.
func FitsCaption(text string) bool {
	return len([]rune(strings.TrimSpace(text))) <= captionLimit
}

// split предпочитает резать по переводам строк, чтобы HTML-разметка строк не рвалась.
func split(text string, limit int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	runes := []rune(trimmed)
	if len(runes) <= limit {
		return []string{trimmed}
	}

	var parts []string
	for start := 0; start < len(runes); {
		end := start + limit
		if end >= len(runes) {
			end = len(runes)
		} else if cut := lastNewline(runes, start, end); cut > start {
			end = cut
		}
		if chunk := strings.Trim(string(runes[start:end]), "\n"); chunk != "" {
			parts = append(parts, chunk)
		}
		start = end
		for start < len(runes) && runes[start] == '\n' {
			start++
		}
	}
	return parts
}

func lastNewline(runes []rune, start, end int) int {
	for i := end; i > start; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	return -1
}
