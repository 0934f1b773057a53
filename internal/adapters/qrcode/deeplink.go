package qrcode

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"rsc.io/qr"
)

const startPrefix = "mountain:"

var ErrEmptyQRID = errors.New("пустой идентификатор QR-кода")

var startLinkRegex = regexp.MustCompile(`(?i)(?:https?://)?t\.me/([a-z0-9_]+)\?start=([^\s&#]+)`)

// DeepLink строит ссылку на бота, открывающую карточку.
func DeepLink(botUsername, qrID string) (string, error) {
	qrID = strings.TrimSpace(qrID)
	if qrID == "" {
		return "", ErrEmptyQRID
	}
	bot := strings.TrimPrefix(strings.TrimSpace(botUsername), "@")
	return fmt.Sprintf("https://t.me/%s?start=%s", bot, url.QueryEscape(startPrefix+qrID)), nil
}

// ParseStart извлекает идентификатор карточки из параметра /start.
func ParseStart(param string) (string, bool) {
	param = strings.TrimSpace(param)
	if param == "" {
		return "", false
	}
	if decoded, err := url.QueryUnescape(param); err == nil {
		param = decoded
	}
	if !strings.HasPrefix(param, startPrefix) {
		return "", false
	}
	qrID := strings.TrimSpace(strings.TrimPrefix(param, startPrefix))
	if qrID == "" {
		return "", false
	}
	return qrID, true
}

// ExtractStartParam находит в тексте ссылку на этого бота и возвращает параметр start.
func ExtractStartParam(text, botUsername string) (string, bool) {
	bot := strings.TrimPrefix(strings.TrimSpace(botUsername), "@")
	for _, m := range startLinkRegex.FindAllStringSubmatch(text, -1) {
		if bot != "" && !strings.EqualFold(m[1], bot) {
			continue
		}
		return m[2], true
	}
	return "", false
}

// PNG рисует QR-код ссылки с уровнем коррекции M.
func PNG(link string) ([]byte, error) {
	code, err := qr.Encode(link, qr.M)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}
	return code.PNG(), nil
}
