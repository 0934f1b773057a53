package bot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"peaks-bot/internal/domain"
	"peaks-bot/internal/usecase/category"
)

// Action: дискриминатор payload инлайн-кнопки.
type Action string

const (
	ActionMainMenu     Action = "main_menu"
	ActionShowNews     Action = "show_news"
	ActionCategories   Action = "show_categories_menu"
	ActionSearchNews   Action = "search_news"
	ActionSearchPosts  Action = "search_posts"
	ActionNewsCategory Action = "news_category"
	ActionNewsNav      Action = "news_nav"
	ActionShowPost     Action = "show_post"
	ActionNextPost     Action = "next_post"
)

// ErrMalformedCallback: payload не разобран. Обрабатывается как NotFound.
var ErrMalformedCallback = fmt.Errorf("некорректный payload кнопки: %w", domain.ErrNotFound)

var (
	tokenRegex = regexp.MustCompile(`^(?:[0-9a-f]{8,32}|` + category.AllToken + `)$`)
	refRegex   = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,50}$`)
)

// Callback: разобранный payload кнопки.
type Callback struct {
	Action Action
	Token  string
	Offset int
	Ref    string
}

// ParseCallback разбирает payload: сначала дискриминатор, затем типизированные аргументы.
// Смещение навигации должно быть неотрицательным и кратным pageSize.
func ParseCallback(data string, pageSize int) (Callback, error) {
	if data == "" || len(data) > category.MaxPayloadBytes {
		return Callback{}, ErrMalformedCallback
	}
	head, rest, hasArgs := strings.Cut(data, ":")
	action := Action(head)
	switch action {
	case ActionMainMenu, ActionShowNews, ActionCategories, ActionSearchNews, ActionSearchPosts:
		if hasArgs {
			return Callback{}, ErrMalformedCallback
		}
		return Callback{Action: action}, nil

	case ActionNewsCategory:
		if !tokenRegex.MatchString(rest) {
			return Callback{}, ErrMalformedCallback
		}
		return Callback{Action: action, Token: rest}, nil

	case ActionNewsNav:
		token, rawOffset, ok := strings.Cut(rest, ":")
		if !ok || !tokenRegex.MatchString(token) {
			return Callback{}, ErrMalformedCallback
		}
		offset, err := strconv.Atoi(rawOffset)
		if err != nil || offset < 0 || strconv.Itoa(offset) != rawOffset {
			return Callback{}, ErrMalformedCallback
		}
		if pageSize > 0 && offset%pageSize != 0 {
			return Callback{}, ErrMalformedCallback
		}
		return Callback{Action: action, Token: token, Offset: offset}, nil

	case ActionShowPost:
		if !refRegex.MatchString(rest) {
			return Callback{}, ErrMalformedCallback
		}
		return Callback{Action: action, Ref: rest}, nil

	case ActionNextPost:
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || id < 0 {
			return Callback{}, ErrMalformedCallback
		}
		return Callback{Action: action, Ref: rest}, nil
	}
	return Callback{}, ErrMalformedCallback
}

// String собирает payload кнопки.
func (c Callback) String() string {
	switch c.Action {
	case ActionNewsCategory:
		return string(c.Action) + ":" + c.Token
	case ActionNewsNav:
		return string(c.Action) + ":" + c.Token + ":" + strconv.Itoa(c.Offset)
	case ActionShowPost, ActionNextPost:
		return string(c.Action) + ":" + c.Ref
	}
	return string(c.Action)
}

// PostID возвращает идентификатор карточки для next_post.
func (c Callback) PostID() int64 {
	id, _ := strconv.ParseInt(c.Ref, 10, 64)
	return id
}

func navData(token string, offset int) string {
	return Callback{Action: ActionNewsNav, Token: token, Offset: offset}.String()
}

func categoryData(token string) string {
	return Callback{Action: ActionNewsCategory, Token: token}.String()
}
