package bot

import (
	"fmt"
	"html"
	"strings"

	"peaks-bot/internal/domain"
	"peaks-bot/internal/usecase/category"
)

const (
	newsSearchShown    = 5
	postDescriptionMax = 100

	textHome       = "🏠 Главное меню"
	textCategories = "◀️ В меню категорий"
	textBack       = "⬅️ Назад"
	textForward    = "Вперёд ➡️"
)

// Button: кнопка инлайн-клавиатуры: либо callback, либо ссылка.
type Button struct {
	Text string
	Data string
	URL  string
}

// Payload: текст сообщения в HTML и раскладка кнопок.
type Payload struct {
	Text string
	Rows [][]Button
}

// Links: внешние ссылки сообщества для главного меню.
type Links struct {
	Chat    string
	Channel string
	Site    string
	Contest string
}

// CategoryEntry: строка меню категорий с уже выданным токеном.
type CategoryEntry struct {
	Name  string
	Count int
	Token string
}

func data(text string, action Action) Button {
	return Button{Text: text, Data: string(action)}
}

func homeRow() []Button {
	return []Button{data(textHome, ActionMainMenu)}
}

// RenderPage строит страницу новостей категории. Чистая функция: одинаковый вход даёт одинаковый результат.
func RenderPage(categoryName, token string, page domain.Page) Payload {
	var b strings.Builder
	title := "Все новости"
	if categoryName != "" {
		title = categoryName
	}
	fmt.Fprintf(&b, "📰 <b>%s</b>\n\n", html.EscapeString(title))

	switch {
	case page.Total == 0:
		b.WriteString("В этой категории пока нет новостей.")
	case len(page.Items) == 0:
		b.WriteString("Новостей на этой странице больше нет.")
	default:
		for i, item := range page.Items {
			fmt.Fprintf(&b, "%d. <a href=\"%s\">%s</a>\n", page.Offset+i+1, html.EscapeString(item.Link), html.EscapeString(item.DisplayTitle()))
		}
		if rest := page.Remaining(); rest > 0 {
			fmt.Fprintf(&b, "\n... и ещё %d новостей", rest)
		}
	}

	var rows [][]Button
	if page.Total > 0 {
		var nav []Button
		if page.HasPrevious() {
			prev := page.Offset - page.PageSize
			if prev < 0 {
				prev = 0
			}
			nav = append(nav, Button{Text: textBack, Data: navData(token, prev)})
		}
		if page.HasNext() {
			nav = append(nav, Button{Text: textForward, Data: navData(token, page.Offset+page.PageSize)})
		}
		if len(nav) > 0 {
			rows = append(rows, nav)
		}
	}
	rows = append(rows, []Button{data(textCategories, ActionCategories)}, homeRow())
	return Payload{Text: strings.TrimRight(b.String(), "\n"), Rows: rows}
}

func mainMenuRows(links Links) [][]Button {
	return [][]Button{
		{{Text: "💬 Общий чат", URL: links.Chat}, {Text: "📢 Наш канал", URL: links.Channel}},
		{{Text: "📸 Фотомарафон", URL: links.Contest}, data("📰 Новости", ActionShowNews)},
		{data("🔍 Поиск по вершинам", ActionSearchPosts)},
		{{Text: "🌟 Официальный сайт", URL: links.Site}},
	}
}

// RenderWelcome: приветствие по /start без параметров.
func RenderWelcome(links Links) Payload {
	text := strings.Join([]string{
		"🏔️ <b>Добро пожаловать в бот сообщества \"Вершина России\"!</b>",
		"",
		"Этот бот поможет вам узнать больше о горах России через QR-коды и получить актуальные новости о восхождениях и экспедициях.",
		"",
		"🔍 <b>Возможности:</b>",
		"• Сканирование QR-кодов для получения информации о горах",
		"• Поиск новостей и статей",
		"• Доступ к сообществу любителей гор",
		"",
		"📱 <b>Команды:</b>",
		"/start - Главное меню",
		"/news - Последние новости",
		"/help - Подробная справка",
	}, "\n")
	return Payload{Text: text, Rows: mainMenuRows(links)}
}

// RenderMainMenu: главное меню по кнопке «домой».
func RenderMainMenu(links Links) Payload {
	return Payload{Text: "🏔️ Главное меню\nВыберите действие:", Rows: mainMenuRows(links)}
}

// RenderHelp: справка.
func RenderHelp(links Links) Payload {
	text := strings.Join([]string{
		"📖 <b>Справка по боту \"Вершины России\"</b>",
		"",
		"🔍 <b>Основные функции:</b>",
		"• Получение информации о горах через QR-коды",
		"• Поиск новостей и статей о восхождениях",
		"• Доступ к сообществу любителей гор",
		"",
		"🎯 <b>Как работать с QR-кодами:</b>",
		"1. Найдите QR-код рядом с информацией о горе",
		"2. Отсканируйте его камерой телефона",
		"3. Нажмите на ссылку - откроется этот бот",
		"4. Получите подробную информацию",
		"",
		"💬 <b>Сообщество:</b>",
		"• Общий чат: " + links.Chat,
		"• Канал новостей: " + links.Channel,
		"• Официальный сайт: " + links.Site,
	}, "\n")
	return Payload{Text: text, Rows: [][]Button{homeRow()}}
}

// RenderCategories: меню категорий. Токены уже зарегистрированы в состоянии диалога.
func RenderCategories(entries []CategoryEntry) Payload {
	if len(entries) == 0 {
		return Payload{Text: "📰 Новости не найдены.", Rows: [][]Button{homeRow()}}
	}
	rows := make([][]Button, 0, len(entries)+3)
	for _, e := range entries {
		rows = append(rows, []Button{{Text: fmt.Sprintf("📂 %s (%d)", e.Name, e.Count), Data: categoryData(e.Token)}})
	}
	rows = append(rows,
		[]Button{{Text: "📰 Все новости", Data: categoryData(category.AllToken)}},
		[]Button{data("🔍 Поиск новостей", ActionSearchNews)},
		homeRow(),
	)
	return Payload{Text: "📰 <b>Категории новостей:</b>\n\nВыберите интересующую категорию:", Rows: rows}
}

// RenderNewsSearch: результаты поиска новостей. Показываются первые пять.
func RenderNewsSearch(keyword string, items []domain.NewsItem) Payload {
	kw := html.EscapeString(keyword)
	if len(items) == 0 {
		return Payload{
			Text: fmt.Sprintf("🔍 По запросу '<b>%s</b>' новости не найдены.", kw),
			Rows: [][]Button{{data("📰 Все категории", ActionShowNews)}, homeRow()},
		}
	}
	lines := []string{fmt.Sprintf("<b>Результаты поиска по запросу '%s':</b>", kw), ""}
	for i, item := range items {
		if i == newsSearchShown {
			lines = append(lines, "", fmt.Sprintf("... и ещё %d результатов", len(items)-newsSearchShown))
			break
		}
		lines = append(lines, fmt.Sprintf("%d. <a href=\"%s\">%s</a>", i+1, html.EscapeString(item.Link), html.EscapeString(item.DisplayTitle())))
	}
	return Payload{
		Text: strings.Join(lines, "\n"),
		Rows: [][]Button{{data("🔍 Новый поиск", ActionSearchNews), data(textHome, ActionMainMenu)}},
	}
}

// RenderPostSearch: результаты поиска карточек с кнопкой на каждую.
func RenderPostSearch(keyword string, posts []domain.Post) Payload {
	if len(posts) == 0 {
		return Payload{
			Text: fmt.Sprintf("🔍 По запросу '<b>%s</b>' информация не найдена.", html.EscapeString(keyword)),
			Rows: [][]Button{{data("🔍 Новый поиск", ActionSearchPosts)}, homeRow()},
		}
	}
	lines := []string{fmt.Sprintf("🔍 <b>Найдено %d результатов:</b>", len(posts)), ""}
	rows := make([][]Button, 0, len(posts)+1)
	for i, p := range posts {
		lines = append(lines, fmt.Sprintf("%d. <b>%s</b>\n   %s", i+1, html.EscapeString(p.Title), html.EscapeString(shorten(p.Description, postDescriptionMax))))
		rows = append(rows, []Button{{Text: "📍 " + p.Title, Data: Callback{Action: ActionShowPost, Ref: p.QRID}.String()}})
	}
	rows = append(rows, homeRow())
	return Payload{Text: strings.Join(lines, "\n"), Rows: rows}
}

// RenderPostCard: подпись и кнопки карточки вершины.
func RenderPostCard(post domain.Post, links Links) Payload {
	text := fmt.Sprintf("<b>%s</b>\n\n%s", html.EscapeString(post.Title), html.EscapeString(post.Description))
	rows := [][]Button{
		{{Text: "💬 Обсудить в чате", URL: links.Chat}, {Text: "📢 Больше новостей", URL: links.Channel}},
	}
	if post.ContentURL != "" {
		rows = append(rows, []Button{{Text: "📖 Подробнее", URL: post.ContentURL}})
	}
	rows = append(rows,
		[]Button{
			{Text: "➡️ Следующая вершина", Data: Callback{Action: ActionNextPost, Ref: fmt.Sprint(post.ID)}.String()},
			data("🔍 Найти похожее", ActionSearchPosts),
		},
		homeRow(),
	)
	return Payload{Text: text, Rows: rows}
}

// RenderPostCardText: карточка без фото, если изображение не отправилось.
func RenderPostCardText(post domain.Post, links Links) Payload {
	p := RenderPostCard(post, links)
	if post.ImageURL != "" {
		p.Text += "\n\n🖼️ Изображение: " + html.EscapeString(post.ImageURL)
	}
	return p
}

// RenderQRWelcome: приветствие после сканирования QR-кода.
func RenderQRWelcome(post domain.Post, links Links) Payload {
	text := fmt.Sprintf("🏔️ <b>Добро пожаловать!</b>\n\nВы отсканировали QR-код!\n📍 Информация о: <b>%s</b>\n\nПрисоединяйтесь к нашему сообществу! 👇", html.EscapeString(post.Title))
	return Payload{Text: text, Rows: mainMenuRows(links)}
}

// RenderQRCaption: подпись к изображению QR-кода для администратора.
func RenderQRCaption(post domain.Post, link string) string {
	title := html.EscapeString(post.Title)
	return fmt.Sprintf("📱 <b>QR-код для: %s</b>\n\n🔗 Ссылка: <code>%s</code>\n\nПри сканировании пользователи попадут к информации о %s.", title, html.EscapeString(link), title)
}

// RenderStats: сводка журнала действий.
func RenderStats(days int, stats []domain.InteractionStat) Payload {
	if len(stats) == 0 {
		return Payload{Text: fmt.Sprintf("📊 За %d дн. действий не было.", days), Rows: [][]Button{homeRow()}}
	}
	lines := []string{fmt.Sprintf("📊 <b>Статистика за %d дн.:</b>", days), ""}
	for _, s := range stats {
		lines = append(lines, fmt.Sprintf("• %s: %d (пользователей: %d)", s.Type, s.Count, s.Users))
	}
	return Payload{Text: strings.Join(lines, "\n"), Rows: [][]Button{homeRow()}}
}

// RenderNotice: короткое сообщение с кнопкой «домой».
func RenderNotice(text string) Payload {
	return Payload{Text: text, Rows: [][]Button{homeRow()}}
}

// RenderCategoryNotFound: токен не найден в состоянии диалога.
func RenderCategoryNotFound() Payload {
	return Payload{
		Text: "К сожалению, категория не найдена. Возможно, данные устарели.",
		Rows: [][]Button{{data(textCategories, ActionCategories)}, homeRow()},
	}
}

// RenderSearchFailed: поиск не удался, можно сразу начать новый.
func RenderSearchFailed(awaiting domain.AwaitState) Payload {
	action := ActionSearchPosts
	if awaiting == domain.AwaitNewsKeyword {
		action = ActionSearchNews
	}
	return Payload{
		Text: msgTryLater,
		Rows: [][]Button{{data("🔍 Новый поиск", action)}, homeRow()},
	}
}

// RenderSearchPrompt: просьба ввести ключевое слово.
func RenderSearchPrompt(awaiting domain.AwaitState) Payload {
	text := "🔍 Введите ключевое слово для поиска по вершинам:"
	if awaiting == domain.AwaitNewsKeyword {
		text = "🔍 Введите ключевое слово для поиска новостей:"
	}
	return RenderNotice(text)
}

const (
	msgTryLater       = "⚠️ Не удалось загрузить данные. Попробуйте позже."
	msgQRNotFound     = "🚫 Информация по этому QR-коду не найдена."
	msgPostNotFound   = "Информация по этому посту не найдена."
	msgUnknownStart   = "👋 Привет! Вы перешли по ссылке в бота сообщества Вершина России!"
	msgFallback       = "🤖 Добро пожаловать на канал Вершина России! Используйте кнопки меню для навигации."
	msgUnknownCommand = "Неизвестная команда. Используйте /help"
	msgNoRights       = "❌ У вас нет прав для выполнения этой команды."
	msgQRUsage        = "Использование: /qr &lt;qr_id&gt;\nПример: /qr p0001"
	msgAddNewsUsage   = "❌ Использование: /addnews ссылка тип_новости [заголовок]"
	msgAddPostUsage   = "❌ Использование: /addpost qr_id | название | [описание] | [ссылка на фото]"
)

func htmlEscape(s string) string {
	return html.EscapeString(s)
}

func shorten(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
