package bot

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"peaks-bot/internal/domain"
)

func pageOf(total, offset, size int) domain.Page {
	page := domain.Page{Total: total, Offset: offset, PageSize: size}
	for i := offset; i < total && i < offset+size; i++ {
		id := int64(total - i)
		page.Items = append(page.Items, domain.NewsItem{ID: id, Link: fmt.Sprintf("https://t.me/TopRussiaBrand/%d", id), Title: fmt.Sprintf("Новость #%d", id)})
	}
	return page
}

func callbackData(p Payload) []string {
	var out []string
	for _, row := range p.Rows {
		for _, b := range row {
			if b.Data != "" {
				out = append(out, b.Data)
			}
		}
	}
	return out
}

func TestRenderPageFirstOfTwo(t *testing.T) {
	p := RenderPage("Природа", "0123456789ab", pageOf(7, 0, 5))
	if !strings.Contains(p.Text, "... и ещё 2 новостей") {
		t.Fatalf("ожидали трейлер, получили:\n%s", p.Text)
	}
	if !strings.Contains(p.Text, "1. <a href=") || !strings.Contains(p.Text, "5. <a href=") {
		t.Fatalf("ожидали нумерацию с 1, получили:\n%s", p.Text)
	}
	want := []string{"news_nav:0123456789ab:5", "show_categories_menu", "main_menu"}
	if got := callbackData(p); !reflect.DeepEqual(got, want) {
		t.Fatalf("ожидали кнопки %v, получили %v", want, got)
	}
}

func TestRenderPageLast(t *testing.T) {
	p := RenderPage("Природа", "0123456789ab", pageOf(7, 5, 5))
	if strings.Contains(p.Text, "и ещё") {
		t.Fatalf("на последней странице трейлера быть не должно:\n%s", p.Text)
	}
	if !strings.Contains(p.Text, "6. <a href=") || !strings.Contains(p.Text, "7. <a href=") {
		t.Fatalf("нумерация должна продолжаться, получили:\n%s", p.Text)
	}
	want := []string{"news_nav:0123456789ab:0", "show_categories_menu", "main_menu"}
	if got := callbackData(p); !reflect.DeepEqual(got, want) {
		t.Fatalf("ожидали кнопки %v, получили %v", want, got)
	}
}

func TestRenderPageMiddleHasBothOnOneRow(t *testing.T) {
	p := RenderPage("Природа", "0123456789ab", pageOf(12, 5, 5))
	if len(p.Rows[0]) != 2 || p.Rows[0][0].Text != textBack || p.Rows[0][1].Text != textForward {
		t.Fatalf("ожидали «назад» и «вперёд» в одной строке, получили %+v", p.Rows[0])
	}
	if len(p.Rows) != 3 {
		t.Fatalf("ожидали 3 строки кнопок, получили %d", len(p.Rows))
	}
}

func TestRenderPageEmptyCategory(t *testing.T) {
	p := RenderPage("Пусто", "0123456789ab", domain.Page{PageSize: 5})
	if !strings.Contains(p.Text, "В этой категории пока нет новостей.") {
		t.Fatalf("неожиданный текст:\n%s", p.Text)
	}
	want := []string{"show_categories_menu", "main_menu"}
	if got := callbackData(p); !reflect.DeepEqual(got, want) {
		t.Fatalf("ожидали только меню, получили %v", got)
	}
}

func TestRenderPageIdempotent(t *testing.T) {
	page := pageOf(9, 5, 5)
	a := RenderPage("Природа", "0123456789ab", page)
	b := RenderPage("Природа", "0123456789ab", page)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("повторный рендер отличается")
	}
}

func TestRenderPageEscapesHTML(t *testing.T) {
	page := domain.Page{Total: 1, PageSize: 5, Items: []domain.NewsItem{{ID: 1, Link: "https://t.me/x?a=1&b=2", Title: "<b>Казбек</b> & Ко"}}}
	p := RenderPage("A&B", "all", page)
	if strings.Contains(p.Text, "<b>Казбек</b>") || !strings.Contains(p.Text, "&lt;b&gt;Казбек&lt;/b&gt; &amp; Ко") {
		t.Fatalf("заголовок не экранирован:\n%s", p.Text)
	}
	if !strings.Contains(p.Text, "📰 <b>A&amp;B</b>") {
		t.Fatalf("категория не экранирована:\n%s", p.Text)
	}
}

func TestRenderPageAllCategoriesAndFallbackTitle(t *testing.T) {
	page := domain.Page{Total: 1, PageSize: 5, Items: []domain.NewsItem{{ID: 17, Link: "l"}}}
	p := RenderPage("", "all", page)
	if !strings.Contains(p.Text, "📰 <b>Все новости</b>") || !strings.Contains(p.Text, "Новость #17") {
		t.Fatalf("неожиданный текст:\n%s", p.Text)
	}
}

func TestRenderNewsSearchTrailer(t *testing.T) {
	items := pageOf(8, 0, 8).Items
	p := RenderNewsSearch("гора", items)
	if !strings.Contains(p.Text, "... и ещё 3 результатов") || strings.Contains(p.Text, "6. ") {
		t.Fatalf("неожиданный текст:\n%s", p.Text)
	}
	empty := RenderNewsSearch("<x>", nil)
	if !strings.Contains(empty.Text, "&lt;x&gt;") {
		t.Fatalf("ключевое слово не экранировано: %s", empty.Text)
	}
}

func TestEveryScreenHasHome(t *testing.T) {
	links := Links{Chat: "https://t.me/chat", Channel: "https://t.me/channel", Site: "https://example.org", Contest: "https://t.me/channel/1"}
	screens := map[string]Payload{
		"categories":   RenderCategories(nil),
		"not_found":    RenderCategoryNotFound(),
		"notice":       RenderNotice(msgTryLater),
		"post_search":  RenderPostSearch("x", nil),
		"news_search":  RenderNewsSearch("x", nil),
		"post_card":    RenderPostCard(domain.Post{ID: 1, Title: "Эльбрус"}, links),
		"help":         RenderHelp(links),
		"stats":        RenderStats(7, nil),
		"search_input": RenderSearchPrompt(domain.AwaitNewsKeyword),
	}
	for name, p := range screens {
		found := false
		for _, data := range callbackData(p) {
			if data == string(ActionMainMenu) {
				found = true
			}
		}
		if !found {
			t.Fatalf("%s: нет кнопки «домой»", name)
		}
	}
}
