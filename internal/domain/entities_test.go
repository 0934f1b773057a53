package domain

import "testing"

func TestPageNavigation(t *testing.T) {
	items := make([]NewsItem, 5)
	cases := []struct {
		name      string
		page      Page
		prev      bool
		next      bool
		remaining int
	}{
		{name: "первая страница", page: Page{Items: items, Total: 7, Offset: 0, PageSize: 5}, next: true, remaining: 2},
		{name: "последняя страница", page: Page{Items: items[:2], Total: 7, Offset: 5, PageSize: 5}, prev: true},
		{name: "единственная страница", page: Page{Items: items[:3], Total: 3, PageSize: 5}},
		{name: "за пределами", page: Page{Total: 3, Offset: 5, PageSize: 5}, prev: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.page.HasPrevious(); got != tc.prev {
				t.Fatalf("HasPrevious: ожидали %v, получили %v", tc.prev, got)
			}
			if got := tc.page.HasNext(); got != tc.next {
				t.Fatalf("HasNext: ожидали %v, получили %v", tc.next, got)
			}
			if got := tc.page.Remaining(); got != tc.remaining {
				t.Fatalf("Remaining: ожидали %d, получили %d", tc.remaining, got)
			}
		})
	}
}

func TestDisplayTitleFallback(t *testing.T) {
	if got := (NewsItem{ID: 12}).DisplayTitle(); got != "Новость #12" {
		t.Fatalf("неожиданный заголовок: %q", got)
	}
	if got := (NewsItem{ID: 12, Title: "Эльбрус"}).DisplayTitle(); got != "Эльбрус" {
		t.Fatalf("неожиданный заголовок: %q", got)
	}
}

func TestConversationStateIdle(t *testing.T) {
	st := NewConversationState()
	if !st.Idle() {
		t.Fatalf("новое состояние должно быть пустым")
	}
	st.Awaiting = AwaitNewsKeyword
	if st.Idle() {
		t.Fatalf("состояние ожидания не должно считаться пустым")
	}
}
