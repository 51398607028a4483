package tg

import "testing"

func TestUserDisplayName(t *testing.T) {
	tests := []struct {
		user User
		want string
	}{
		{User{FirstName: "Ada", LastName: "Lovelace"}, "Ada Lovelace"},
		{User{FirstName: "Ada"}, "Ada"},
		{User{LastName: "Lovelace"}, "Lovelace"},
		{User{Username: "ada"}, "ada"},
		{User{}, ""},
	}
	for _, tt := range tests {
		if got := tt.user.DisplayName(); got != tt.want {
			t.Errorf("DisplayName(%+v) = %q, want %q", tt.user, got, tt.want)
		}
	}
}

func TestMessagePreview(t *testing.T) {
	if got := (Message{Text: "hi"}).Preview(); got != "hi" {
		t.Errorf("got %q, want hi", got)
	}
	if got := (Message{Media: MediaPhoto}).Preview(); got != "[Photo]" {
		t.Errorf("got %q, want [Photo]", got)
	}
	if got := (Message{}).Preview(); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestChatClassification(t *testing.T) {
	channel := Chat{Type: ChatSupergroup, IsChannel: true}
	if !channel.IsChannelChat() || !channel.IsGroup() {
		t.Error("supergroup channel should be a channel and a group")
	}
	if (Chat{Type: ChatSupergroup}).IsChannelChat() {
		t.Error("plain supergroup is not a channel")
	}
	if !(Chat{Type: ChatPrivate}).IsDirect() {
		t.Error("private chat should be direct")
	}
	if (Chat{Type: ChatSecret}).IsGroup() {
		t.Error("secret chat is not a group")
	}
}

func TestMainPosition(t *testing.T) {
	ps := []Position{{List: ListArchive, Order: 5}, {List: ListMain, Order: 9}}
	p, ok := MainPosition(ps)
	if !ok || p.Order != 9 {
		t.Errorf("MainPosition = %+v, %v; want order 9", p, ok)
	}
	if _, ok := MainPosition([]Position{{List: ListFolder, Order: 1}}); ok {
		t.Error("MainPosition should not match folder lists")
	}
}
