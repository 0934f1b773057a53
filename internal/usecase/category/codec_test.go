package category

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"peaks-bot/internal/domain"
)

func newCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(12, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestEncodeDeterministic(t *testing.T) {
	c := newCodec(t)
	a := c.Encode("Экспедиции")
	b := c.Encode("Экспедиции")
	require.Equal(t, a, b)
	require.Len(t, a, 12)
	require.NotEqual(t, a, c.Encode("Соревнования"))
	require.Regexp(t, "^[0-9a-f]+$", a)
}

func TestRegisterThenResolve(t *testing.T) {
	c := newCodec(t)
	state := domain.NewConversationState()
	token := c.Encode("Новости сообщества")
	require.NoError(t, c.Register(&state, token, "Новости сообщества"))
	require.NoError(t, c.Register(&state, token, "Новости сообщества"))

	name, err := c.Resolve(state, token)
	require.NoError(t, err)
	require.Equal(t, "Новости сообщества", name)
}

func TestResolveUnknownToken(t *testing.T) {
	c := newCodec(t)
	_, err := c.Resolve(domain.NewConversationState(), "deadbeef0000")
	require.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestResolveAllToken(t *testing.T) {
	c := newCodec(t)
	name, err := c.Resolve(domain.ConversationState{}, AllToken)
	require.NoError(t, err)
	require.Empty(t, name)
}

func TestRegisterCollision(t *testing.T) {
	c := newCodec(t)
	state := domain.NewConversationState()
	require.NoError(t, c.Register(&state, "abc", "Первая"))
	err := c.Register(&state, "abc", "Вторая")
	require.ErrorIs(t, err, domain.ErrTokenCollision)
	require.Equal(t, "Первая", state.Categories["abc"])
}

func TestAssignRegeneratesOnCollision(t *testing.T) {
	c := newCodec(t)
	state := domain.NewConversationState()
	// токен «Вторая» заранее занят другой категорией
	state.Categories[c.Encode("Вторая")] = "Первая"

	token, err := c.Assign(&state, "Вторая")
	require.NoError(t, err)
	require.NotEqual(t, c.Encode("Вторая"), token)

	name, err := c.Resolve(state, token)
	require.NoError(t, err)
	require.Equal(t, "Вторая", name)
}

func TestAssignReusesToken(t *testing.T) {
	c := newCodec(t)
	state := domain.NewConversationState()
	first, err := c.Assign(&state, "Походы")
	require.NoError(t, err)
	second, err := c.Assign(&state, "Походы")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, state.Categories, 1)
}

func TestNewCodecPayloadBudget(t *testing.T) {
	for _, n := range []int{8, 12, 32} {
		require.LessOrEqual(t, MaxNavPayloadLen(n), MaxPayloadBytes)
		_, err := NewCodec(n, zerolog.Nop())
		require.NoError(t, err)
	}
	_, err := NewCodec(4, zerolog.Nop())
	require.ErrorIs(t, err, ErrTokenLength)
	_, err = NewCodec(64, zerolog.Nop())
	require.ErrorIs(t, err, ErrTokenLength)
}
