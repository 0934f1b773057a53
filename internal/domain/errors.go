package domain

import "errors"

var (
	// ErrNotFound возвращается для неизвестных токенов, категорий и записей.
	ErrNotFound = errors.New("not found")
	// ErrTokenCollision возвращается, если токен уже занят другой категорией.
	ErrTokenCollision = errors.New("category token collision")
	// ErrCacheMiss возвращается кэшем, если ключа нет.
	ErrCacheMiss = errors.New("cache miss")
	// ErrRejectedInteraction возвращается, если запись журнала не может быть сохранена никогда
	// (битый идентификатор, нарушение ограничений). Повторять такую запись бессмысленно.
	ErrRejectedInteraction = errors.New("interaction rejected")
)
