package dispatch

import "errors"

var (
	// ErrCandidateQueryFailed - поиск волонтеров в хранилище завершился ошибкой или по таймауту.
	// Единственная ошибка, прерывающая рассылку до отправки уведомлений.
	ErrCandidateQueryFailed = errors.New("candidate query failed")

	// ErrRecipientUnreachable - подключение живого получателя пропало между классификацией и отправкой
	ErrRecipientUnreachable = errors.New("recipient unreachable")

	// ErrDeliveryFailed - почтовый канал не принял письмо
	ErrDeliveryFailed = errors.New("delivery failed")

	// ErrDispatchLogNotSaved - журнал уведомлений не удалось сохранить
	ErrDispatchLogNotSaved = errors.New("dispatch log not saved")
)
