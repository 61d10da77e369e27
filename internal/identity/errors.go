package identity

import (
	"errors"
	"fmt"
	"time"
)

// ErrUserNotFound — каталог не знает такого пользователя
var ErrUserNotFound = errors.New("identity: user not found")

// ThrottleError сигнализирует, что Identity-сервис попросил снизить темп.
// RetryAfter вычитывается из одноименного HTTP-заголовка.
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}
