package order

// ValidationError означает, что заказ не прошёл локальную проверку и не был отправлен.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return "invalid order " + e.Field + ": " + e.Message
}

// UserMessage возвращает текст для пользователя.
func (e *ValidationError) UserMessage() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
