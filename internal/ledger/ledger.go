// Package ledger содержит правила ведения баланса клиента.
//
// Ранее эти правила жили в триггерах БД; здесь они вынесены в чистые
// функции, чтобы их можно было тестировать без хранилища. Репозиторий
// применяет их внутри транзакций.
package ledger

// BalanceAfterOrder возвращает баланс клиента после добавления заказа
// на указанную сумму.
func BalanceAfterOrder(balanceCents, totalPriceCents int64) int64 {
	return balanceCents + totalPriceCents
}

// BalanceAfterPayment возвращает баланс клиента после платежа
// на указанную сумму.
func BalanceAfterPayment(balanceCents, amountCents int64) int64 {
	return balanceCents - amountCents
}

// Settles сообщает, погашает ли указанный баланс все ожидающие заказы клиента.
// Полная или избыточная оплата закрывает все заказы разом; частичного
// погашения по отдельным заказам нет.
func Settles(balanceCents int64) bool {
	return balanceCents <= 0
}
