// Package validation содержит проверки входных данных сервиса учёта пекарни.
package validation

import "strings"

// TrimName возвращает имя клиента без окружающих пробелов.
func TrimName(name string) string {
	return strings.TrimSpace(name)
}

// IsValidName сообщает, является ли имя клиента непустым после обрезки пробелов.
func IsValidName(name string) bool {
	return TrimName(name) != ""
}

// IsValidReportDate сообщает, имеет ли дата отчёта формат YYYY-MM-DD.
func IsValidReportDate(date string) bool {
	if len(date) != len("2006-01-02") {
		return false
	}
	for i, r := range date {
		if i == 4 || i == 7 {
			if r != '-' {
				return false
			}
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
