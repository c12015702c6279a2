// Package clock предоставляет инжектируемый источник времени,
// чтобы временные условия планировщика были детерминированно тестируемы.
package clock

import "time"

// Clock - источник текущего времени.
type Clock interface {
	Now() time.Time
}

// System возвращает реальное системное время.
type System struct{}

func (System) Now() time.Time {
	return time.Now()
}
