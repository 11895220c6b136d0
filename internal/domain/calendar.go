package domain

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

var monthNamesES = [12]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// MonthNamesES returns the Spanish month names in calendar order.
func MonthNamesES() []string {
	names := make([]string, len(monthNamesES))
	copy(names, monthNamesES[:])
	return names
}

// MonthNameES returns the Spanish name of m, or "" for an invalid month.
func MonthNameES(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthNamesES[m-1]
}

// FormatYearMonth renders d as "YYYY-MM".
func FormatYearMonth(d civil.Date) string {
	return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
}

// AddMonths shifts d by n calendar months, clamping the day to the length of the
// target month (Mar 31 minus one month is Feb 28/29, not Mar 3).
func AddMonths(d civil.Date, n int) civil.Date {
	total := d.Year*12 + int(d.Month-1) + n
	year, month := total/12, time.Month(total%12+1)
	day := d.Day
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return civil.Date{Year: year, Month: month, Day: day}
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// LastDayOfMonth returns the last calendar day of d's month.
func LastDayOfMonth(d civil.Date) civil.Date {
	return civil.Date{Year: d.Year, Month: d.Month, Day: DaysIn(d.Year, d.Month)}
}
