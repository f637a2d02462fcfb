package http

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tesouraria/internal/core"
)

// sanitizeInput removes control characters (except tab and newlines) and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(stripControl(s))
}

// stripControl removes control characters but keeps spaces, so a search
// for " a" still looks for the leading space.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// formatBytes renders a size the way the attachment list shows it.
func formatBytes(n int64) string {
	const unit = 1024
	switch {
	case n < unit:
		return fmt.Sprintf("%d B", n)
	case n < unit*unit:
		return strings.Replace(fmt.Sprintf("%.1f KB", float64(n)/unit), ".", ",", 1)
	default:
		return strings.Replace(fmt.Sprintf("%.1f MB", float64(n)/(unit*unit)), ".", ",", 1)
	}
}

// usagePercent is used for the attachment quota bar.
func usagePercent(used, quota int64) int {
	if quota <= 0 || used <= 0 {
		return 0
	}
	p := int(used * 100 / quota)
	if p > 100 {
		return 100
	}
	return p
}

var monthNames = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// longDate formats a date as "10 de março de 2024".
func longDate(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%02d de %s de %d", d.Day(), monthNames[d.Month()-1], d.Year())
}

// barWidth scales v against max as a percentage, keeping tiny non-zero
// values visible.
func barWidth(v, max decimal.Decimal) int {
	if !max.IsPositive() || !v.IsPositive() {
		return 0
	}
	w := int(v.Mul(decimal.NewFromInt(100)).Div(max).Round(0).IntPart())
	switch {
	case w < 2:
		return 2
	case w > 100:
		return 100
	}
	return w
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"brl":           core.FormatBRL,
		"date":          func(d core.Date) string { return d.Display() },
		"longDate":      longDate,
		"datetime":      func(t time.Time) string { return t.Local().Format("02/01/2006 15:04") },
		"categoryLabel": core.CategoryLabel,
		"isIncome":      func(t core.TxType) bool { return t == core.Income },
		"isNegative":    func(d decimal.Decimal) bool { return d.IsNegative() },
		"bytes":         formatBytes,
		"percent":       usagePercent,
		"barWidth":      barWidth,
		"plural": func(n int, one, many string) string {
			if n == 1 {
				return one
			}
			return many
		},
	}
}
