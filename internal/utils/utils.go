package utils

import (
	"strings"
	"time"
)

// Formatos aceitos por ParseDate, na ordem de tentativa.
var dateLayouts = []string{
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2/1/2006", // DD/MM/YYYY
}

// ParseDate normaliza uma data recebida em texto para um dia de calendário (meia-noite UTC).
// Entrada vazia ou em formato desconhecido retorna ok == false, nunca erro.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return AsDate(t), true
		}
	}
	return time.Time{}, false
}

// ParseDatePtr é ParseDate para campos opcionais.
func ParseDatePtr(raw *string) *time.Time {
	if raw == nil {
		return nil
	}
	t, ok := ParseDate(*raw)
	if !ok {
		return nil
	}
	return &t
}

// AsDate descarta horário e fuso, mantendo o dia de calendário de t.
func AsDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today retorna o dia de calendário de now.
func Today(now time.Time) time.Time {
	return AsDate(now)
}

// FormatDate formata no padrão ISO (YYYY-MM-DD).
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// FormatDatePtr retorna nil para datas ausentes.
func FormatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatDate(*t)
	return &s
}
