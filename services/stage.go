package services

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"harmoni/models"
)

// forEachItem führt fn für jedes Element aus und isoliert Fehler pro Element:
// ein fehlgeschlagenes Item wird geloggt und übersprungen, nie bricht es den
// Batch ab. Gibt die Anzahl erfolgreich verarbeiteter Elemente zurück.
func forEachItem[T any](log *zap.Logger, stage string, items []T, itemID func(T) uint, fn func(T) error) int {
	done := 0
	for _, item := range items {
		if err := fn(item); err != nil {
			log.Warn("Stage-Item fehlgeschlagen, wird übersprungen",
				zap.String("stage", stage),
				zap.Uint("item_id", itemID(item)),
				zap.Error(err))
			continue
		}
		done++
	}
	return done
}

// truncateRunes kürzt s auf höchstens limit Runen.
// Byteweises Kürzen würde koreanische Titel mitten im Zeichen zerschneiden.
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// buildArticlesContext konkateniert Artikel zu einem Prompt-Kontext mit
// festem Zeichen-Budget pro Artikel, damit die Promptgröße planbar bleibt.
func buildArticlesContext(articles []models.Article, charLimit int) string {
	var b strings.Builder
	for i, art := range articles {
		fmt.Fprintf(&b, "News%d: %s\n%s\n\n", i+1, art.Title, truncateRunes(art.Body, charLimit))
	}
	return b.String()
}

// derefOr gibt *s zurück oder fallback, wenn s nil ist.
func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

// strPtr gibt einen Pointer auf s zurück.
func strPtr(s string) *string {
	return &s
}
