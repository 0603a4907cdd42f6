package providers

import (
	"context"
	"encoding/json"
)

// Schema beschreibt den Output-Vertrag eines Generierungs-Aufrufs:
// Name plus JSON-Schema mit Pflichtfeldern und additionalProperties=false.
type Schema struct {
	Name       string
	Definition json.RawMessage
}

// TextGenerator ist das Interface für den externen Text-Generierungs-Provider.
// Die Antwort muss dem übergebenen Schema entsprechen; Validierung ist die
// Vertragsgrenze, nicht String-Matching.
type TextGenerator interface {
	// GenerateJSON schickt System- und User-Prompt ab und gibt das
	// schemakonforme JSON-Objekt der Antwort zurück.
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, schema Schema) (json.RawMessage, error)

	// Ping prüft die Vorbedingungen des Providers (Credentials konfiguriert).
	// Wird einmal vor einem Pipeline-Lauf aufgerufen, nicht pro Item.
	Ping(ctx context.Context) error
}

// Embedder ist das Interface für den externen Embedding-Provider.
// Die Vektordimension ist providerfest und für Aufrufer opak.
type Embedder interface {
	// Embed liefert pro Eingabetext einen Vektor fester Länge.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Ping prüft die Vorbedingungen des Providers.
	Ping(ctx context.Context) error
}
