package questions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/one-of-fifteen/backend/internal/engine"
)

// Generator fetches questions from an external generation API. The
// session retries failed fetches, so Next just reports errors.
type Generator struct {
	apiURL string
	apiKey string
	client *http.Client
}

func NewGenerator(apiURL, apiKey string) *Generator {
	return &Generator{
		apiURL: apiURL,
		apiKey: apiKey,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

type generateRequest struct {
	Round string `json:"round"`
}

type generateResponse struct {
	Text   string `json:"text"`
	Answer string `json:"answer"`
}

func (g *Generator) Next(ctx context.Context, round string) (engine.Question, error) {
	body, err := json.Marshal(generateRequest{Round: round})
	if err != nil {
		return engine.Question{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewReader(body))
	if err != nil {
		return engine.Question{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return engine.Question{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return engine.Question{}, fmt.Errorf("question api returned %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return engine.Question{}, err
	}
	if out.Text == "" || out.Answer == "" {
		return engine.Question{}, fmt.Errorf("question api returned an empty question")
	}
	return engine.Question{Text: out.Text, Answer: out.Answer}, nil
}
