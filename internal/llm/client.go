package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Completion is one answer from the language model.
type Completion struct {
	Response   string  // free-text explanation
	SQL        string  // extracted SQL statement, may be empty
	Confidence float64 // 0..1
}

// CompletionClient turns a prompt plus database context into SQL. Two
// implementations exist: the real HTTP client and a null object used when
// the capability is disabled. The choice is made once at startup.
type CompletionClient interface {
	Enabled() bool
	GenerateSQL(ctx context.Context, prompt, schemaContext string) (*Completion, error)
}

// DisabledClient is the null-object implementation selected when no API key
// is configured.
type DisabledClient struct{}

func (DisabledClient) Enabled() bool { return false }

func (DisabledClient) GenerateSQL(context.Context, string, string) (*Completion, error) {
	return nil, errors.New("LLM service is not configured")
}

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

func NewOpenAIClient(apiKey, model, baseURL string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *OpenAIClient) Enabled() bool { return true }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

const systemPrompt = `You are a SQL assistant. Given a database schema and a question,
answer with a short explanation and a single SQL statement inside a ` + "```sql" + ` fence.
Only reference tables and columns present in the schema.`

func (c *OpenAIClient) GenerateSQL(ctx context.Context, prompt, schemaContext string) (*Completion, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Database context:\n" + schemaContext + "\n\nQuestion: " + prompt},
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("completion API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("completion API returned no choices")
	}

	content := parsed.Choices[0].Message.Content
	return &Completion{
		Response:   content,
		SQL:        ExtractSQL(content),
		Confidence: 0.85,
	}, nil
}

var sqlFence = regexp.MustCompile("(?s)```sql\\s*(.*?)```")

// ExtractSQL pulls the first fenced SQL block out of a model response.
// Returns "" when the response contains no statement.
func ExtractSQL(content string) string {
	if m := sqlFence.FindStringSubmatch(content); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	// Fall back to a bare SELECT if the model skipped the fence.
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToUpper(trimmed), "SELECT ") {
			return strings.TrimSuffix(trimmed, ";")
		}
	}
	return ""
}
