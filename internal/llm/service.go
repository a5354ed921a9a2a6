package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tenantql/internal/core"
	"tenantql/internal/logger"
	"tenantql/internal/service"
)

// Result is the user-facing outcome of a natural-language query.
type Result struct {
	Response        string  `json:"response"`
	SQLGenerated    string  `json:"sql_generated,omitempty"`
	Confidence      float64 `json:"confidence_score,omitempty"`
	ExecutionTimeMs int64   `json:"execution_time_ms"`
}

// Service answers natural-language questions about a tenant's database.
// All database context flows through the executor's sanctioned paths, so
// the access gate applies before any schema or sample data reaches a prompt.
type Service struct {
	client   CompletionClient
	executor *service.TenantQueryExecutor
	logRepo  core.QueryLogRepository
	sampleN  int
}

func NewService(client CompletionClient, executor *service.TenantQueryExecutor, logRepo core.QueryLogRepository, sampleN int) *Service {
	if sampleN <= 0 {
		sampleN = 5
	}
	return &Service{client: client, executor: executor, logRepo: logRepo, sampleN: sampleN}
}

func (s *Service) Process(ctx context.Context, userID, connectionID, prompt string) *Result {
	start := time.Now()

	if !s.client.Enabled() {
		res := &Result{
			Response:        "The AI service is not currently available. Configure an API key to use natural-language queries.",
			ExecutionTimeMs: time.Since(start).Milliseconds(),
		}
		s.logAttempt(ctx, userID, connectionID, prompt, "", "", nil, res.ExecutionTimeMs, "LLM service not configured")
		return res
	}

	schemaContext, err := s.buildContext(ctx, userID, connectionID)
	if err != nil {
		res := &Result{
			Response:        fmt.Sprintf("Could not read the database context: %v", err),
			ExecutionTimeMs: time.Since(start).Milliseconds(),
		}
		s.logAttempt(ctx, userID, connectionID, prompt, "", "", nil, res.ExecutionTimeMs, err.Error())
		return res
	}

	completion, err := s.client.GenerateSQL(ctx, prompt, schemaContext)
	if err != nil {
		res := &Result{
			Response:        fmt.Sprintf("I encountered an error: %v", err),
			ExecutionTimeMs: time.Since(start).Milliseconds(),
		}
		s.logAttempt(ctx, userID, connectionID, prompt, "", "", nil, res.ExecutionTimeMs, err.Error())
		return res
	}

	elapsed := time.Since(start).Milliseconds()
	confidence := int(completion.Confidence * 100)
	s.logAttempt(ctx, userID, connectionID, prompt, completion.SQL, completion.Response, &confidence, elapsed, "")

	return &Result{
		Response:        completion.Response,
		SQLGenerated:    completion.SQL,
		Confidence:      completion.Confidence,
		ExecutionTimeMs: elapsed,
	}
}

// buildContext renders the introspected schema plus a few sample rows per
// table into prompt text. Table names fed to SampleData come straight from
// the schema just fetched.
func (s *Service) buildContext(ctx context.Context, userID, connectionID string) (string, error) {
	schema, err := s.executor.DetectSchema(ctx, userID, connectionID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Tables:\n")
	for _, table := range schema.Tables {
		b.WriteString("  " + table.Name + " (")
		for i, col := range table.Columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(col.Name + " " + col.Type)
			if col.Nullable {
				b.WriteString(" NULL")
			}
		}
		b.WriteString(")\n")
	}

	// Sample data for the first few tables keeps the prompt bounded.
	const maxSampledTables = 3
	for i, table := range schema.Tables {
		if i >= maxSampledTables {
			break
		}
		sample := s.executor.SampleData(ctx, userID, connectionID, table.Name, s.sampleN)
		if !sample.Success || len(sample.Data) == 0 {
			continue
		}
		raw, err := json.Marshal(sample.Data)
		if err != nil {
			continue
		}
		b.WriteString(fmt.Sprintf("Sample rows from %s: %s\n", table.Name, raw))
	}

	return b.String(), nil
}

func (s *Service) logAttempt(ctx context.Context, userID, connectionID, prompt, sqlText, response string, confidence *int, elapsed int64, errMsg string) {
	entry := &core.QueryLogEntry{
		ID:              uuid.NewString(),
		UserID:          userID,
		ConnectionID:    connectionID,
		QueryKind:       core.QueryKindLLM,
		Prompt:          &prompt,
		ExecutionTimeMs: elapsed,
		Status:          core.StatusSuccess,
		CreatedAt:       time.Now().UTC(),
	}
	if sqlText != "" {
		entry.SQLText = &sqlText
	}
	if response != "" {
		entry.LLMResponse = &response
	}
	entry.Confidence = confidence
	if errMsg != "" {
		entry.Status = core.StatusError
		entry.ErrorMessage = &errMsg
	}

	if err := s.logRepo.Create(ctx, entry); err != nil {
		logger.L.Warnw("failed to write llm log entry", "user_id", userID, "err", err)
	}
}
