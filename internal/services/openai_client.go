package services

import (
  "bytes"
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "io"
  "math/rand"
  "net"
  "net/http"
  "os"
  "strconv"
  "strings"
  "time"

  "github.com/rowanvale/compass-backend/internal/catalog"
  "github.com/rowanvale/compass-backend/internal/logger"
)

type openAIGenerator struct {
  log        *logger.Logger
  baseURL    string
  apiKey     string
  model      string
  httpClient *http.Client

  maxRetries int
}

func NewOpenAIGenerator(log *logger.Logger) (ContentGenerator, error) {
  apiKey := os.Getenv("OPENAI_API_KEY")
  if apiKey == "" {
    return nil, fmt.Errorf("missing OPENAI_API_KEY")
  }

  baseURL := os.Getenv("OPENAI_BASE_URL")
  if baseURL == "" {
    baseURL = "https://api.openai.com"
  }

  model := os.Getenv("OPENAI_MODEL")
  if model == "" {
    model = "gpt-5.2"
  }

  timeoutSec := 120
  if v := os.Getenv("OPENAI_TIMEOUT_SECONDS"); v != "" {
    if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
      timeoutSec = parsed
    }
  }

  maxRetries := 4
  if v := os.Getenv("OPENAI_MAX_RETRIES"); v != "" {
    if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
      maxRetries = parsed
    }
  }

  return &openAIGenerator{
    log:        log.With("service", "OpenAIGenerator"),
    baseURL:    baseURL,
    apiKey:     apiKey,
    model:      model,
    httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
    maxRetries: maxRetries,
  }, nil
}

type openAIHTTPError struct {
  StatusCode int
  Body       string
}

func (e *openAIHTTPError) Error() string {
  return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func isRetryableHTTP(code int) bool {
  if code == 408 || code == 429 {
    return true
  }
  if code >= 500 && code <= 599 {
    return true
  }
  return false
}

func isRetryableErr(err error) bool {
  if err == nil {
    return false
  }
  if errors.Is(err, context.DeadlineExceeded) {
    return true
  }
  var netErr net.Error
  if errors.As(err, &netErr) {
    if netErr.Timeout() {
      return true
    }
  }
  var httpErr *openAIHTTPError
  if errors.As(err, &httpErr) {
    return isRetryableHTTP(httpErr.StatusCode)
  }
  return false
}

func (g *openAIGenerator) GenerateArtifact(ctx context.Context, kind catalog.Kind, input GenerationInput) (string, error) {
  system := "You are a coaching assistant producing one structured plan artifact. " +
    "Respond with a single JSON object and nothing else. " +
    "Required top-level fields: " + strings.Join(kind.RequiredFields, ", ") + "."
  user := fmt.Sprintf("%s\n\nClient: %s %s (%s).", kind.Prompt, input.FirstName, input.LastName, input.Email)

  payload := map[string]any{
    "model": g.model,
    "messages": []map[string]string{
      {"role": "system", "content": system},
      {"role": "user", "content": user},
    },
    "response_format": map[string]string{"type": "json_object"},
  }

  var lastErr error
  for attempt := 0; attempt <= g.maxRetries; attempt++ {
    if attempt > 0 {
      // jittered exponential backoff between attempts
      backoff := time.Duration(1<<uint(attempt-1)) * time.Second
      backoff += time.Duration(rand.Intn(500)) * time.Millisecond
      select {
      case <-ctx.Done():
        return "", ctx.Err()
      case <-time.After(backoff):
      }
    }

    content, err := g.call(ctx, payload)
    if err == nil {
      if vErr := catalog.ValidateContent(kind, content); vErr != nil {
        lastErr = vErr
        g.log.Warn("Generated artifact failed shape validation", "kind", kind.Key, "attempt", attempt, "error", vErr)
        continue
      }
      return content, nil
    }
    lastErr = err
    if ctx.Err() != nil {
      return "", ctx.Err()
    }
    if !isRetryableErr(err) {
      return "", err
    }
    g.log.Warn("OpenAI call failed, retrying", "kind", kind.Key, "attempt", attempt, "error", err)
  }
  return "", fmt.Errorf("generate artifact %s: %w", kind.Key, lastErr)
}

func (g *openAIGenerator) call(ctx context.Context, payload map[string]any) (string, error) {
  body, err := json.Marshal(payload)
  if err != nil {
    return "", err
  }
  req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/chat/completions", bytes.NewReader(body))
  if err != nil {
    return "", err
  }
  req.Header.Set("Authorization", "Bearer "+g.apiKey)
  req.Header.Set("Content-Type", "application/json")

  resp, err := g.httpClient.Do(req)
  if err != nil {
    return "", err
  }
  defer resp.Body.Close()

  raw, err := io.ReadAll(resp.Body)
  if err != nil {
    return "", err
  }
  if resp.StatusCode < 200 || resp.StatusCode > 299 {
    return "", &openAIHTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
  }

  var out struct {
    Choices []struct {
      Message struct {
        Content string `json:"content"`
      } `json:"message"`
    } `json:"choices"`
  }
  if err := json.Unmarshal(raw, &out); err != nil {
    return "", fmt.Errorf("decode openai response: %w", err)
  }
  if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
    return "", fmt.Errorf("openai returned no content")
  }
  return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
