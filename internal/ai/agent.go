// Package ai is the admin assistant: a Gemini chat session that can read the
// inventory and reports and change prices through a fixed set of tools.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-pos-backend/internal/config"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// maxToolRounds bounds how many times one question may bounce through tools.
const maxToolRounds = 6

const systemPrompt = `Today is %s. You are an Agentic POS Assistant for a retail store. Prices are in Naira.

RULES:
1. UPDATE: If a user asks to update a product by NAME (e.g. "Update Banana price"), you must NOT ask them for the ID. Instead:
   - Call 'check_inventory' to find the ID.
   - Call 'update_product_price' using that ID.
2. READ: If a user asks for PRICE, COST, STOCK, or DETAILS of a product, call 'check_inventory' and answer from the list.
3. STOCK: For "what is running out" questions, use 'low_stock'.
4. SALES: For sales or revenue over dates use 'get_sales_report'; for today use 'get_today_stats'.
5. Never invent numbers that no tool returned.`

type Agent struct {
	client *genai.Client
	model  string
	tools  *Toolbox
	log    *zap.Logger
	now    func() time.Time
}

func NewAgent(ctx context.Context, cfg config.AIConfig, tools *Toolbox, log *zap.Logger) (*Agent, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Agent{client: client, model: cfg.Model, tools: tools, log: log.Named("ai"), now: time.Now}, nil
}

func (a *Agent) Close() error { return a.client.Close() }

// Ask runs one question to completion, executing every tool call the model
// makes until it answers in text.
func (a *Agent) Ask(ctx context.Context, message string) (string, error) {
	model := a.client.GenerativeModel(a.model)
	model.SystemInstruction = genai.NewUserContent(genai.Text(fmt.Sprintf(systemPrompt, a.now().Format("2006-01-02"))))
	model.Tools = []*genai.Tool{{FunctionDeclarations: a.tools.Declarations()}}

	session := model.StartChat()
	resp, err := session.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}

	for round := 0; round < maxToolRounds; round++ {
		calls := functionCalls(resp)
		if len(calls) == 0 {
			return replyText(resp), nil
		}

		parts := make([]genai.Part, 0, len(calls))
		for _, call := range calls {
			result, err := a.tools.Call(ctx, call.Name, call.Args)
			if err != nil {
				a.log.Warn("tool failed", zap.String("tool", call.Name), zap.Error(err))
				result = `{"error":"` + strings.ReplaceAll(err.Error(), `"`, `'`) + `"}`
			}
			parts = append(parts, genai.FunctionResponse{
				Name:     call.Name,
				Response: map[string]any{"result": result},
			})
		}
		if resp, err = session.SendMessage(ctx, parts...); err != nil {
			return "", fmt.Errorf("send tool results: %w", err)
		}
	}
	return "", fmt.Errorf("assistant did not answer after %d tool rounds", maxToolRounds)
}

func functionCalls(resp *genai.GenerateContentResponse) []genai.FunctionCall {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	return resp.Candidates[0].FunctionCalls()
}

func replyText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "I completed the action."
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if b.Len() == 0 {
		return "I completed the action."
	}
	return b.String()
}
