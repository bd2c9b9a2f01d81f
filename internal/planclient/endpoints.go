package planclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/BTreeMap/BioFlow/internal/models"
	"github.com/goccy/go-json"
)

// Endpoint paths.
const (
	EndpointInitContext     = "/init_context"
	EndpointLoadDemoData    = "/load_demo_data"
	EndpointProposeMeal     = "/propose_meal_strategies"
	EndpointProposeFitness  = "/propose_fitness_strategies"
	EndpointGenerateWeek    = "/generate_week"
	EndpointGenerateWorkout = "/generate_workout"
	EndpointGetRecipe       = "/get_recipe"
	EndpointShoppingList    = "/generate_shopping_list"
	EndpointChatAgent       = "/chat_agent"
	EndpointDefineTerm      = "/define_term"
	EndpointAnalyzeJournal  = "/analyze_journal"
)

// DefaultDefinitionFallback is returned when /define_term has no answer.
const DefaultDefinitionFallback = "No definition found."

// TokenRequest carries only the device token.
type TokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// FitnessStrategiesRequest asks for fitness strategies given lifestyle answers.
type FitnessStrategiesRequest struct {
	Token     string            `json:"token" validate:"required"`
	Lifestyle map[string]string `json:"lifestyle"`
}

// WeekRequest asks for a 7-day meal plan.
type WeekRequest struct {
	Token           string            `json:"token" validate:"required"`
	StrategyName    string            `json:"strategy_name" validate:"required"`
	BloodStrategies []string          `json:"blood_strategies"`
	Lifestyle       map[string]string `json:"lifestyle"`
}

// WorkoutRequest asks for a workout plan.
type WorkoutRequest struct {
	Token           string            `json:"token" validate:"required"`
	StrategyName    string            `json:"strategy_name" validate:"required"`
	FitnessStrategy string            `json:"fitness_strategy"`
	Lifestyle       map[string]string `json:"lifestyle"`
}

// RecipeRequest asks for the recipe of one meal.
type RecipeRequest struct {
	MealTitle string `json:"meal_title" validate:"required"`
	Token     string `json:"token" validate:"required"`
}

// ChatRequest sends a message to the assistant.
type ChatRequest struct {
	Message string `json:"message" validate:"required"`
	Token   string `json:"token" validate:"required"`
	Stream  bool   `json:"stream,omitempty"`
}

// DefineRequest asks for a glossary definition.
type DefineRequest struct {
	Term string `json:"term" validate:"required"`
}

// JournalRequest asks for analysis of a journal entry.
type JournalRequest struct {
	Entry string `json:"entry" validate:"required"`
}

// InitContext uploads a lab report PDF as multipart form data.
func (c *Client) InitContext(ctx context.Context, token, filename string, file io.Reader) (models.HealthContext, error) {
	if token == "" {
		return models.HealthContext{}, fmt.Errorf("%s: invalid request: token is required", EndpointInitContext)
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return models.HealthContext{}, fmt.Errorf("%s: failed to create form file: %w", EndpointInitContext, err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return models.HealthContext{}, fmt.Errorf("%s: failed to read upload: %w", EndpointInitContext, err)
	}
	if err := mw.WriteField("token", token); err != nil {
		return models.HealthContext{}, fmt.Errorf("%s: failed to write token field: %w", EndpointInitContext, err)
	}
	if err := mw.Close(); err != nil {
		return models.HealthContext{}, fmt.Errorf("%s: failed to finish form: %w", EndpointInitContext, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(EndpointInitContext), &buf)
	if err != nil {
		return models.HealthContext{}, fmt.Errorf("%s: failed to build request: %w", EndpointInitContext, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	slog.Debug("planclient InitContext uploading", "filename", filepath.Base(filename), "bytes", buf.Len())
	data, err := c.do(ctx, EndpointInitContext, req)
	if err != nil {
		return models.HealthContext{}, err
	}
	return decodeHealthContext(EndpointInitContext, data)
}

// LoadDemoData loads the sample health context.
func (c *Client) LoadDemoData(ctx context.Context, token string) (models.HealthContext, error) {
	data, err := c.postJSON(ctx, EndpointLoadDemoData, TokenRequest{Token: token})
	if err != nil {
		return models.HealthContext{}, err
	}
	return decodeHealthContext(EndpointLoadDemoData, data)
}

// ProposeMealStrategies returns meal strategy options.
func (c *Client) ProposeMealStrategies(ctx context.Context, token string) ([]models.Strategy, error) {
	data, err := c.postJSON(ctx, EndpointProposeMeal, TokenRequest{Token: token})
	if err != nil {
		return nil, err
	}
	return decodeArray[models.Strategy](EndpointProposeMeal, data, "strategies")
}

// ProposeFitnessStrategies returns fitness strategy options.
func (c *Client) ProposeFitnessStrategies(ctx context.Context, token string, lifestyle map[string]string) ([]models.Strategy, error) {
	data, err := c.postJSON(ctx, EndpointProposeFitness, FitnessStrategiesRequest{Token: token, Lifestyle: nonNilMap(lifestyle)})
	if err != nil {
		return nil, err
	}
	return decodeArray[models.Strategy](EndpointProposeFitness, data, "strategies")
}

// GenerateWeek requests a meal plan. Dates are left as sent; callers assign them.
func (c *Client) GenerateWeek(ctx context.Context, req WeekRequest) ([]models.DayPlan, error) {
	if req.BloodStrategies == nil {
		req.BloodStrategies = []string{}
	}
	req.Lifestyle = nonNilMap(req.Lifestyle)
	data, err := c.postJSON(ctx, EndpointGenerateWeek, req)
	if err != nil {
		return nil, err
	}
	days, err := decodeArray[models.DayPlan](EndpointGenerateWeek, data, "plan")
	if err != nil {
		return nil, err
	}
	for i := range days {
		if days[i].Meals == nil {
			days[i].Meals = []models.Meal{}
		}
	}
	return days, nil
}

// GenerateWorkout requests a workout plan.
func (c *Client) GenerateWorkout(ctx context.Context, req WorkoutRequest) ([]models.WorkoutDay, error) {
	req.Lifestyle = nonNilMap(req.Lifestyle)
	data, err := c.postJSON(ctx, EndpointGenerateWorkout, req)
	if err != nil {
		return nil, err
	}
	days, err := decodeArray[models.WorkoutDay](EndpointGenerateWorkout, data, "plan")
	if err != nil {
		return nil, err
	}
	for i := range days {
		if days[i].Exercises == nil {
			days[i].Exercises = []models.Exercise{}
		}
	}
	return days, nil
}

// GetRecipe returns the recipe for a meal.
func (c *Client) GetRecipe(ctx context.Context, token, mealTitle string) (models.Recipe, error) {
	data, err := c.postJSON(ctx, EndpointGetRecipe, RecipeRequest{MealTitle: mealTitle, Token: token})
	if err != nil {
		return models.Recipe{}, err
	}
	var r models.Recipe
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &r); err != nil {
			return models.Recipe{}, fmt.Errorf("%s: failed to decode response: %w", EndpointGetRecipe, err)
		}
	}
	if r.Steps == nil {
		r.Steps = []string{}
	}
	if r.Macros == nil {
		r.Macros = map[string]models.FlexString{}
	}
	return r, nil
}

// GenerateShoppingList returns the consolidated shopping list.
func (c *Client) GenerateShoppingList(ctx context.Context, token string) (models.ShoppingList, error) {
	data, err := c.postJSON(ctx, EndpointShoppingList, TokenRequest{Token: token})
	if err != nil {
		return nil, err
	}
	return decodeShoppingList(data)
}

// ChatAgent sends a chat message and returns the reply text.
func (c *Client) ChatAgent(ctx context.Context, token, message string) (string, error) {
	data, err := c.postJSON(ctx, EndpointChatAgent, ChatRequest{Message: message, Token: token})
	if err != nil {
		return "", err
	}
	var out struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("%s: failed to decode response: %w", EndpointChatAgent, err)
	}
	return out.Response, nil
}

// DefineTerm returns a short definition, falling back to a fixed message.
func (c *Client) DefineTerm(ctx context.Context, term string) (string, error) {
	data, err := c.postJSON(ctx, EndpointDefineTerm, DefineRequest{Term: term})
	if err != nil {
		return "", err
	}
	var out struct {
		Response   string `json:"response"`
		Definition string `json:"definition"`
	}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return "", fmt.Errorf("%s: failed to decode response: %w", EndpointDefineTerm, err)
		}
	}
	switch {
	case out.Response != "":
		return out.Response, nil
	case out.Definition != "":
		return out.Definition, nil
	default:
		return DefaultDefinitionFallback, nil
	}
}

// AnalyzeJournal returns the service's free-form analysis of an entry.
func (c *Client) AnalyzeJournal(ctx context.Context, entry string) (map[string]any, error) {
	data, err := c.postJSON(ctx, EndpointAnalyzeJournal, JournalRequest{Entry: entry})
	if err != nil {
		return nil, err
	}
	return decodeObject(EndpointAnalyzeJournal, data)
}

// RunTool posts the tool inputs to /{toolID} and returns the raw result map.
// A null body yields a nil map.
func (c *Client) RunTool(ctx context.Context, toolID string, inputs map[string]string) (map[string]any, error) {
	if toolID == "" {
		return nil, fmt.Errorf("tool id is required")
	}
	endpoint := "/" + toolID
	data, err := c.postJSON(ctx, endpoint, nonNilMap(inputs))
	if err != nil {
		return nil, err
	}
	return decodeObject(endpoint, data)
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
