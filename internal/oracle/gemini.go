package oracle

import (
	"context"
	"fmt"
	"log"
	"strings"

	"google.golang.org/genai"

	"github.com/imnotsalty/mlschatproto/internal/design"
	"github.com/imnotsalty/mlschatproto/internal/listings"
	"github.com/imnotsalty/mlschatproto/internal/prompts"
	"github.com/imnotsalty/mlschatproto/internal/templates"
)

// Oracle is the model-backed judgment surface the conversation core depends
// on: the workflow controller, the intent classifier and the data-to-layer
// reconciler.
type Oracle interface {
	Decide(ctx context.Context, history []Message, userPrompt string, catalog templates.Catalog, designContext string) (Reply, error)
	Categorize(ctx context.Context, userRequest string) templates.Category
	MapListing(ctx context.Context, listing listings.Listing, tmpl templates.Template) ([]design.Modification, error)
}

const (
	defaultControllerModel = "gemini-2.5-flash"
	defaultMappingModel    = "gemini-2.5-flash"

	// historyWindow bounds how many prior turns the controller sees.
	historyWindow = 8
)

// Gemini implements Oracle on the Google GenAI SDK using function calling.
type Gemini struct {
	client          *genai.Client
	controllerModel string
	mappingModel    string
}

// NewGemini constructs the oracle client. Model names are optional and fall
// back to the flash models the prompts were tuned against.
func NewGemini(ctx context.Context, apiKey, controllerModel, mappingModel string) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("oracle: missing API key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("oracle: create genai client: %w", err)
	}
	if controllerModel == "" {
		controllerModel = defaultControllerModel
	}
	if mappingModel == "" {
		mappingModel = defaultMappingModel
	}
	return &Gemini{
		client:          client,
		controllerModel: strings.TrimPrefix(controllerModel, "models/"),
		mappingModel:    strings.TrimPrefix(mappingModel, "models/"),
	}, nil
}

var modificationItemSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"name":      {Type: genai.TypeString},
		"text":      {Type: genai.TypeString},
		"image_url": {Type: genai.TypeString},
	},
	Required: []string{"name"},
}

var processUserRequestTool = &genai.Tool{
	FunctionDeclarations: []*genai.FunctionDeclaration{{
		Name:        "process_user_request",
		Description: "The primary tool to process a user's request. You must decide which action to take based on the conversation.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"action": {
					Type:        genai.TypeString,
					Description: "The action to take. Must be one of: MODIFY, GENERATE, RESET, CONVERSE.",
				},
				"template_uid": {
					Type:        genai.TypeString,
					Description: "Required if action is MODIFY. The UID of the template being edited.",
				},
				"modifications": {
					Type:        genai.TypeArray,
					Description: "Required if action is MODIFY. A list of layer modifications.",
					Items:       modificationItemSchema,
				},
				"response_text": {
					Type:        genai.TypeString,
					Description: "A user-facing message explaining the action taken or responding to a query.",
				},
			},
			Required: []string{"action", "response_text"},
		},
	}},
}

var setDesignCategoryTool = &genai.Tool{
	FunctionDeclarations: []*genai.FunctionDeclaration{{
		Name:        "set_design_category",
		Description: "Sets the category for the design request.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"category": {Type: genai.TypeString, Enum: categoryEnum()},
			},
			Required: []string{"category"},
		},
	}},
}

var createModificationsTool = &genai.Tool{
	FunctionDeclarations: []*genai.FunctionDeclaration{{
		Name:        "create_modifications",
		Description: "Creates a list of modifications for a template based on property data.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"modifications": {
					Type:        genai.TypeArray,
					Description: "The list of modifications mapping property data to template layers.",
					Items:       modificationItemSchema,
				},
			},
			Required: []string{"modifications"},
		},
	}},
}

func categoryEnum() []string {
	cats := templates.Categories()
	values := make([]string, len(cats))
	for i, cat := range cats {
		values[i] = string(cat)
	}
	return values
}

// Decide runs the workflow-controller call. A function call becomes a
// validated Decision; plain candidate text is passed through as a direct
// conversational reply; anything else is an error the caller turns into the
// canonical fallback message.
func (g *Gemini) Decide(ctx context.Context, history []Message, userPrompt string, catalog templates.Catalog, designContext string) (Reply, error) {
	contents := []*genai.Content{
		userContent(prompts.Controller(catalog, designContext)),
		modelContent(prompts.ControllerAck),
	}
	for _, msg := range windowedHistory(history) {
		switch msg.Role {
		case "user":
			contents = append(contents, userContent(msg.Content))
		case "assistant":
			contents = append(contents, modelContent(msg.Content))
		}
	}
	contents = append(contents, userContent(userPrompt))

	resp, err := g.client.Models.GenerateContent(ctx, g.controllerModel, contents, &genai.GenerateContentConfig{
		Tools: []*genai.Tool{processUserRequestTool},
	})
	if err != nil {
		return Reply{}, fmt.Errorf("oracle: decide: %w", err)
	}

	call, text := firstCallOrText(resp)
	if call != nil && call.Name == "process_user_request" {
		decision, err := decisionFromArgs(call.Args)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Decision: decision}, nil
	}
	if text != "" {
		return Reply{Text: text}, nil
	}
	return Reply{}, fmt.Errorf("oracle: empty or malformed response")
}

// Categorize classifies the request to prune the template search space. Any
// failure falls back to the general property ad bucket; the conversation never
// stops on a classification miss.
func (g *Gemini) Categorize(ctx context.Context, userRequest string) templates.Category {
	resp, err := g.client.Models.GenerateContent(ctx, g.mappingModel,
		genai.Text(prompts.Categorize(userRequest)),
		&genai.GenerateContentConfig{Tools: []*genai.Tool{setDesignCategoryTool}},
	)
	if err != nil {
		log.Printf("oracle: categorize failed: %v", err)
		return templates.CategoryGeneralAd
	}

	call, _ := firstCallOrText(resp)
	if call == nil || call.Name != "set_design_category" {
		return templates.CategoryGeneralAd
	}
	raw, _ := call.Args["category"].(string)
	return templates.ParseCategory(raw)
}

// MapListing asks the oracle to align one listing's fields onto one template's
// layer set under the strict mapper rules. nil with an error means the call
// failed; an empty slice means the oracle legitimately found zero matches.
// Modifications naming a layer absent from the template are dropped here, so
// the safety invariant holds even when the model strays from the rules.
func (g *Gemini) MapListing(ctx context.Context, listing listings.Listing, tmpl templates.Template) ([]design.Modification, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.mappingModel,
		genai.Text(prompts.Mapper(tmpl, listing)),
		&genai.GenerateContentConfig{Tools: []*genai.Tool{createModificationsTool}},
	)
	if err != nil {
		return nil, fmt.Errorf("oracle: map listing to template %s: %w", tmpl.UID, err)
	}

	call, _ := firstCallOrText(resp)
	if call == nil || call.Name != "create_modifications" {
		return nil, fmt.Errorf("oracle: mapper returned no function call for template %s", tmpl.UID)
	}

	return filterToTemplateLayers(tmpl, modificationsFromArgs(call.Args["modifications"])), nil
}

// filterToTemplateLayers drops modifications naming layers the template does
// not have. Layer names match case-insensitively.
func filterToTemplateLayers(tmpl templates.Template, mods []design.Modification) []design.Modification {
	kept := make([]design.Modification, 0, len(mods))
	for _, mod := range mods {
		if tmpl.HasLayer(mod.Name) {
			kept = append(kept, mod)
		}
	}
	return kept
}

// windowedHistory keeps the most recent turns and drops assistant messages
// carrying generated-image markdown, mirroring what the prompts were tuned on.
func windowedHistory(history []Message) []Message {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	kept := make([]Message, 0, len(history))
	for _, msg := range history {
		if msg.Role == "assistant" && strings.Contains(msg.Content, prompts.GeneratedImageMarker) {
			continue
		}
		kept = append(kept, msg)
	}
	return kept
}

func firstCallOrText(resp *genai.GenerateContentResponse) (*genai.FunctionCall, string) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ""
	}
	var texts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionCall != nil {
			return part.FunctionCall, ""
		}
		if trimmed := strings.TrimSpace(part.Text); trimmed != "" {
			texts = append(texts, trimmed)
		}
	}
	return nil, strings.Join(texts, "\n\n")
}

func userContent(text string) *genai.Content {
	return genai.NewContentFromText(text, genai.RoleUser)
}

func modelContent(text string) *genai.Content {
	return genai.NewContentFromText(text, genai.RoleModel)
}
