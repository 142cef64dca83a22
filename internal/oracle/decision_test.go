package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imnotsalty/mlschatproto/internal/design"
	"github.com/imnotsalty/mlschatproto/internal/prompts"
	"github.com/imnotsalty/mlschatproto/internal/templates"
)

func TestParseAction(t *testing.T) {
	for raw, want := range map[string]Action{
		"MODIFY":   ActionModify,
		"generate": ActionGenerate,
		" Reset ":  ActionReset,
		"CONVERSE": ActionConverse,
	} {
		got, err := ParseAction(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}

	_, err := ParseAction("DESTROY")
	assert.Error(t, err)
	_, err = ParseAction("")
	assert.Error(t, err)
}

func TestDecisionFromArgs(t *testing.T) {
	decision, err := decisionFromArgs(map[string]any{
		"action":        "MODIFY",
		"template_uid":  " tpl_A ",
		"response_text": "Okay, I've added the address.",
		"modifications": []any{
			map[string]any{"name": "address", "text": "123 Main St"},
			map[string]any{"name": "photo", "image_url": "https://img.example/1.png"},
			map[string]any{"text": "orphan value"},
			"not an object",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, ActionModify, decision.Action)
	assert.Equal(t, "tpl_A", decision.TemplateUID)
	require.Len(t, decision.Modifications, 2)
	assert.Equal(t, "address", decision.Modifications[0].Name)
	assert.Equal(t, "https://img.example/1.png", decision.Modifications[1].ImageURL)
}

func TestDecisionFromArgsRejectsUnknownAction(t *testing.T) {
	_, err := decisionFromArgs(map[string]any{"action": "PONDER", "response_text": "hm"})
	assert.Error(t, err)

	_, err = decisionFromArgs(map[string]any{"response_text": "no action at all"})
	assert.Error(t, err)
}

func TestDecisionFromArgsDefaultsResponseText(t *testing.T) {
	decision, err := decisionFromArgs(map[string]any{"action": "CONVERSE", "response_text": "  "})
	require.NoError(t, err)
	assert.Equal(t, "I'm not sure how to proceed.", decision.ResponseText)
}

func TestFilterToTemplateLayersDropsUnknownNames(t *testing.T) {
	tmpl := templates.Template{UID: "tpl_A", Layers: []templates.Layer{
		{Name: "Address", Type: "text"},
		{Name: "price", Type: "text"},
		{Name: "photo", Type: "image"},
	}}

	kept := filterToTemplateLayers(tmpl, []design.Modification{
		{Name: "address", Text: "123 Main St"},
		{Name: "PRICE", Text: "$450,000"},
		{Name: "agent_name", Text: "Jamie"},
		{Name: "photo", ImageURL: "https://img.example/1.png"},
	})

	require.Len(t, kept, 3)
	assert.Equal(t, "address", kept[0].Name)
	assert.Equal(t, "PRICE", kept[1].Name)
	assert.Equal(t, "photo", kept[2].Name)

	assert.Empty(t, filterToTemplateLayers(tmpl, []design.Modification{{Name: "headline"}}))
}

func TestWindowedHistorySkipsGeneratedImages(t *testing.T) {
	history := []Message{
		{Role: "user", Content: "make a flyer"},
		{Role: "assistant", Content: "Here you go!\n\n" + prompts.GeneratedImageMarker + "(https://img.example/out.png)"},
		{Role: "user", Content: "change the price"},
	}
	kept := windowedHistory(history)
	require.Len(t, kept, 2)
	assert.Equal(t, "make a flyer", kept[0].Content)
	assert.Equal(t, "change the price", kept[1].Content)
}

func TestWindowedHistoryBoundsLength(t *testing.T) {
	var history []Message
	for i := 0; i < 20; i++ {
		history = append(history, Message{Role: "user", Content: "turn"})
	}
	assert.Len(t, windowedHistory(history), historyWindow)
}
