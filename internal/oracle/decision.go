package oracle

import (
	"fmt"
	"strings"

	"github.com/imnotsalty/mlschatproto/internal/design"
)

// Action is the workflow step the oracle picked for the current turn.
type Action string

const (
	ActionModify   Action = "MODIFY"
	ActionGenerate Action = "GENERATE"
	ActionReset    Action = "RESET"
	ActionConverse Action = "CONVERSE"
)

// ParseAction validates the oracle's action string.
func ParseAction(raw string) (Action, error) {
	switch Action(strings.ToUpper(strings.TrimSpace(raw))) {
	case ActionModify:
		return ActionModify, nil
	case ActionGenerate:
		return ActionGenerate, nil
	case ActionReset:
		return ActionReset, nil
	case ActionConverse:
		return ActionConverse, nil
	default:
		return "", fmt.Errorf("oracle: unknown action %q", raw)
	}
}

// Decision is the structured output of one controller call. It is validated at
// the boundary and consumed immediately by the router; nothing downstream
// trusts raw oracle fields.
type Decision struct {
	Action        Action
	ResponseText  string
	TemplateUID   string
	Modifications []design.Modification
}

// Message is one turn of conversation history handed to the oracle.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reply carries either a validated decision or a direct free-text answer.
// Exactly one of the two is set.
type Reply struct {
	Decision *Decision
	Text     string
}

// decisionFromArgs maps a function-call argument object onto a Decision,
// rejecting payloads without a recognizable action.
func decisionFromArgs(args map[string]any) (*Decision, error) {
	rawAction, _ := args["action"].(string)
	action, err := ParseAction(rawAction)
	if err != nil {
		return nil, err
	}

	decision := &Decision{
		Action:       action,
		ResponseText: "I'm not sure how to proceed.",
	}
	if text, ok := args["response_text"].(string); ok && strings.TrimSpace(text) != "" {
		decision.ResponseText = text
	}
	if uid, ok := args["template_uid"].(string); ok {
		decision.TemplateUID = strings.TrimSpace(uid)
	}
	decision.Modifications = modificationsFromArgs(args["modifications"])
	return decision, nil
}

// modificationsFromArgs converts the loosely typed modification array. Entries
// without a name are dropped rather than trusted downstream.
func modificationsFromArgs(raw any) []design.Modification {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}

	var mods []design.Modification
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := obj["name"].(string)
		if strings.TrimSpace(name) == "" {
			continue
		}
		mod := design.Modification{Name: name}
		if text, ok := obj["text"].(string); ok {
			mod.Text = text
		}
		if imageURL, ok := obj["image_url"].(string); ok {
			mod.ImageURL = imageURL
		}
		mods = append(mods, mod)
	}
	return mods
}
