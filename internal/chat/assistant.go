package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/imnotsalty/mlschatproto/internal/design"
	"github.com/imnotsalty/mlschatproto/internal/events"
	"github.com/imnotsalty/mlschatproto/internal/listings"
	"github.com/imnotsalty/mlschatproto/internal/oracle"
	"github.com/imnotsalty/mlschatproto/internal/prompts"
	"github.com/imnotsalty/mlschatproto/internal/render"
	"github.com/imnotsalty/mlschatproto/internal/storage"
	"github.com/imnotsalty/mlschatproto/internal/templates"
)

// ListingFetcher is the slice of the listings client the assistant needs.
type ListingFetcher interface {
	FetchByMLSID(ctx context.Context, mlsID string) (listings.Listing, error)
}

// Assistant is the conversation core: it routes each user turn either through
// the oracle controller or through the MLS listing pipeline, mutates the
// session's design context according to the decision table, and triggers
// rendering when required.
type Assistant struct {
	Catalog  templates.Catalog
	Oracle   oracle.Oracle
	Listings ListingFetcher
	Renderer render.Renderer

	// Store and Events are optional; render history and status streaming are
	// best-effort side channels.
	Store  storage.Store
	Events *events.Broker

	// Noise guards RESET decisions against ambiguous inputs. Defaults to
	// LooksLikeNoise when nil.
	Noise NoisePredicate
}

// HandleMessage processes one user turn end-to-end and returns the assistant
// reply. The session lock is held for the whole turn, so calls for the same
// session are serialized.
func (a *Assistant) HandleMessage(ctx context.Context, s *Session, text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]oracle.Message, 0, len(s.messages))
	for _, msg := range s.messages {
		history = append(history, oracle.Message{Role: msg.Role, Content: msg.Content})
	}
	s.messages = append(s.messages, Message{Role: "user", Content: text})

	var reply string
	if s.phase == PhaseAwaitingMLSID {
		reply = a.handleMLSTurn(ctx, s, text)
	} else {
		reply = a.handleOracleTurn(ctx, s, history, text)
	}

	s.messages = append(s.messages, Message{Role: "assistant", Content: reply})

	// The literal MLS-ID request in a reply is what arms the sub-dialogue.
	if s.phase == PhaseIdle && strings.Contains(reply, prompts.MLSIDTrigger) {
		s.phase = PhaseAwaitingMLSID
		s.pendingRequest = text
	}
	return reply
}

// handleOracleTurn is the free-form dispatch path: staged image context is
// folded into the prompt, the oracle decides, and the router executes.
func (a *Assistant) handleOracleTurn(ctx context.Context, s *Session, history []oracle.Message, text string) string {
	finalPrompt := text
	if s.stagedImageURL != "" {
		finalPrompt = prompts.ImageContext(s.stagedImageURL, text)
		s.stagedImageURL = ""
	}

	result, err := a.Oracle.Decide(ctx, history, finalPrompt, a.Catalog, s.design.Snapshot())
	if err != nil {
		log.Printf("chat: oracle decide failed for session %s: %v", s.ID, err)
		return prompts.TroubleConnecting
	}
	if result.Decision == nil {
		// Free text is treated as a direct conversational reply.
		if strings.TrimSpace(result.Text) == "" {
			return prompts.GenericFallback
		}
		return result.Text
	}
	return a.route(ctx, s, text, result.Decision)
}

// route executes the oracle's decision against the design context. This is the
// sole mutation path for the context outside the MLS pipeline.
func (a *Assistant) route(ctx context.Context, s *Session, userText string, d *oracle.Decision) string {
	switch d.Action {
	case oracle.ActionConverse:
		return d.ResponseText

	case oracle.ActionReset:
		if a.noisy(userText) {
			// Spurious resets from ambiguous short inputs keep the design.
			log.Printf("chat: overriding RESET from noisy input for session %s", s.ID)
			return prompts.Clarification
		}
		s.design.Reset()
		return d.ResponseText
	}

	triggerGeneration := d.Action == oracle.ActionGenerate

	if d.Action == oracle.ActionModify {
		if d.TemplateUID != "" && d.TemplateUID != s.design.TemplateUID {
			// Switching away from an in-progress design regenerates; a
			// first-time template choice does not.
			if s.design.Started() {
				triggerGeneration = true
			}
			s.design.TemplateUID = d.TemplateUID
		}
		s.design.Upsert(d.Modifications...)
	}

	if !triggerGeneration {
		return d.ResponseText
	}

	if !s.design.Started() {
		return prompts.NeedDesignFirst
	}

	imageURL, errText := a.renderDesign(ctx, s)
	if errText != "" {
		return errText
	}
	return fmt.Sprintf("%s\n\n%s(%s)", d.ResponseText, prompts.GeneratedImageMarker, imageURL)
}

// handleMLSTurn is the identifier-collection sub-dialogue: digits are pulled
// out of free text, the listing is fetched and reconciled onto the best
// template, and rendering happens immediately when nothing is missing.
func (a *Assistant) handleMLSTurn(ctx context.Context, s *Session, text string) string {
	mlsID, ok := listings.ExtractMLSID(text)
	if !ok {
		return prompts.MLSIDRetry
	}

	listing, err := a.Listings.FetchByMLSID(ctx, mlsID)
	if err != nil {
		log.Printf("chat: listing fetch failed for MLS %s: %v", mlsID, err)
		return prompts.PropertyMissing
	}
	if listing == nil {
		return prompts.PropertyMissing
	}
	s.phase = PhaseIdle

	request := s.pendingRequest
	s.pendingRequest = ""
	if request == "" {
		request = text
	}

	category := a.Oracle.Categorize(ctx, request)
	candidates := a.Catalog.FilterByCategory(category)

	best, mods, ok := a.selectBestTemplate(ctx, listing, candidates)
	if !ok {
		return prompts.TroubleConnecting
	}
	s.design.Replace(best.UID, mods)

	missing := design.MissingTextLayers(best, s.design.Modifications)
	if len(missing) > 0 {
		return fmt.Sprintf(
			"I found the property and started a %q design with everything from the listing. I still need: %s. What should those say?",
			best.Name, strings.Join(missing, ", "),
		)
	}

	imageURL, errText := a.renderDesign(ctx, s)
	if errText != "" {
		return errText
	}
	return fmt.Sprintf("Found it! Here's your design.\n\n%s(%s)", prompts.GeneratedImageMarker, imageURL)
}

// selectBestTemplate maps the listing against every candidate and keeps the
// template with the most filled layers. Greedy best-coverage: many low-value
// matches can beat fewer important ones, and ties resolve to catalog order
// (first max wins). ok is false only when every mapping call failed.
func (a *Assistant) selectBestTemplate(ctx context.Context, listing listings.Listing, candidates templates.Catalog) (templates.Template, []design.Modification, bool) {
	var (
		best     templates.Template
		bestMods []design.Modification
		found    bool
	)
	for _, tmpl := range candidates {
		mods, err := a.Oracle.MapListing(ctx, listing, tmpl)
		if err != nil {
			log.Printf("chat: mapping failed for template %s: %v", tmpl.UID, err)
			continue
		}
		if !found || len(mods) > len(bestMods) {
			best, bestMods, found = tmpl, mods, true
		}
	}
	return best, bestMods, found
}

// renderDesign submits the current design and returns either an image URL or
// a user-facing error text. Submission rejections and rendering failures are
// logged and reported distinctly; the design context is never rolled back.
func (a *Assistant) renderDesign(ctx context.Context, s *Session) (string, string) {
	a.publish(events.Event{SessionID: s.ID, Stage: events.StageSubmitted})

	imageURL, err := a.Renderer.Render(ctx, s.design.TemplateUID, s.design.Modifications)
	if err != nil {
		if errors.Is(err, render.ErrSubmitFailed) {
			log.Printf("chat: render submission rejected for session %s: %v", s.ID, err)
			a.publish(events.Event{SessionID: s.ID, Stage: events.StageFailed, Message: prompts.SubmitFailed})
			return "", prompts.SubmitFailed
		}
		log.Printf("chat: rendering failed for session %s: %v", s.ID, err)
		a.publish(events.Event{SessionID: s.ID, Stage: events.StageFailed, Message: prompts.RenderFailed})
		return "", prompts.RenderFailed
	}

	a.publish(events.Event{SessionID: s.ID, Stage: events.StageCompleted, ImageURL: imageURL})

	if a.Store != nil {
		record := storage.RenderRecord{
			SessionID:     s.ID,
			TemplateUID:   s.design.TemplateUID,
			Modifications: append([]design.Modification{}, s.design.Modifications...),
			ImageURL:      imageURL,
		}
		if _, err := a.Store.SaveRender(ctx, record); err != nil {
			log.Printf("chat: save render history: %v", err)
		}
	}
	return imageURL, ""
}

func (a *Assistant) publish(evt events.Event) {
	if a.Events != nil {
		a.Events.Publish(evt)
	}
}

func (a *Assistant) noisy(text string) bool {
	if a.Noise != nil {
		return a.Noise(text)
	}
	return LooksLikeNoise(text)
}
