package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imnotsalty/mlschatproto/internal/design"
	"github.com/imnotsalty/mlschatproto/internal/listings"
	"github.com/imnotsalty/mlschatproto/internal/oracle"
	"github.com/imnotsalty/mlschatproto/internal/prompts"
	"github.com/imnotsalty/mlschatproto/internal/render"
	"github.com/imnotsalty/mlschatproto/internal/templates"
)

type fakeOracle struct {
	replies     []oracle.Reply
	decideErr   error
	category    templates.Category
	categorized []string
	prompts     []string
	mapFn       func(tmpl templates.Template) ([]design.Modification, error)
}

func (f *fakeOracle) Decide(_ context.Context, _ []oracle.Message, prompt string, _ templates.Catalog, _ string) (oracle.Reply, error) {
	f.prompts = append(f.prompts, prompt)
	if f.decideErr != nil {
		return oracle.Reply{}, f.decideErr
	}
	if len(f.replies) == 0 {
		return oracle.Reply{Text: "hello"}, nil
	}
	next := f.replies[0]
	f.replies = f.replies[1:]
	return next, nil
}

func (f *fakeOracle) Categorize(_ context.Context, request string) templates.Category {
	f.categorized = append(f.categorized, request)
	if f.category == "" {
		return templates.CategoryGeneralAd
	}
	return f.category
}

func (f *fakeOracle) MapListing(_ context.Context, _ listings.Listing, tmpl templates.Template) ([]design.Modification, error) {
	if f.mapFn == nil {
		return []design.Modification{}, nil
	}
	return f.mapFn(tmpl)
}

type fakeRenderer struct {
	url   string
	err   error
	calls int
}

func (f *fakeRenderer) Render(_ context.Context, _ string, _ []design.Modification) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.url == "" {
		return "https://img.example/out.png", nil
	}
	return f.url, nil
}

type fakeFetcher struct {
	listing listings.Listing
	err     error
	lastID  string
}

func (f *fakeFetcher) FetchByMLSID(_ context.Context, mlsID string) (listings.Listing, error) {
	f.lastID = mlsID
	return f.listing, f.err
}

func decideModify(uid, text string, mods ...design.Modification) oracle.Reply {
	return oracle.Reply{Decision: &oracle.Decision{
		Action:        oracle.ActionModify,
		ResponseText:  text,
		TemplateUID:   uid,
		Modifications: mods,
	}}
}

func newTestAssistant(o oracle.Oracle, r render.Renderer, f ListingFetcher, catalog templates.Catalog) *Assistant {
	return &Assistant{
		Catalog:  catalog,
		Oracle:   o,
		Listings: f,
		Renderer: r,
	}
}

func TestFirstModifyDoesNotTriggerGeneration(t *testing.T) {
	renderer := &fakeRenderer{}
	o := &fakeOracle{replies: []oracle.Reply{decideModify("tpl_A", "Okay, I've set that up. What's next?",
		design.Modification{Name: "address", Text: "123 Main St"},
		design.Modification{Name: "price", Text: "$450,000"},
		design.Modification{Name: "features", Text: "3 bed 2 bath"},
	)}}
	a := newTestAssistant(o, renderer, &fakeFetcher{}, nil)

	session := NewSession()
	reply := a.HandleMessage(context.Background(), session, "make a flyer for 123 Main St, $450000, 3 bed 2 bath")

	assert.Equal(t, "Okay, I've set that up. What's next?", reply)
	assert.Zero(t, renderer.calls, "setting the template for the first time must not render")
	assert.Equal(t, "tpl_A", session.design.TemplateUID)
	assert.Equal(t, "$450,000", session.design.Modifications[1].Text)
}

func TestModifySwitchingTemplateTriggersGeneration(t *testing.T) {
	renderer := &fakeRenderer{}
	o := &fakeOracle{replies: []oracle.Reply{decideModify("tpl_B", "Let's try a different style.")}}
	a := newTestAssistant(o, renderer, &fakeFetcher{}, nil)

	session := NewSession()
	session.design.Replace("tpl_A", []design.Modification{{Name: "address", Text: "123 Main St"}})

	reply := a.HandleMessage(context.Background(), session, "I don't like this layout, try another")

	assert.Equal(t, 1, renderer.calls)
	assert.Equal(t, "tpl_B", session.design.TemplateUID)
	assert.Contains(t, reply, prompts.GeneratedImageMarker)
	// carried-over modifications survive the switch
	assert.Equal(t, "123 Main St", session.design.Modifications[0].Text)
}

func TestModifySwitchNeverSilentOnRenderFailure(t *testing.T) {
	renderer := &fakeRenderer{err: fmt.Errorf("%w: rejected", render.ErrSubmitFailed)}
	o := &fakeOracle{replies: []oracle.Reply{decideModify("tpl_B", "Switching.")}}
	a := newTestAssistant(o, renderer, &fakeFetcher{}, nil)

	session := NewSession()
	session.design.Replace("tpl_A", nil)

	reply := a.HandleMessage(context.Background(), session, "use a different template")
	assert.Equal(t, prompts.SubmitFailed, reply)
	// context is preserved so the user can retry
	assert.Equal(t, "tpl_B", session.design.TemplateUID)
}

func TestModifySameTemplateUpserts(t *testing.T) {
	renderer := &fakeRenderer{}
	o := &fakeOracle{replies: []oracle.Reply{
		decideModify("tpl_A", "Added the address.", design.Modification{Name: "address", Text: "123 Main St"}, design.Modification{Name: "price", Text: "$450,000"}),
		decideModify("tpl_A", "Updated the price.", design.Modification{Name: "price", Text: "$475,000"}),
	}}
	a := newTestAssistant(o, renderer, &fakeFetcher{}, nil)

	session := NewSession()
	a.HandleMessage(context.Background(), session, "address is 123 Main St, price 450k")
	a.HandleMessage(context.Background(), session, "actually make it 475k")

	require.Len(t, session.design.Modifications, 2)
	assert.Equal(t, "address", session.design.Modifications[0].Name)
	assert.Equal(t, "$475,000", session.design.Modifications[1].Text)
	assert.Zero(t, renderer.calls)
}

func TestGenerateWithoutTemplateRefuses(t *testing.T) {
	renderer := &fakeRenderer{}
	o := &fakeOracle{replies: []oracle.Reply{{Decision: &oracle.Decision{Action: oracle.ActionGenerate, ResponseText: "Generating!"}}}}
	a := newTestAssistant(o, renderer, &fakeFetcher{}, nil)

	session := NewSession()
	reply := a.HandleMessage(context.Background(), session, "show it to me")

	assert.Equal(t, prompts.NeedDesignFirst, reply)
	assert.Zero(t, renderer.calls)
}

func TestGenerateRendersAndAppendsImage(t *testing.T) {
	renderer := &fakeRenderer{url: "https://img.example/final.png"}
	o := &fakeOracle{replies: []oracle.Reply{{Decision: &oracle.Decision{Action: oracle.ActionGenerate, ResponseText: "Of course!"}}}}
	a := newTestAssistant(o, renderer, &fakeFetcher{}, nil)

	session := NewSession()
	session.design.Replace("tpl_A", []design.Modification{{Name: "address", Text: "123 Main St"}})

	reply := a.HandleMessage(context.Background(), session, "I'm ready")
	assert.Equal(t, "Of course!\n\n"+prompts.GeneratedImageMarker+"(https://img.example/final.png)", reply)
}

func TestGenerateRenderFailureKeepsContext(t *testing.T) {
	renderer := &fakeRenderer{err: fmt.Errorf("%w: timed out", render.ErrRenderFailed)}
	o := &fakeOracle{replies: []oracle.Reply{{Decision: &oracle.Decision{Action: oracle.ActionGenerate, ResponseText: "On it."}}}}
	a := newTestAssistant(o, renderer, &fakeFetcher{}, nil)

	session := NewSession()
	session.design.Replace("tpl_A", []design.Modification{{Name: "address", Text: "123 Main St"}})

	reply := a.HandleMessage(context.Background(), session, "make the image now")
	assert.Equal(t, prompts.RenderFailed, reply)
	assert.Equal(t, "tpl_A", session.design.TemplateUID)
	require.Len(t, session.design.Modifications, 1)
}

func TestResetClearsContext(t *testing.T) {
	o := &fakeOracle{replies: []oracle.Reply{{Decision: &oracle.Decision{Action: oracle.ActionReset, ResponseText: "Starting fresh!"}}}}
	a := newTestAssistant(o, &fakeRenderer{}, &fakeFetcher{}, nil)

	session := NewSession()
	session.design.Replace("tpl_A", []design.Modification{{Name: "address", Text: "123 Main St"}})

	reply := a.HandleMessage(context.Background(), session, "start over with a business card")
	assert.Equal(t, "Starting fresh!", reply)
	assert.False(t, session.design.Started())
	assert.Empty(t, session.design.Modifications)
}

func TestResetOverriddenForNoisyInput(t *testing.T) {
	o := &fakeOracle{replies: []oracle.Reply{{Decision: &oracle.Decision{Action: oracle.ActionReset, ResponseText: "Resetting."}}}}
	a := newTestAssistant(o, &fakeRenderer{}, &fakeFetcher{}, nil)

	session := NewSession()
	session.design.Replace("tpl_A", []design.Modification{{Name: "address", Text: "123 Main St"}})

	reply := a.HandleMessage(context.Background(), session, strings.Repeat("jkl", 12))
	assert.Equal(t, prompts.Clarification, reply)
	assert.True(t, session.design.Started(), "noise must not clear the design")
}

func TestOracleFailureFallsBack(t *testing.T) {
	o := &fakeOracle{decideErr: errors.New("api down")}
	a := newTestAssistant(o, &fakeRenderer{}, &fakeFetcher{}, nil)

	reply := a.HandleMessage(context.Background(), NewSession(), "hi there")
	assert.Equal(t, prompts.TroubleConnecting, reply)
}

func TestFreeTextIsDirectReply(t *testing.T) {
	o := &fakeOracle{replies: []oracle.Reply{{Text: "Happy to help with flyers and open house invites!"}}}
	a := newTestAssistant(o, &fakeRenderer{}, &fakeFetcher{}, nil)

	reply := a.HandleMessage(context.Background(), NewSession(), "what can you do?")
	assert.Equal(t, "Happy to help with flyers and open house invites!", reply)
}

func TestMLSRequestArmsSubDialogue(t *testing.T) {
	o := &fakeOracle{replies: []oracle.Reply{{Decision: &oracle.Decision{Action: oracle.ActionConverse, ResponseText: prompts.MLSIDRequest}}}}
	a := newTestAssistant(o, &fakeRenderer{}, &fakeFetcher{}, nil)

	session := NewSession()
	a.HandleMessage(context.Background(), session, "i want a just listed ad")

	assert.Equal(t, PhaseAwaitingMLSID, session.phase)
	assert.Equal(t, "i want a just listed ad", session.pendingRequest)
}

func TestMLSTurnWithoutDigitsReprompts(t *testing.T) {
	a := newTestAssistant(&fakeOracle{}, &fakeRenderer{}, &fakeFetcher{}, nil)

	session := NewSession()
	session.phase = PhaseAwaitingMLSID

	reply := a.HandleMessage(context.Background(), session, "no idea")
	assert.Equal(t, prompts.MLSIDRetry, reply)
	assert.Equal(t, PhaseAwaitingMLSID, session.phase, "must stay in the sub-dialogue")
}

func TestMLSTurnPropertyNotFoundReprompts(t *testing.T) {
	fetcher := &fakeFetcher{listing: nil}
	a := newTestAssistant(&fakeOracle{}, &fakeRenderer{}, fetcher, nil)

	session := NewSession()
	session.phase = PhaseAwaitingMLSID

	reply := a.HandleMessage(context.Background(), session, "it's MLS 384921 I think")
	assert.Equal(t, "384921", fetcher.lastID)
	assert.Equal(t, prompts.PropertyMissing, reply)
	assert.Equal(t, PhaseAwaitingMLSID, session.phase)
}

func mlsCatalog() templates.Catalog {
	textLayers := func(names ...string) []templates.Layer {
		layers := make([]templates.Layer, len(names))
		for i, name := range names {
			layers[i] = templates.Layer{Name: name, Type: "text"}
		}
		return layers
	}
	return templates.Catalog{
		{UID: "tpl_1", Name: "Just Listed A", Layers: textLayers("address", "price")},
		{UID: "tpl_2", Name: "Just Listed B", Layers: textLayers("address", "price", "beds", "baths", "remarks")},
		{UID: "tpl_3", Name: "Just Listed C", Layers: textLayers("address", "price", "beds", "baths", "agent")},
		{UID: "tpl_4", Name: "Just Listed D", Layers: textLayers("address")},
	}
}

// mapperByCoverage fills every layer of the template, so list lengths follow
// layer counts: [2, 5, 5, 1] across mlsCatalog.
func mapperByCoverage(tmpl templates.Template) ([]design.Modification, error) {
	mods := make([]design.Modification, len(tmpl.Layers))
	for i, layer := range tmpl.Layers {
		mods[i] = design.Modification{Name: layer.Name, Text: "value"}
	}
	return mods, nil
}

func TestMLSPipelinePicksFirstBestTemplateAndRenders(t *testing.T) {
	renderer := &fakeRenderer{}
	o := &fakeOracle{category: templates.CategoryJustListed, mapFn: mapperByCoverage}
	fetcher := &fakeFetcher{listing: listings.Listing{"PropertyID": "384921", "ListPrice": 450000}}
	a := newTestAssistant(o, renderer, fetcher, mlsCatalog())

	session := NewSession()
	session.phase = PhaseAwaitingMLSID
	session.pendingRequest = "i want a just listed ad"

	reply := a.HandleMessage(context.Background(), session, "384921")

	// ties at length 5 resolve to catalog order: tpl_2 wins over tpl_3
	assert.Equal(t, "tpl_2", session.design.TemplateUID)
	require.Len(t, session.design.Modifications, 5)
	assert.Equal(t, 1, renderer.calls, "fully covered template renders immediately")
	assert.Contains(t, reply, prompts.GeneratedImageMarker)
	assert.Equal(t, PhaseIdle, session.phase)
	// category classification uses the retained request, not the MLS digits
	require.Len(t, o.categorized, 1)
	assert.Equal(t, "i want a just listed ad", o.categorized[0])
}

func TestMLSPipelineAsksForMissingFields(t *testing.T) {
	renderer := &fakeRenderer{}
	o := &fakeOracle{mapFn: func(tmpl templates.Template) ([]design.Modification, error) {
		if tmpl.UID != "tpl_2" {
			return nil, errors.New("mapping unavailable")
		}
		return []design.Modification{
			{Name: "address", Text: "123 Main St"},
			{Name: "price", Text: "$450,000"},
		}, nil
	}}
	fetcher := &fakeFetcher{listing: listings.Listing{"PropertyID": "1"}}
	a := newTestAssistant(o, renderer, fetcher, mlsCatalog())

	session := NewSession()
	session.phase = PhaseAwaitingMLSID

	reply := a.HandleMessage(context.Background(), session, "MLS is 1 please")

	assert.Equal(t, "tpl_2", session.design.TemplateUID)
	assert.Zero(t, renderer.calls, "missing fields must block rendering")
	assert.Contains(t, reply, "beds")
	assert.Contains(t, reply, "baths")
	assert.Contains(t, reply, "remarks")
}

func TestMLSPipelineAllMappingsFailed(t *testing.T) {
	o := &fakeOracle{mapFn: func(templates.Template) ([]design.Modification, error) {
		return nil, errors.New("oracle down")
	}}
	fetcher := &fakeFetcher{listing: listings.Listing{"PropertyID": "1"}}
	a := newTestAssistant(o, &fakeRenderer{}, fetcher, mlsCatalog())

	session := NewSession()
	session.phase = PhaseAwaitingMLSID

	reply := a.HandleMessage(context.Background(), session, "1")
	assert.Equal(t, prompts.TroubleConnecting, reply)
	assert.False(t, session.design.Started())
}

func TestSelectBestTemplateSkipsFailedMappings(t *testing.T) {
	o := &fakeOracle{mapFn: func(tmpl templates.Template) ([]design.Modification, error) {
		if tmpl.UID == "tpl_2" {
			return nil, errors.New("flaky")
		}
		return mapperByCoverage(tmpl)
	}}
	a := newTestAssistant(o, &fakeRenderer{}, &fakeFetcher{}, mlsCatalog())

	best, mods, ok := a.selectBestTemplate(context.Background(), listings.Listing{}, a.Catalog)
	require.True(t, ok)
	assert.Equal(t, "tpl_3", best.UID)
	assert.Len(t, mods, 5)
}

func TestStagedImageWrapsPromptOnce(t *testing.T) {
	o := &fakeOracle{replies: []oracle.Reply{{Text: "Got the photo!"}, {Text: "Second turn."}}}
	a := newTestAssistant(o, &fakeRenderer{}, &fakeFetcher{}, nil)

	session := NewSession()
	session.StageImage("https://img.example/upload.png")

	a.HandleMessage(context.Background(), session, "this is the agent photo")
	a.HandleMessage(context.Background(), session, "now set the address")

	require.Len(t, o.prompts, 2)
	assert.Equal(t, prompts.ImageContext("https://img.example/upload.png", "this is the agent photo"), o.prompts[0])
	assert.Equal(t, "now set the address", o.prompts[1], "wrapping must not leak into later turns")
	assert.Empty(t, session.stagedImageURL, "staged image is consumed by the next message")
}
