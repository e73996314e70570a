package orchestrator

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/troikatech/call-center/internal/call"
	"github.com/troikatech/call-center/internal/callcontrol"
	"github.com/troikatech/call-center/internal/prompts"
)

// startLanguageSelection asks the caller to pick a language. With a single
// language configured the menu is skipped and that language is selected.
func (o *Orchestrator) startLanguageSelection(ctx context.Context, state *call.State, log *zap.Logger) error {
	languages := state.Initiate.Lang.Availables
	if len(languages) == 1 {
		log.Info("Only one language available, selecting it by default", zap.String("lang", languages[0].ShortCode))
		return o.languageSelected(ctx, state, languages[0].ShortCode, log)
	}
	if len(languages) > prompts.MaxIVRLanguages {
		log.Warn("Too many languages for the IVR menu, extra languages are not offered",
			zap.Int("configured", len(languages)),
			zap.Int("offered", prompts.MaxIVRLanguages),
		)
	}

	text, err := o.prompts.TTS(prompts.IVRLanguage, state)
	if err != nil {
		return err
	}
	offered := prompts.IVRChoices(languages)
	choices := make([]callcontrol.Choice, len(offered))
	for i, c := range offered {
		choices[i] = callcontrol.Choice{
			Label:   c.ShortCode,
			Phrases: languages[i].Pronunciations,
			Tone:    c.Tone,
		}
	}
	prompt := callcontrol.Prompt{Text: text, Style: call.StyleNone, Lang: state.Language()}
	return o.controller.RecognizeChoices(ctx, state.VoiceID, state.Initiate.PhoneNumber, prompt, choices,
		call.Contexts{call.ContextIVRLangSelect})
}

func (o *Orchestrator) onIVRRecognized(ctx context.Context, state *call.State, ev Event, log *zap.Logger) error {
	log.Info("IVR recognized", zap.String("label", ev.ChoiceLabel))
	return o.languageSelected(ctx, state, ev.ChoiceLabel, log)
}

// languageSelected switches the call to the language of label, the default
// one when label is unknown, then greets the caller.
func (o *Orchestrator) languageSelected(ctx context.Context, state *call.State, label string, log *zap.Logger) error {
	state.ResetRetry()
	lang, ok := state.Initiate.Lang.Find(label)
	if !ok {
		log.Warn("Unknown IVR label, using default language", zap.String("label", label))
	}
	log.Info("Setting call language", zap.String("lang", lang.ShortCode))
	state.Lang = lang.ShortCode

	greeting, style := prompts.Hello, call.StyleNone
	if len(state.Messages) > 1 {
		greeting, style = prompts.WelcomeBack, call.StyleCheerful
	}
	text, err := o.prompts.TTS(greeting, state)
	if err != nil {
		return err
	}

	snapshot := state.Clone()
	voiceID := state.VoiceID

	var g errgroup.Group
	g.Go(func() error { return o.play(ctx, state, text, style, nil, true) })
	g.Go(func() error { return o.store.Set(ctx, snapshot) })
	g.Go(func() error { return o.controller.StartMediaStreaming(ctx, voiceID) })
	return g.Wait()
}
