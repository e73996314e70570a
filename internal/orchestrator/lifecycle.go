package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/troikatech/call-center/internal/call"
	"github.com/troikatech/call-center/pkg/callautomation"
	"github.com/troikatech/call-center/pkg/logger"
)

// CallbackURL is the URL the provider posts the events of state to.
func (o *Orchestrator) CallbackURL(state *call.State) string {
	return fmt.Sprintf("%s/communicationservices/event/%s/%s", o.publicURL, state.CallID, state.CallbackSecret)
}

// resolveCall returns the latest call of phone when it can be continued,
// otherwise a new persisted call. A call created through the API is only
// continued when it was started with the same initiate snapshot.
func (o *Orchestrator) resolveCall(ctx context.Context, phone string, initiate *call.Initiate) (*call.State, error) {
	release, err := o.locker.Acquire(ctx, "phone:"+phone)
	if err != nil {
		return nil, fmt.Errorf("failed to lock phone number: %w", err)
	}
	defer release()

	existing, err := o.store.SearchOne(ctx, phone)
	if err != nil {
		return nil, err
	}
	if existing != nil && (initiate == nil || existing.Initiate.Equal(*initiate)) {
		return existing, nil
	}

	snapshot := o.defaults
	snapshot.PhoneNumber = phone
	if initiate != nil {
		snapshot = *initiate
	}
	state, err := call.New(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to create call: %w", err)
	}
	if err := o.store.Set(ctx, state); err != nil {
		return nil, err
	}
	o.logger.Info("Created call", logger.CallFields(state.CallID, phone)...)
	return state, nil
}

// OnIncomingCall answers a call placed by phone. An expired incoming call
// is dropped without error.
func (o *Orchestrator) OnIncomingCall(ctx context.Context, phone, incomingContext string) error {
	state, err := o.resolveCall(ctx, phone, nil)
	if err != nil {
		return err
	}
	conn, err := o.dialer.AnswerCall(ctx, incomingContext, o.CallbackURL(state))
	if callautomation.IsStaleEvent(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to answer call: %w", err)
	}
	o.logger.Info("Answered call",
		append(logger.CallFields(state.CallID, phone), zap.String("voice_id", conn.VoiceID))...,
	)
	return nil
}

// CreateCall places an outbound call described by initiate.
func (o *Orchestrator) CreateCall(ctx context.Context, initiate call.Initiate) (*call.State, error) {
	state, err := o.resolveCall(ctx, initiate.PhoneNumber, &initiate)
	if err != nil {
		return nil, err
	}
	if _, err := o.dialer.CreateCall(ctx, initiate.PhoneNumber, o.CallbackURL(state)); err != nil {
		return nil, fmt.Errorf("failed to create call: %w", err)
	}
	return state, nil
}

// OnSMSReceived appends a text message sent by phone to its latest call.
func (o *Orchestrator) OnSMSReceived(ctx context.Context, phone, message string) (*call.State, error) {
	latest, err := o.store.SearchOne(ctx, phone)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		o.logger.Warn("Call for phone number not found", logger.MaskPhone("phone_number", phone))
		return nil, call.ErrNotFound
	}

	state, err := call.Mutate(ctx, o.locker, o.store, latest.CallID, func(s *call.State) error {
		s.Append(call.PersonaHuman, call.ActionSMS, message, call.StyleNone)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := o.logger.With(logger.CallFields(state.CallID, phone)...)
	if state.InProgress {
		log.Info("SMS received, call in progress, answering with voice")
	} else {
		log.Info("SMS received, call not in progress, answering with SMS")
	}
	return state, nil
}
