// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/switchboardhq/switchboard/lib/adapter"
	"github.com/switchboardhq/switchboard/lib/conversation"
)

// CallParams describes a single-adapter call. Adapter may be empty to
// select the registry default; ContextMode may be empty to select
// smart; MaxTokens <= 0 means no budget.
type CallParams struct {
	ConversationID string
	Adapter        string
	Message        string
	ContextMode    string
	PassHistory    bool
	MaxTokens      int
}

// CallResult is a successful single-adapter call: the reply text and
// the turn it was recorded under.
type CallResult struct {
	Adapter  string
	Response string
	Turn     int
	Metadata adapter.ResultMetadata
}

// Call invokes one adapter against the conversation and appends its
// reply. A failed invocation returns an *InvocationError and appends
// nothing, so a broken adapter never corrupts the log.
func (b *Broker) Call(ctx context.Context, params CallParams) (CallResult, error) {
	if err := b.requireConversation(params.ConversationID); err != nil {
		return CallResult{}, err
	}
	config, err := b.resolveAdapter(params.Adapter)
	if err != nil {
		return CallResult{}, err
	}
	selected, err := b.selectContext(params.ConversationID, params.ContextMode, params.PassHistory, params.MaxTokens)
	if err != nil {
		return CallResult{}, err
	}

	result := b.invoker.Invoke(ctx, config, params.Message, selected, params.PassHistory)
	if result.Failed() {
		return CallResult{Adapter: config.Name, Metadata: result.Metadata},
			&InvocationError{Adapter: config.Name, Reason: result.Metadata.Error}
	}

	appended, err := b.store.Append(params.ConversationID, config.Name, result.Response, invocationMetadata(result.Metadata))
	if err != nil {
		return CallResult{}, fmt.Errorf("recording adapter reply: %w", err)
	}
	b.logger.Info("adapter call complete",
		"conversation", params.ConversationID,
		"adapter", config.Name,
		"turn", appended.Turn,
		"duration_ms", result.Metadata.DurationMS)
	return CallResult{
		Adapter:  config.Name,
		Response: result.Response,
		Turn:     appended.Turn,
		Metadata: result.Metadata,
	}, nil
}

// ParallelParams describes a fan-out call: the same message and
// context go to every named adapter.
type ParallelParams struct {
	ConversationID string
	Adapters       []string
	Message        string
	ContextMode    string
	PassHistory    bool
	MaxTokens      int
}

// AdapterOutcome is one adapter's slot in a parallel call.
type AdapterOutcome struct {
	Adapter  string `json:"adapter"`
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
	Success  bool   `json:"success"`
}

// ParallelResult aggregates a fan-out call. Results holds one slot
// per requested adapter, in request order.
type ParallelResult struct {
	ConversationID string           `json:"conversation_id"`
	TotalAdapters  int              `json:"total_adapters"`
	Successful     int              `json:"successful"`
	Failed         int              `json:"failed"`
	Results        []AdapterOutcome `json:"results"`
}

// CallParallel invokes several adapters concurrently against one
// fixed context snapshot. Each adapter's failure lands in its own
// slot and never aborts its siblings. Successful replies append to
// the log; the store serializes those writes, so turn numbers stay
// unique even though completion order is nondeterministic.
func (b *Broker) CallParallel(ctx context.Context, params ParallelParams) (ParallelResult, error) {
	if len(params.Adapters) == 0 {
		return ParallelResult{}, ErrNoAdapters
	}
	if err := b.requireConversation(params.ConversationID); err != nil {
		return ParallelResult{}, err
	}
	selected, err := b.selectContext(params.ConversationID, params.ContextMode, params.PassHistory, params.MaxTokens)
	if err != nil {
		return ParallelResult{}, err
	}

	started := b.clock.Now()
	slots := make([]AdapterOutcome, len(params.Adapters))
	var group sync.WaitGroup
	for i, name := range params.Adapters {
		group.Add(1)
		go func(i int, name string) {
			defer group.Done()
			slots[i] = b.fanOutOne(ctx, name, params, selected)
		}(i, name)
	}
	group.Wait()

	result := ParallelResult{
		ConversationID: params.ConversationID,
		TotalAdapters:  len(params.Adapters),
		Results:        slots,
	}
	for _, slot := range slots {
		if slot.Success {
			result.Successful++
		} else {
			result.Failed++
		}
	}
	b.logger.Info("parallel call complete",
		"conversation", params.ConversationID,
		"adapters", result.TotalAdapters,
		"successful", result.Successful,
		"failed", result.Failed,
		"duration_ms", b.clock.Since(started).Milliseconds())
	return result, nil
}

// fanOutOne runs one adapter of a parallel call and fills its slot.
func (b *Broker) fanOutOne(ctx context.Context, name string, params ParallelParams, snapshot []conversation.Message) AdapterOutcome {
	config, err := b.registry.Get(name)
	if err != nil {
		return AdapterOutcome{Adapter: name, Error: err.Error()}
	}
	result := b.invoker.Invoke(ctx, config, params.Message, snapshot, params.PassHistory)
	if result.Failed() {
		return AdapterOutcome{Adapter: name, Error: result.Metadata.Error}
	}
	if _, err := b.store.Append(params.ConversationID, name, result.Response, invocationMetadata(result.Metadata)); err != nil {
		return AdapterOutcome{Adapter: name, Error: fmt.Sprintf("recording adapter reply: %v", err)}
	}
	return AdapterOutcome{Adapter: name, Response: result.Response, Success: true}
}
