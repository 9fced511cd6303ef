// Package router implements the Event Router of spec §4.G: the dispatcher
// that matches inbound raw events against the Mapping Table, keeps
// modifier state coherent, and either forwards an event unchanged or hands
// it off to a mapping's Action.
package router

import (
	"sync"
	"time"

	"key-mods/internal/event"
	"key-mods/internal/interp"
	"key-mods/internal/keys"
	"key-mods/internal/mapping"
	"key-mods/internal/task"
)

// Source is the device collaborator's contract: a stream of raw events
// from every grabbed device, fanned into one channel (spec §1 "exposed to
// the core as an async source").
type Source interface {
	Events() <-chan event.Raw
}

// Sink is the virtual output device's contract.
type Sink interface {
	Emit(event.Raw) error
}

// Router owns the live ModifierSet and drives the interpreter/mapping
// table from the device source.
//
// Table and Interp are documented as owned exclusively by the single
// scheduler goroutine, so Router.Run must itself execute as a scheduled
// Task rather than a freely-running goroutine — otherwise handle() would
// race Block-action tasks over the same Table/Root state. The Source is
// still read from a separate goroutine (pump), but that goroutine only
// ever touches the mutex-protected pending buffer below, never Table or
// Interp.
type Router struct {
	src   Source
	sink  Sink
	table *mapping.Table
	ip    *interp.Interp
	sched *task.Scheduler

	onError func(error)

	mods keys.ModSet

	pendingMu sync.Mutex
	pending   []event.Raw
	srcClosed bool
}

func New(src Source, sink Sink, table *mapping.Table, ip *interp.Interp, sched *task.Scheduler, onError func(error)) *Router {
	r := &Router{src: src, sink: sink, table: table, ip: ip, sched: sched, onError: onError}
	go r.pump()
	return r
}

// pump shuttles raw events from Source into a mutex-protected buffer and
// wakes the scheduler's router-priority path. It never touches Table or
// Interp, so it needs no synchronization with the scheduler goroutine
// beyond pendingMu.
func (r *Router) pump() {
	for raw := range r.src.Events() {
		r.pendingMu.Lock()
		r.pending = append(r.pending, raw)
		r.pendingMu.Unlock()
		r.sched.NotifyRouterReady()
	}
	r.pendingMu.Lock()
	r.srcClosed = true
	r.pendingMu.Unlock()
	r.sched.NotifyRouterReady()
}

// popPending removes and returns the oldest buffered event, if any, along
// with whether Source has closed (meaning no further events will ever
// arrive).
func (r *Router) popPending() (raw event.Raw, ok bool, closed bool) {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	if len(r.pending) > 0 {
		raw = r.pending[0]
		r.pending = r.pending[1:]
		return raw, true, false
	}
	return event.Raw{}, false, r.srcClosed
}

// Emit implements interp.Emitter for the send() builtin: it emits a
// sequence under the router's current hardware modifier context, with no
// additional declared-modifier bracket (send() carries no chord flags of
// its own — only the per-character NeedsShift already encoded in each
// SeqToken).
func (r *Router) Emit(_ keys.ModSet, seq []keys.SeqToken) error {
	return r.emitTokens(seq, r.mods)
}

// Run is the router's Task body (spec §5's "await next event" suspension
// point made concrete): it drains whatever pump has buffered, parking via
// AwaitEvent when empty, until Source closes. Installed via
// Scheduler.SpawnRouter, it only ever runs with the scheduler's single
// token held, so handle()'s Table/Interp access never races a Block-action
// task.
func (r *Router) Run(y *task.Yielder) {
	for {
		raw, ok, closed := r.popPending()
		if !ok {
			if closed {
				return
			}
			y.AwaitEvent()
			continue
		}
		if err := r.handle(raw); err != nil && r.onError != nil {
			r.onError(err)
		}
	}
}

func (r *Router) handle(raw event.Raw) error {
	// Step 1: synthetic events pass straight through (reentrancy guard).
	if raw.Synthetic {
		return r.sink.Emit(raw)
	}
	if raw.Type != event.EvKey {
		return r.sink.Emit(raw)
	}

	code := keys.Code(raw.Code)
	state := stateFor(raw.Value)

	// Step 2: update modifier state. The modifier key's own event is
	// passed through in the ordinary step-5 path below unless it happens
	// to be bound by its own mapping.
	if mod, ok := keys.ModifierOf(code); ok {
		switch raw.Value {
		case event.Down, event.Repeat:
			r.mods = r.mods.With(mod)
		case event.Up:
			r.mods = r.mods.Without(mod)
		}
	}

	// Step 3: construct the lookup chord.
	chord := keys.Chord{Mods: r.mods, Key: code, State: state}

	// Step 4/5: look up and dispatch or forward, buffering any mapping
	// mutation the action itself triggers until dispatch completes.
	r.table.BeginDispatch()
	action, hit := r.table.Lookup(chord)
	if !hit {
		r.table.EndDispatch()
		return r.sink.Emit(raw)
	}

	var err error
	switch action.Kind {
	case mapping.StaticEmit:
		err = r.emitBracketed(action)
	case mapping.BlockAction:
		r.ip.RunAction(action, r.onError)
	}
	r.table.EndDispatch()
	return err
}

func stateFor(v event.Value) keys.State {
	switch v {
	case event.Down:
		return keys.Down
	case event.Up:
		return keys.Up
	case event.Repeat:
		return keys.Repeat
	default:
		return keys.Down
	}
}

func valueFor(s keys.State) event.Value {
	switch s {
	case keys.Down:
		return event.Down
	case keys.Up:
		return event.Up
	case keys.Repeat:
		return event.Repeat
	default:
		return event.Down
	}
}

// emitBracketed dispatches a StaticEmit action for a single matched event:
// bracket the live hardware modifier state to the RHS's declared modifiers,
// emit that event's payload, then restore hardware state — all within this
// one triggering event (spec §8 scenario 2: the full
// alt-up/shift-down/B-down/shift-up/alt-down burst happens on the A-down
// edge alone, symmetrically on A-up). Each state a chord shorthand installs
// — Down, Up, Repeat — carries only its own edge's payload, so there is no
// "hold open across Repeat" span to maintain here.
func (r *Router) emitBracketed(a mapping.Action) error {
	hw := r.mods
	bracket := a.Mods != hw
	if bracket {
		if err := r.bracketEnter(hw, a.Mods); err != nil {
			return err
		}
	}
	if err := r.emitTokens(a.Seq, a.Mods); err != nil {
		return err
	}
	if bracket {
		return r.bracketExit(hw, a.Mods)
	}
	return nil
}

// bracketEnter moves the output's apparent modifier state from the
// hardware set to the declared set: release what the RHS doesn't want,
// then press what it additionally wants.
func (r *Router) bracketEnter(from, to keys.ModSet) error {
	for _, m := range keys.AllMods {
		if from.Has(m) && !to.Has(m) {
			if err := r.emitSynthetic(keys.CanonicalKeyFor(m), event.Up); err != nil {
				return err
			}
		}
	}
	for _, m := range keys.AllMods {
		if !from.Has(m) && to.Has(m) {
			if err := r.emitSynthetic(keys.CanonicalKeyFor(m), event.Down); err != nil {
				return err
			}
		}
	}
	return nil
}

// bracketExit is bracketEnter's inverse: release what was pressed only for
// the bracket, then restore what was released only for the bracket.
func (r *Router) bracketExit(from, to keys.ModSet) error {
	for _, m := range keys.AllMods {
		if !from.Has(m) && to.Has(m) {
			if err := r.emitSynthetic(keys.CanonicalKeyFor(m), event.Up); err != nil {
				return err
			}
		}
	}
	for _, m := range keys.AllMods {
		if from.Has(m) && !to.Has(m) {
			if err := r.emitSynthetic(keys.CanonicalKeyFor(m), event.Down); err != nil {
				return err
			}
		}
	}
	return nil
}

// emitTokens emits a parsed key sequence, bracketing Shift per character
// around any token whose NeedsShift isn't already covered by declared.
func (r *Router) emitTokens(seq []keys.SeqToken, declared keys.ModSet) error {
	for _, tok := range seq {
		needShift := tok.NeedsShift && !declared.Has(keys.ModShift)
		if needShift {
			if err := r.emitSynthetic(keys.CanonicalKeyFor(keys.ModShift), event.Down); err != nil {
				return err
			}
		}
		for _, st := range tok.States {
			if err := r.emitSynthetic(tok.Code, valueFor(st)); err != nil {
				return err
			}
		}
		if needShift {
			if err := r.emitSynthetic(keys.CanonicalKeyFor(keys.ModShift), event.Up); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Router) emitSynthetic(code keys.Code, v event.Value) error {
	return r.sink.Emit(event.Raw{
		Type:      event.EvKey,
		Code:      uint16(code),
		Value:     v,
		Time:      time.Now(),
		Synthetic: true,
	})
}
