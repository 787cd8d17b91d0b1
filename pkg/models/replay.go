package models

import (
	"cmp"
	"encoding/json"
	"slices"
)

// Apply folds a single event into the state. It does not check sequence numbers.
func (s *InstanceState) Apply(e Event) {
	switch ev := e.(type) {
	case *NodeStateChanged:
		rec := s.Node(ev.NodeID)
		rec.State = ev.State
		rec.Message = ev.Message
		rec.WaitingForSignal = ""
		rec.Lease = nil

		switch ev.State {
		case NodeWaitingForInput:
			rec.WaitingForSignal = ev.WaitingForSignal
		case NodeRunning:
			rec.Lease = ev.Lease
		default:
		}
	case *ContextSet:
		if s.Context == nil {
			s.Context = make(map[string]json.RawMessage)
		}

		s.Context[ev.Key] = ev.Value
	case *SignalPosted:
		if s.PendingSignals == nil {
			s.PendingSignals = make(map[string][]json.RawMessage)
		}

		s.PendingSignals[ev.SignalKey] = append(s.PendingSignals[ev.SignalKey], ev.Payload)
	case *SignalConsumed:
		queue := s.PendingSignals[ev.SignalKey]
		if len(queue) <= 1 {
			delete(s.PendingSignals, ev.SignalKey)
		} else {
			s.PendingSignals[ev.SignalKey] = queue[1:]
		}
	case *InstanceStatusChanged:
		s.Status = ev.Status
	}

	if ts := e.GetTimestamp(); ts.After(s.UpdatedUTC) {
		s.UpdatedUTC = ts
	}
}

// Replay applies, in sequence order, every event newer than the last one the
// state has seen. Events already reflected in the state are ignored, so replaying
// the same log twice is harmless. It returns the number of events applied.
func (s *InstanceState) Replay(events []Event) int {
	ordered := slices.Clone(events)
	slices.SortStableFunc(ordered, func(a, b Event) int {
		return cmp.Compare(a.GetSequence(), b.GetSequence())
	})

	applied := 0

	for _, e := range ordered {
		if e.GetSequence() <= s.LastAppliedEventSequence {
			continue
		}

		s.Apply(e)
		s.LastAppliedEventSequence = e.GetSequence()
		applied++
	}

	return applied
}
