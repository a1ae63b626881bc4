package transport

import (
	"context"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/events"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/logging"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/protocol"
)

// drainEvents is the Transport & Dispatch half of the Event Bus (§2
// expansion): the single goroutine allowed to turn background-task events
// (resolution progress, evictions, published diagnostics) into outbound
// notifications, decoupling the Scope Manager/Resolution Coordinator/
// Compilation Service from ever touching the wire themselves.
func (s *Server) drainEvents(ctx context.Context, ch Channel) {
	evCh := s.bus.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-evCh:
			if !ok {
				return
			}
			note, ok := notificationFor(ev)
			if !ok {
				continue
			}
			if err := ch.WriteMessage(note); err != nil {
				logging.Transport("write notification for event kind %d failed: %v", ev.Kind, err)
			}
		}
	}
}

func notificationFor(ev events.Event) (protocol.Notification, bool) {
	switch ev.Kind {
	case events.KindResolutionStarted, events.KindResolutionProgress, events.KindResolutionFinished, events.KindResolutionFailed:
		return protocol.NewNotification(protocol.MethodStatusUpdate, map[string]any{
			"projectRoot": ev.ProjectRoot,
			"state":       resolutionState(ev.Kind),
			"message":     ev.Message,
		}), true
	case events.KindMemoryUsage:
		return protocol.NewNotification(protocol.MethodMemoryUsage, map[string]any{
			"heapUsed": ev.HeapUsed,
			"heapSys":  ev.HeapSys,
			"scopes": map[string]int{
				"active":     ev.Active,
				"evicted":    ev.Evicted,
				"unresolved": ev.Unresolved,
			},
		}), true
	case events.KindDiagnosticsPublished:
		return protocol.NewNotification(protocol.MethodPublishDiagnostics, protocol.PublishDiagnosticsParams{
			URI:         string(ev.URI),
			Diagnostics: diagnosticsToWire(ev.Diagnostics),
		}), true
	case events.KindScopeEvicted, events.KindScopeRevived:
		return protocol.NewNotification(protocol.MethodStatusUpdate, map[string]any{
			"projectRoot": ev.ProjectRoot,
			"state":       scopeLifecycleState(ev.Kind),
		}), true
	case events.KindLogMessage:
		return protocol.NewNotification(protocol.MethodLogMessage, map[string]any{
			"type":    ev.Level,
			"message": ev.Message,
		}), true
	default:
		return protocol.Notification{}, false
	}
}

// resolutionState maps a resolution event to the status-update state the
// progress contract names (§4.5: state ∈ {importing, ready, error}).
func resolutionState(k events.Kind) string {
	switch k {
	case events.KindResolutionStarted, events.KindResolutionProgress:
		return "importing"
	case events.KindResolutionFinished:
		return "ready"
	case events.KindResolutionFailed:
		return "error"
	default:
		return "importing"
	}
}

func scopeLifecycleState(k events.Kind) string {
	if k == events.KindScopeEvicted {
		return "evicted"
	}
	return "revived"
}

func diagnosticsToWire(diags []events.Diagnostic) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(diags))
	for _, d := range diags {
		out = append(out, protocol.FromDocumentDiagnostic(d))
	}
	return out
}
