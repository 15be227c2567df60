package tokens

import (
	"strings"

	"github.com/anhofmann/aicore-go/internal/domain"
)

// FillUsage forwards events unchanged except for a finish event whose
// output-token count is missing: there it estimates the count from the
// accumulated text and tool-argument deltas and flags the finish event's
// provider metadata with "estimatedUsage". Input tokens are never
// estimated; only the backend knows the rendered prompt.
func FillUsage(events <-chan domain.StreamEvent, estimator *Estimator, modelID string) <-chan domain.StreamEvent {
	out := make(chan domain.StreamEvent)

	go func() {
		defer close(out)

		var generated strings.Builder
		for event := range events {
			switch event.Type {
			case domain.EventTextDelta, domain.EventToolInputDelta:
				generated.WriteString(event.Delta)

			case domain.EventFinish:
				event = fillFinish(event, estimator, modelID, generated.String())
			}
			out <- event
		}
	}()

	return out
}

func fillFinish(event domain.StreamEvent, estimator *Estimator, modelID, generated string) domain.StreamEvent {
	if event.Usage != nil && event.Usage.Output.Total != nil {
		return event
	}

	count, err := estimator.Count(modelID, generated)
	if err != nil {
		// Leave the event untouched; missing usage is already the
		// documented shape for backends that report none.
		return event
	}

	usage := domain.Usage{}
	if event.Usage != nil {
		usage = *event.Usage
	}
	usage.Output.Total = domain.Int(count)
	usage.Output.Text = domain.Int(count)
	event.Usage = &usage

	metadata := make(map[string]any, len(event.ProviderMetadata)+1)
	for k, v := range event.ProviderMetadata {
		metadata[k] = v
	}
	metadata["estimatedUsage"] = true
	event.ProviderMetadata = metadata
	return event
}
