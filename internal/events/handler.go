package events

// Handler receives every object-shaped event the ingestion loop classifies.
// latencyMs is nil when the event carried no usable timestamp. Handlers run on
// the ingestion path and must return promptly.
type Handler interface {
	HandleEvent(event map[string]any, latencyMs *float64)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(event map[string]any, latencyMs *float64)

func (f HandlerFunc) HandleEvent(event map[string]any, latencyMs *float64) {
	f(event, latencyMs)
}

type NoopHandler struct{}

func (NoopHandler) HandleEvent(event map[string]any, latencyMs *float64) {}

type Multi struct {
	handlers []Handler
}

func NewMulti(handlers ...Handler) Multi {
	return Multi{handlers: handlers}
}

func (m Multi) HandleEvent(event map[string]any, latencyMs *float64) {
	for _, h := range m.handlers {
		if h != nil {
			h.HandleEvent(event, latencyMs)
		}
	}
}
