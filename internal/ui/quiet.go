package ui

// quietPresenter consumes events but produces no output.
type quietPresenter struct{}

func (p *quietPresenter) Run(events <-chan Event) error {
	for range events {
		// Counters are fed by the stats sink; nothing to draw.
	}
	return nil
}

func (p *quietPresenter) Summary() string {
	return ""
}
