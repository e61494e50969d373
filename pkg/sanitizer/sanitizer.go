package sanitizer

// Strategy is a single pure text-normalization step.
type Strategy func(string) string

// Pipeline applies strategies in order.
type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}
