package tide

import "github.com/denismitr/tide/internal/database"

type ActionConfigurator func(a *Action)

type Action struct {
	target *database.Batch
}

// WithTarget makes Down reverse every batch above the given one, 0 reverses everything
func WithTarget(batch uint) ActionConfigurator {
	return func(a *Action) {
		b := database.Batch(batch)
		a.target = &b
	}
}

// CreateConfigurators turns command line input into configurators,
// a negative target means only the latest batch
func CreateConfigurators(target int) []ActionConfigurator {
	var configurators []ActionConfigurator
	if target >= 0 {
		configurators = append(configurators, WithTarget(uint(target)))
	}

	return configurators
}
