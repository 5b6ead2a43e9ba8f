package balancex

import (
	"fmt"
)

var _ error = UnknownStrategyError{}

type UnknownStrategyError struct {
	Strategy Strategy
}

func (err UnknownStrategyError) Error() string {
	return fmt.Sprintf("unknown balancing strategy: %s", err.Strategy)
}
