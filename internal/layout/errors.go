package layout

import (
	"errors"
	"fmt"
)

// ErrGenerationFailed: генерация не уложилась в бюджет повторов
var ErrGenerationFailed = errors.New("layout generation failed")

// FailureReason причина провала одной попытки
type FailureReason string

const (
	ReasonDeadEnd          FailureReason = "dead_end"
	ReasonNoCandidates     FailureReason = "no_candidates"
	ReasonRetriesExhausted FailureReason = "retries_exhausted"
	ReasonRequirementUnmet FailureReason = "requirement_unmet"
)

// GenerationFailure штатный результат для сида, у которого не нашлось
// корректной раскладки. Частичная раскладка не возвращается.
type GenerationFailure struct {
	Sublevel string
	Seed     uint32
	Attempts int
	Reason   FailureReason         // причина последней попытки
	Reasons  map[FailureReason]int // сколько попыток провалилось по каждой причине
}

func (e *GenerationFailure) Error() string {
	return fmt.Sprintf("%s 0x%08X: no valid layout after %d attempts (last: %s)",
		e.Sublevel, e.Seed, e.Attempts, e.Reason)
}

// Unwrap позволяет проверять errors.Is(err, ErrGenerationFailed)
func (e *GenerationFailure) Unwrap() error {
	return ErrGenerationFailed
}
