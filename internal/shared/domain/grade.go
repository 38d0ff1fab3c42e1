package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Grade é a avaliação a posteriori de um registro de exibição
type Grade string

const (
	GradeWin     Grade = "win"
	GradeLose    Grade = "lose"
	GradePending Grade = "pending"
)

// GradeShow compara o outcome exibido com o outcome vencedor do evento
func GradeShow(shown Outcome, winning *Outcome) Grade {
	if winning == nil || *winning == "" {
		return GradePending
	}
	if shown.Covers(*winning) {
		return GradeWin
	}
	return GradeLose
}

// ErrBadScore indica placar fora do formato "a:b"
var ErrBadScore = errors.New("bad score")

// FormatScore monta a string persistida em events.results
func FormatScore(score1, score2 int) string {
	return strconv.Itoa(score1) + ":" + strconv.Itoa(score2)
}

// ParseScore lê "a:b" em dois inteiros
func ParseScore(s string) (int, int, error) {
	left, right, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadScore, s)
	}
	a, err := strconv.Atoi(strings.TrimSpace(left))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadScore, s)
	}
	b, err := strconv.Atoi(strings.TrimSpace(right))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadScore, s)
	}
	return a, b, nil
}

// WinningOutcome deriva o outcome vencedor por comparação numérica estrita
func WinningOutcome(results string) (Outcome, error) {
	a, b, err := ParseScore(results)
	if err != nil {
		return "", err
	}
	switch {
	case a > b:
		return Outcome1, nil
	case a < b:
		return Outcome2, nil
	default:
		return OutcomeX, nil
	}
}
