package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
)

const (
	// Alphabet leaves out 0, O, I and l.
	Alphabet   = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
	CodeLength = 7

	MaxAllocationAttempts = 5
)

// Largest multiple of len(Alphabet) that fits in a byte; bytes at or above
// it are discarded so every character is equally likely.
const sampleLimit = 256 - 256%len(Alphabet)

type CodeChecker interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// CodeAllocator picks short codes that are free at the time of the check.
// It reserves nothing: the store's unique constraint decides the race.
type CodeAllocator struct {
	links       CodeChecker
	random      io.Reader
	maxAttempts int
}

func NewCodeAllocator(links CodeChecker) *CodeAllocator {
	return &CodeAllocator{
		links:       links,
		random:      rand.Reader,
		maxAttempts: MaxAllocationAttempts,
	}
}

// Allocate validates and checks customCode when given, otherwise draws
// random candidates until a free one turns up.
func (a *CodeAllocator) Allocate(ctx context.Context, customCode string) (string, error) {
	if customCode != "" {
		return a.checkCustom(ctx, customCode)
	}
	code, _, err := a.generate(ctx, a.maxAttempts)
	return code, err
}

func (a *CodeAllocator) checkCustom(ctx context.Context, customCode string) (string, error) {
	if err := ValidateCustomCode(customCode); err != nil {
		return "", err
	}
	code := strings.ToLower(customCode)
	taken, err := a.links.CodeExists(ctx, code)
	if err != nil {
		return "", err
	}
	if taken {
		return "", fmt.Errorf("%w: %q", ErrCodeTaken, code)
	}
	return code, nil
}

// generate spends at most budget attempts and reports how many it used.
func (a *CodeAllocator) generate(ctx context.Context, budget int) (string, int, error) {
	for attempt := 1; attempt <= budget; attempt++ {
		candidate, err := a.Candidate()
		if err != nil {
			return "", attempt, err
		}
		taken, err := a.links.CodeExists(ctx, candidate)
		if err != nil {
			return "", attempt, err
		}
		if !taken {
			return candidate, attempt, nil
		}
	}
	return "", budget, ErrCodeGenerationExhausted
}

// Candidate draws CodeLength characters uniformly from Alphabet.
func (a *CodeAllocator) Candidate() (string, error) {
	code := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength*2)
	for len(code) < CodeLength {
		if _, err := io.ReadFull(a.random, buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			if int(b) >= sampleLimit {
				continue
			}
			code = append(code, Alphabet[int(b)%len(Alphabet)])
			if len(code) == CodeLength {
				break
			}
		}
	}
	return string(code), nil
}
