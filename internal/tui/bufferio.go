package tui

import (
	"io"
	"strings"
	"sync"
)

// BufferIO is a silent IO implementation driven by scripted answers.
// It captures everything the controller shows. Used by `run` and tests.
type BufferIO struct {
	mu sync.Mutex

	Inputs   []string // returned by ReadInput, then io.EOF
	Confirms []bool   // returned by Confirm, then false
	Prompts  []string // returned by Prompt; "" means take the default

	buf    strings.Builder
	system []string
	errors []string
	used   int
	limit  int
	asked  []string
}

var _ IO = (*BufferIO)(nil)

// NewBufferIO creates a BufferIO that reads the given input lines.
func NewBufferIO(inputs ...string) *BufferIO {
	return &BufferIO{Inputs: inputs}
}

// Output returns all captured model text.
func (b *BufferIO) Output() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// SystemMessages returns every notice shown so far.
func (b *BufferIO) SystemMessages() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.system...)
}

// Errors returns every error shown so far.
func (b *BufferIO) Errors() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.errors...)
}

// Questions returns the questions passed to Confirm.
func (b *BufferIO) Questions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.asked...)
}

// Usage returns the last values passed to SetUsage.
func (b *BufferIO) Usage() (used, limit int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used, b.limit
}

func (b *BufferIO) ReadInput() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.Inputs) == 0 {
		return "", io.EOF
	}
	line := b.Inputs[0]
	b.Inputs = b.Inputs[1:]
	return line, nil
}

func (b *BufferIO) UserMessage(_ string) {}
func (b *BufferIO) ThinkingStart()       {}

func (b *BufferIO) TextDelta(delta string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.WriteString(delta)
}

func (b *BufferIO) TextDone(_ string) {}

func (b *BufferIO) SystemMessage(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.system = append(b.system, text)
}

func (b *BufferIO) Error(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errors = append(b.errors, msg)
}

func (b *BufferIO) SetUsage(used, limit int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.used, b.limit = used, limit
}

func (b *BufferIO) Confirm(question string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.asked = append(b.asked, question)
	if len(b.Confirms) == 0 {
		return false
	}
	ok := b.Confirms[0]
	b.Confirms = b.Confirms[1:]
	return ok
}

func (b *BufferIO) Prompt(_, def string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.Prompts) == 0 {
		return def
	}
	answer := b.Prompts[0]
	b.Prompts = b.Prompts[1:]
	if answer == "" {
		return def
	}
	return answer
}
