// Package tui defines the IO interface between the chat controller and the
// user interface layer, plus PlainIO (terminal) and BufferIO (scripted).
package tui

// IO is the contract between the chat controller and the UI layer.
// Every method maps to a distinct visual event so the controller never
// depends on a specific rendering implementation.
type IO interface {
	// ReadInput blocks until the user submits a line of input.
	// Returns ("", io.EOF) when the user quits.
	ReadInput() (string, error)

	// UserMessage displays the user's submitted message in the output area.
	UserMessage(text string)

	// ThinkingStart signals that the model has started processing.
	ThinkingStart()

	// TextDelta appends an incremental text chunk from the model stream.
	TextDelta(delta string)

	// TextDone signals that the current response is complete.
	// fullText contains the entire response assembled from all deltas.
	TextDone(fullText string)

	// SystemMessage displays a notice (checkpoint suggestions, /status
	// output, resume offers).
	SystemMessage(text string)

	// Error displays an error message.
	Error(msg string)

	// SetUsage updates the context usage indicator.
	SetUsage(used, limit int)

	// Confirm asks a yes/no question. Returns true if the user agrees.
	Confirm(question string) bool

	// Prompt asks for a line of free text. An empty answer returns def.
	Prompt(label, def string) string
}
